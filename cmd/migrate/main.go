// Command migrate creates or updates the database schema.
package main

import (
	"log"

	"github.com/MEmshousen/CodeRED2025-404NotFound/config"
	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/logger"
)

func main() {
	log.Println("=== GORM Migration ===")

	if err := config.LoadENV(); err != nil {
		log.Fatal("Failed to load environment variables:", err)
	}
	cfg, err := config.Get()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	zlog, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}

	store, err := database.StartGORM(cfg, zlog)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	if err := store.HealthCheck(); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	log.Println("All migrations completed successfully")
	log.Println("Tables:")
	for _, table := range []string{
		"users", "courses", "enrollments", "materials",
		"pain_points", "confusion_snapshots", "study_packets", "cron_job_logs",
	} {
		log.Println("  -", table)
	}
}
