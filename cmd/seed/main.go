package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/config"
	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/auth"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/logger"
)

func main() {
	if err := config.LoadENV(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.DBDriver != config.DriverPostgres {
		log.Fatalf("Seeding requires DB_DRIVER=%s", config.DriverPostgres)
	}

	zlog, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	store, err := database.StartGORM(cfg, zlog)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("Classroom - Database Seeding")
	fmt.Println(separator)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := database.NewSeeder(store, zlog).SeedAll(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		Expiry: 7 * 24 * time.Hour,
	})

	fmt.Printf("Course: %s (id %d)\n\n", result.Course.Code, result.Course.ID)
	for _, u := range []struct {
		label string
		id    uint
		email string
		name  string
		role  string
	}{
		{"Teacher", result.Teacher.ID, result.Teacher.Email, result.Teacher.DisplayName, string(result.Teacher.Role)},
		{"Student", result.Student.ID, result.Student.Email, result.Student.DisplayName, string(result.Student.Role)},
	} {
		token, err := jwtManager.GenerateAccessToken(u.id, u.email, u.name, u.role)
		if err != nil {
			log.Fatalf("Failed to sign %s token: %v", strings.ToLower(u.label), err)
		}
		fmt.Printf("%s token (7 days):\n%s\n\n", u.label, token)
	}

	fmt.Println(separator)
	fmt.Println("Seeding completed")
	fmt.Println(separator)
}
