package database

import (
	"os"
	"testing"

	"github.com/MEmshousen/CodeRED2025-404NotFound/config"
	"go.uber.org/zap"
)

// TestGORMStore runs the storage contract against a real PostgreSQL.
// The target database is wiped of the service's tables first.
func TestGORMStore(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	if os.Getenv("JWT_SECRET") == "" {
		t.Setenv("JWT_SECRET", "integration-test-secret")
	}

	cfg, err := config.Get()
	if err != nil {
		t.Fatalf("config.Get() error = %v", err)
	}

	store, err := StartGORM(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("StartGORM error = %v", err)
	}
	defer store.Close()

	if err := store.DB().Exec(`DROP TABLE IF EXISTS cron_job_logs, study_packets, confusion_snapshots,
		pain_points, materials, enrollments, courses, users CASCADE`).Error; err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	if err := store.Init(); err != nil {
		t.Fatalf("Init error = %v", err)
	}

	runStorageContract(t, store)
}
