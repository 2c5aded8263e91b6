package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Jobs / worker
		// =========================
		&jobs.JobRun{},

		// =========================
		// Storyboard
		// =========================
		&storyboard.CustomModel{},
		&storyboard.DiaryEntry{},
		&storyboard.GeneratedImage{},
		&storyboard.GenerationRecord{},
	)
}

// EnsureJobIndexes adds the partial index the worker claim query relies on.
// Postgres only; sqlite has no use for it.
func EnsureJobIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_runnable
		ON job_run(status, updated_at)
		WHERE deleted_at IS NULL AND status IN ('queued','running','failed');
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_runnable: %w", err)
	}
	return nil
}
