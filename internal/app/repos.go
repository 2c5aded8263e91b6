package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type Repos struct {
	JobRun           repos.JobRunRepo
	CustomModel      repos.CustomModelRepo
	DiaryEntry       repos.DiaryEntryRepo
	GeneratedImage   repos.GeneratedImageRepo
	GenerationRecord repos.GenerationRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		JobRun:           repos.NewJobRunRepo(db, log),
		CustomModel:      repos.NewCustomModelRepo(db, log),
		DiaryEntry:       repos.NewDiaryEntryRepo(db, log),
		GeneratedImage:   repos.NewGeneratedImageRepo(db, log),
		GenerationRecord: repos.NewGenerationRecordRepo(db, log),
	}
}
