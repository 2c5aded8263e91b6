package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos/jobs"
	"github.com/yungbote/storyboard-backend/internal/data/repos/storyboard"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type JobRunRepo = jobs.JobRunRepo

type CustomModelRepo = storyboard.CustomModelRepo
type DiaryEntryRepo = storyboard.DiaryEntryRepo
type GeneratedImageRepo = storyboard.GeneratedImageRepo
type GenerationRecordRepo = storyboard.GenerationRecordRepo

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

func NewCustomModelRepo(db *gorm.DB, baseLog *logger.Logger) CustomModelRepo {
	return storyboard.NewCustomModelRepo(db, baseLog)
}
func NewDiaryEntryRepo(db *gorm.DB, baseLog *logger.Logger) DiaryEntryRepo {
	return storyboard.NewDiaryEntryRepo(db, baseLog)
}
func NewGeneratedImageRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedImageRepo {
	return storyboard.NewGeneratedImageRepo(db, baseLog)
}
func NewGenerationRecordRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRecordRepo {
	return storyboard.NewGenerationRecordRepo(db, baseLog)
}
