package storyboard

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type GenerationRecordRepo interface {
	// Save writes rec keyed by generation id, replacing status and images.
	Save(dbc dbctx.Context, rec *domain.GenerationRecord) error
	GetByGenerationID(dbc dbctx.Context, generationID string) (*domain.GenerationRecord, error)
}

type generationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRecordRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRecordRepo {
	return &generationRecordRepo{db: db, log: baseLog.With("repo", "GenerationRecordRepo")}
}

func (r *generationRecordRepo) Save(dbc dbctx.Context, rec *domain.GenerationRecord) error {
	if rec == nil || rec.GenerationID == "" {
		return nil
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return dbc.Conn(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "images", "updated_at"}),
	}).Create(rec).Error
}

func (r *generationRecordRepo) GetByGenerationID(dbc dbctx.Context, generationID string) (*domain.GenerationRecord, error) {
	if generationID == "" {
		return nil, nil
	}
	var rec domain.GenerationRecord
	if err := dbc.Conn(r.db).Where("generation_id = ?", generationID).Limit(1).Find(&rec).Error; err != nil {
		return nil, err
	}
	if rec.GenerationID == "" {
		return nil, nil
	}
	return &rec, nil
}
