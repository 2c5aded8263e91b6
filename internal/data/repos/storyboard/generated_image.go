package storyboard

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type GeneratedImageRepo interface {
	Create(dbc dbctx.Context, images []*domain.GeneratedImage) ([]*domain.GeneratedImage, error)
	ListByDiaryEntry(dbc dbctx.Context, diaryEntryID uuid.UUID) ([]*domain.GeneratedImage, error)
	ListByUsername(dbc dbctx.Context, username string, kind string, limit int) ([]*domain.GeneratedImage, error)
}

type generatedImageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneratedImageRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedImageRepo {
	return &generatedImageRepo{db: db, log: baseLog.With("repo", "GeneratedImageRepo")}
}

func (r *generatedImageRepo) Create(dbc dbctx.Context, images []*domain.GeneratedImage) ([]*domain.GeneratedImage, error) {
	if len(images) == 0 {
		return []*domain.GeneratedImage{}, nil
	}
	now := time.Now().UTC()
	for _, img := range images {
		if img.ID == uuid.Nil {
			img.ID = uuid.New()
		}
		if img.CreatedAt.IsZero() {
			img.CreatedAt = now
		}
	}
	if err := dbc.Conn(r.db).Create(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// ListByDiaryEntry returns scene images in scene order.
func (r *generatedImageRepo) ListByDiaryEntry(dbc dbctx.Context, diaryEntryID uuid.UUID) ([]*domain.GeneratedImage, error) {
	out := []*domain.GeneratedImage{}
	if diaryEntryID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("diary_entry_id = ?", diaryEntryID).
		Order("scene_index ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generatedImageRepo) ListByUsername(dbc dbctx.Context, username string, kind string, limit int) ([]*domain.GeneratedImage, error) {
	out := []*domain.GeneratedImage{}
	if username == "" {
		return out, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := dbc.Conn(r.db).Where("username = ?", username)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
