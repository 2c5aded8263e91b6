package storyboard

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type DiaryEntryRepo interface {
	Create(dbc dbctx.Context, entry *domain.DiaryEntry) (*domain.DiaryEntry, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DiaryEntry, error)
	ListByUsername(dbc dbctx.Context, username string, limit int) ([]*domain.DiaryEntry, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type diaryEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiaryEntryRepo(db *gorm.DB, baseLog *logger.Logger) DiaryEntryRepo {
	return &diaryEntryRepo{db: db, log: baseLog.With("repo", "DiaryEntryRepo")}
}

func (r *diaryEntryRepo) Create(dbc dbctx.Context, entry *domain.DiaryEntry) (*domain.DiaryEntry, error) {
	if entry == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if err := dbc.Conn(r.db).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *diaryEntryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DiaryEntry, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var entry domain.DiaryEntry
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&entry).Error; err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}

func (r *diaryEntryRepo) ListByUsername(dbc dbctx.Context, username string, limit int) ([]*domain.DiaryEntry, error) {
	out := []*domain.DiaryEntry{}
	if username == "" {
		return out, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if err := dbc.Conn(r.db).
		Where("username = ?", username).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *diaryEntryRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.Conn(r.db).
		Model(&domain.DiaryEntry{}).
		Where("id = ?", id).
		Updates(updates).Error
}
