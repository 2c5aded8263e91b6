package storyboard

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

type CustomModelRepo interface {
	// Upsert inserts or replaces the row for m.Username.
	Upsert(dbc dbctx.Context, m *domain.CustomModel) (*domain.CustomModel, error)
	GetByUsername(dbc dbctx.Context, username string) (*domain.CustomModel, error)
	GetByModelID(dbc dbctx.Context, modelID string) (*domain.CustomModel, error)
	UpdateStatusByModelID(dbc dbctx.Context, modelID string, status string) (bool, error)
}

type customModelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCustomModelRepo(db *gorm.DB, baseLog *logger.Logger) CustomModelRepo {
	return &customModelRepo{db: db, log: baseLog.With("repo", "CustomModelRepo")}
}

func (r *customModelRepo) Upsert(dbc dbctx.Context, m *domain.CustomModel) (*domain.CustomModel, error) {
	if m == nil || m.Username == "" {
		return nil, nil
	}
	now := time.Now().UTC()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	conn := dbc.Conn(r.db)
	err := conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"model_id", "training_job_id", "dataset_id", "description", "status", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return nil, err
	}
	// the conflict path keeps the original id and created_at
	return r.GetByUsername(dbc, m.Username)
}

func (r *customModelRepo) GetByUsername(dbc dbctx.Context, username string) (*domain.CustomModel, error) {
	if username == "" {
		return nil, nil
	}
	var m domain.CustomModel
	if err := dbc.Conn(r.db).Where("username = ?", username).Limit(1).Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *customModelRepo) GetByModelID(dbc dbctx.Context, modelID string) (*domain.CustomModel, error) {
	if modelID == "" {
		return nil, nil
	}
	var m domain.CustomModel
	if err := dbc.Conn(r.db).Where("model_id = ?", modelID).Limit(1).Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *customModelRepo) UpdateStatusByModelID(dbc dbctx.Context, modelID string, status string) (bool, error) {
	if modelID == "" || status == "" {
		return false, nil
	}
	res := dbc.Conn(r.db).
		Model(&domain.CustomModel{}).
		Where("model_id = ?", modelID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
