package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// JobRunRepo is the durable queue behind every storyboard job. Lookups return
// (nil, nil) when no row matches.
type JobRunRepo interface {
	Create(dbc dbctx.Context, runs []*domain.JobRun) ([]*domain.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, owner string, entityType string, entityID uuid.UUID, jobType string) (*domain.JobRun, error)
	ListByOwner(dbc dbctx.Context, owner string, limit int) ([]*domain.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*domain.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	ExistsRunnable(dbc dbctx.Context, owner string, jobType string, entityType string, entityID *uuid.UUID) (bool, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) rows(dbc dbctx.Context) *gorm.DB {
	return dbc.Conn(r.db).Model(&domain.JobRun{})
}

// first loads the single match of q, or nil.
func first(q *gorm.DB) (*domain.JobRun, error) {
	var run domain.JobRun
	if err := q.Limit(1).Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

// Create fills id, status, stage and timestamps on rows that leave them unset.
func (r *jobRunRepo) Create(dbc dbctx.Context, runs []*domain.JobRun) ([]*domain.JobRun, error) {
	if len(runs) == 0 {
		return []*domain.JobRun{}, nil
	}
	now := time.Now().UTC()
	for _, run := range runs {
		if run.ID == uuid.Nil {
			run.ID = uuid.New()
		}
		if run.Status == "" {
			run.Status = domain.StatusQueued
		}
		if run.Stage == "" {
			run.Stage = run.Status
		}
		if run.CreatedAt.IsZero() {
			run.CreatedAt = now
		}
		if run.UpdatedAt.IsZero() {
			run.UpdatedAt = run.CreatedAt
		}
	}
	if err := dbc.Conn(r.db).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return first(r.rows(dbc).Where("id = ?", id))
}

// GetLatestByEntity is the newest run of jobType for one entity, e.g. the last
// scene_render of a diary entry.
func (r *jobRunRepo) GetLatestByEntity(dbc dbctx.Context, owner string, entityType string, entityID uuid.UUID, jobType string) (*domain.JobRun, error) {
	if owner == "" || entityType == "" || entityID == uuid.Nil || jobType == "" {
		return nil, nil
	}
	return first(r.rows(dbc).
		Where("owner = ? AND job_type = ?", owner, jobType).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC"))
}

func (r *jobRunRepo) ListByOwner(dbc dbctx.Context, owner string, limit int) ([]*domain.JobRun, error) {
	out := []*domain.JobRun{}
	if owner == "" {
		return out, nil
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if err := r.rows(dbc).Where("owner = ?", owner).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextRunnable marks the oldest runnable row running and returns it, or
// nil when the queue is empty. Runnable means queued, failed with attempts left,
// no_retry unset and retryDelay elapsed, or running with a heartbeat older than
// staleRunning.
// Postgres skips rows another worker holds; sqlite ignores the lock clause.
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*domain.JobRun, error) {
	now := time.Now().UTC()
	var claimed *domain.JobRun
	err := dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		var run domain.JobRun
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", domain.StatusQueued).
			Or("status = ? AND no_retry = ? AND attempts < ? AND (last_error_at IS NULL OR last_error_at < ?)",
				domain.StatusFailed, false, maxAttempts, now.Add(-retryDelay)).
			Or("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?",
				domain.StatusRunning, now.Add(-staleRunning)).
			Order("created_at ASC").
			First(&run).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return err
		}

		if err := tx.Model(&domain.JobRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
			"status":       domain.StatusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}
		run.Status = domain.StatusRunning
		run.Attempts++
		run.LockedAt, run.HeartbeatAt = &now, &now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		r.log.Debug("Claimed job run", "job_id", claimed.ID, "job_type", claimed.JobType, "attempt", claimed.Attempts)
	}
	return claimed, nil
}

func withUpdatedAt(updates map[string]interface{}) map[string]interface{} {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return updates
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	return r.rows(dbc).Where("id = ?", id).Updates(withUpdatedAt(updates)).Error
}

// UpdateFieldsUnlessStatus reports whether the row changed. A row already in
// one of disallowedStatuses is left alone, which is how a cancel stays sticky.
func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	q := r.rows(dbc).Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(withUpdatedAt(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Heartbeat touches running rows only.
func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return r.rows(dbc).
		Where("id = ? AND status = ?", id, domain.StatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

// ExistsRunnable reports a queued or running row for owner and jobType,
// optionally narrowed to one entity.
func (r *jobRunRepo) ExistsRunnable(dbc dbctx.Context, owner string, jobType string, entityType string, entityID *uuid.UUID) (bool, error) {
	if owner == "" || jobType == "" {
		return false, nil
	}
	q := r.rows(dbc).Where("owner = ? AND job_type = ? AND status IN ?",
		owner, jobType, []string{domain.StatusQueued, domain.StatusRunning})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != nil && *entityID != uuid.Nil {
		q = q.Where("entity_id = ?", *entityID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
