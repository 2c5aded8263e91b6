package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/pkg/ctxutil"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// Job types handled by the worker registry.
const (
	JobTypeCharacterGenerate = "character_generate"
	JobTypeDatasetAssemble   = "dataset_assemble"
	JobTypeModelTrainWatch   = "model_train_watch"
	JobTypeSceneRender       = "scene_render"

	// JobRunWorkflow is the Temporal workflow that drives a job_run row.
	JobRunWorkflow = "storyboard_job_run"
)

type JobRequest struct {
	// ID is generated when zero.
	ID         uuid.UUID
	Owner      string
	JobType    string
	EntityType string
	EntityID   *uuid.UUID
	Payload    map[string]any
	// Result seeds job_run.result, e.g. an initial progress snapshot.
	Result any
}

type JobService interface {
	Enqueue(dbc dbctx.Context, req JobRequest) (*jobs.JobRun, error)
	// EnqueueIfIdle skips the insert when a queued or running job of the same type exists for the entity.
	EnqueueIfIdle(dbc dbctx.Context, req JobRequest) (*jobs.JobRun, bool, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*jobs.JobRun, error)
	LatestForEntity(dbc dbctx.Context, owner, entityType string, entityID uuid.UUID, jobType string) (*jobs.JobRun, error)
	ListForOwner(dbc dbctx.Context, owner string, limit int) ([]*jobs.JobRun, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*jobs.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

// NewJobService returns the job service. With a nil Temporal client jobs are
// only inserted and the DB worker pool claims them.
func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, req JobRequest) (*jobs.JobRun, error) {
	job, err := newJobRow(dbc.Ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Conn(s.db)}, []*jobs.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create %s job: %w", job.JobType, err)
	}
	s.notify.JobCreated(job.Owner, job)

	// the caller's transaction has to commit before a worker can see the row
	if inTransaction(dbc.Tx) {
		s.log.Debug("Job queued inside a transaction; dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, nil
	}
	return job, s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID)
}

// newJobRow builds the queued row. The request's trace ids ride along in the
// payload unless the caller set them.
func newJobRow(ctx context.Context, req JobRequest) (*jobs.JobRun, error) {
	owner := strings.TrimSpace(req.Owner)
	switch {
	case owner == "":
		return nil, fmt.Errorf("%w: missing owner", pkgerrors.ErrInvalidArgument)
	case req.JobType == "":
		return nil, fmt.Errorf("%w: missing job_type", pkgerrors.ErrInvalidArgument)
	}

	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		for key, val := range map[string]string{"trace_id": td.TraceID, "request_id": td.RequestID} {
			if _, set := payload[key]; !set && val != "" {
				payload[key] = val
			}
		}
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", req.JobType, err)
	}
	rawResult := []byte(`{}`)
	if req.Result != nil {
		if rawResult, err = json.Marshal(req.Result); err != nil {
			return nil, fmt.Errorf("encode %s result seed: %w", req.JobType, err)
		}
	}

	job := &jobs.JobRun{
		ID:         req.ID,
		Owner:      owner,
		JobType:    req.JobType,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Status:     jobs.StatusQueued,
		Stage:      jobs.StatusQueued,
		Message:    "Queued",
		Payload:    datatypes.JSON(rawPayload),
		Result:     datatypes.JSON(rawResult),
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.EntityType == "" && job.EntityID == nil {
		job.EntityType = "user"
	}
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	return job, nil
}

// EnqueueIfIdle reports created=false, with a nil job, when a queued or
// running job already covers the entity.
func (s *jobService) EnqueueIfIdle(dbc dbctx.Context, req JobRequest) (*jobs.JobRun, bool, error) {
	busy, err := s.repo.ExistsRunnable(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Conn(s.db)}, req.Owner, req.JobType, req.EntityType, req.EntityID)
	if err != nil || busy {
		return nil, false, err
	}
	job, err := s.Enqueue(dbc, req)
	return job, err == nil, err
}

// inTransaction looks at the connection pool, since a cloned *gorm.DB carries
// no other trace of the transaction it belongs to.
func inTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(interface {
		Commit() error
		Rollback() error
	})
	return ok
}

// Dispatch hands a queued row to Temporal. Without a Temporal client it does
// nothing and the DB worker pool claims the row.
func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if s == nil || s.temporal == nil {
		return nil
	}
	if jobID == uuid.Nil {
		return fmt.Errorf("%w: missing job id", pkgerrors.ErrInvalidArgument)
	}
	ctx := ctxutil.Default(dbc.Ctx)
	_, err := s.temporal.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             s.temporalTaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, JobRunWorkflow)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if err == nil || errors.As(err, &started) {
		return nil
	}
	s.failDispatch(ctx, jobID, err)
	return fmt.Errorf("start %s workflow: %w", JobRunWorkflow, err)
}

func (s *jobService) failDispatch(ctx context.Context, jobID uuid.UUID, cause error) {
	now := time.Now().UTC()
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repo.UpdateFields(dbc, jobID, map[string]interface{}{
		"status":        jobs.StatusFailed,
		"stage":         "dispatch",
		"message":       "",
		"error":         cause.Error(),
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}); err != nil {
		s.log.Warn("Could not mark job undispatched", "job_id", jobID, "error", err)
		return
	}
	if job, err := s.repo.GetByID(dbc, jobID); err == nil && job != nil {
		s.notify.JobFailed(job.Owner, job, "dispatch", cause.Error())
	}
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*jobs.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing job id", pkgerrors.ErrInvalidArgument)
	}
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, pkgerrors.ErrNotFound)
	}
	return job, nil
}

func (s *jobService) LatestForEntity(dbc dbctx.Context, owner, entityType string, entityID uuid.UUID, jobType string) (*jobs.JobRun, error) {
	job, err := s.repo.GetLatestByEntity(dbc, owner, entityType, entityID, jobType)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%s job for %s %s: %w", jobType, entityType, entityID, pkgerrors.ErrNotFound)
	}
	return job, nil
}

func (s *jobService) ListForOwner(dbc dbctx.Context, owner string, limit int) ([]*jobs.JobRun, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("%w: missing username", pkgerrors.ErrInvalidArgument)
	}
	return s.repo.ListByOwner(dbc, owner, limit)
}

// Cancel marks a live job canceled and returns the row. Terminal rows come
// back unchanged. A running handler sees the cancel on its next heartbeat.
func (s *jobService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*jobs.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing job id", pkgerrors.ErrInvalidArgument)
	}
	var (
		job      *jobs.JobRun
		canceled bool
	)
	err := dbc.Conn(s.db).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		var err error
		if job, err = s.repo.GetByID(inner, jobID); err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s: %w", jobID, pkgerrors.ErrNotFound)
		}
		if settled(job) {
			return nil
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, jobID, map[string]interface{}{
			"status":       jobs.StatusCanceled,
			"message":      "Canceled",
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		job.Status, job.Message = jobs.StatusCanceled, "Canceled"
		job.LockedAt, job.HeartbeatAt, job.UpdatedAt = nil, &now, now
		canceled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if canceled {
		s.notify.JobCanceled(job.Owner, job)
		s.cancelWorkflow(ctxutil.Default(dbc.Ctx), jobID)
	}
	return job, nil
}

// settled rows take no cancel: finished, canceled, or failed with no worker holding them.
func settled(job *jobs.JobRun) bool {
	switch job.Status {
	case jobs.StatusSucceeded, jobs.StatusCanceled:
		return true
	case jobs.StatusFailed:
		return job.LockedAt == nil
	}
	return false
}

func (s *jobService) cancelWorkflow(ctx context.Context, jobID uuid.UUID) {
	if s.temporal == nil {
		return
	}
	err := s.temporal.CancelWorkflow(ctx, jobID.String(), "")
	var missing *serviceerror.NotFound
	if err != nil && !errors.As(err, &missing) {
		s.log.Warn("Cancel workflow failed", "job_id", jobID, "error", err)
	}
}
