package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// ProgressSink receives every progress mutation of an assembly run.
type ProgressSink interface {
	Save(ctx context.Context, p *storyboard.DatasetProgress) error
}

// ProgressStore is the job-state store keyed by job id. Load returns nil and
// no error when nothing is stored for jobID.
type ProgressStore interface {
	ProgressSink
	Load(ctx context.Context, jobID string) (*storyboard.DatasetProgress, error)
}

// ---------------------------------------------------------------------------
// in-memory
// ---------------------------------------------------------------------------

type memoryProgressStore struct {
	mu   sync.RWMutex
	runs map[string]storyboard.DatasetProgress
}

func NewMemoryProgressStore() ProgressStore {
	return &memoryProgressStore{runs: map[string]storyboard.DatasetProgress{}}
}

func (s *memoryProgressStore) Save(_ context.Context, p *storyboard.DatasetProgress) error {
	if p == nil || p.JobID == "" {
		return fmt.Errorf("progress snapshot without job id")
	}
	s.mu.Lock()
	s.runs[p.JobID] = p.Clone()
	s.mu.Unlock()
	return nil
}

func (s *memoryProgressStore) Load(_ context.Context, jobID string) (*storyboard.DatasetProgress, error) {
	s.mu.RLock()
	p, ok := s.runs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

// ---------------------------------------------------------------------------
// job_run backed
// ---------------------------------------------------------------------------

type jobRunProgressStore struct {
	repo repos.JobRunRepo
	log  *logger.Logger
}

// NewJobRunProgressStore keeps each snapshot in job_run.result of the run that
// owns it, so progress survives restarts and is visible to every instance.
func NewJobRunProgressStore(repo repos.JobRunRepo, baseLog *logger.Logger) ProgressStore {
	return &jobRunProgressStore{repo: repo, log: baseLog.With("component", "JobRunProgressStore")}
}

func (s *jobRunProgressStore) Save(ctx context.Context, p *storyboard.DatasetProgress) error {
	if p == nil {
		return fmt.Errorf("nil progress snapshot")
	}
	id, err := uuid.Parse(strings.TrimSpace(p.JobID))
	if err != nil {
		return fmt.Errorf("progress job id %q: %w", p.JobID, err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	updates := map[string]interface{}{
		"result":   datatypes.JSON(raw),
		"progress": p.Percent(),
	}
	if n := len(p.Logs); n > 0 {
		updates["message"] = p.Logs[n-1]
	}
	return s.repo.UpdateFields(dbctx.New(ctx), id, updates)
}

func (s *jobRunProgressStore) Load(ctx context.Context, jobID string) (*storyboard.DatasetProgress, error) {
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil {
		return nil, nil
	}
	job, err := s.repo.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	if job == nil || len(job.Result) == 0 {
		return nil, nil
	}
	var p storyboard.DatasetProgress
	if err := json.Unmarshal(job.Result, &p); err != nil {
		return nil, fmt.Errorf("decode progress for job %s: %w", jobID, err)
	}
	if p.JobID == "" {
		return nil, nil
	}
	reconcileWithJob(&p, job)
	return &p, nil
}

// reconcileWithJob marks a snapshot failed when its job_run ended without the
// assembler getting to record that, e.g. an explicit cancel.
func reconcileWithJob(p *storyboard.DatasetProgress, job *jobs.JobRun) {
	if p.Status.Terminal() {
		return
	}
	switch job.Status {
	case jobs.StatusCanceled:
		p.Status = storyboard.ProgressFailed
		p.Logs = append(p.Logs, "Run canceled")
	case jobs.StatusFailed:
		p.Status = storyboard.ProgressFailed
		msg := strings.TrimSpace(job.Error)
		if msg == "" {
			msg = "unknown error"
		}
		p.Logs = append(p.Logs, "Run failed: "+msg)
	}
}

// ---------------------------------------------------------------------------
// reporter
// ---------------------------------------------------------------------------

// ProgressReporter answers progress queries. Read never fails: unknown ids and
// store errors both come back as a not_found record.
type ProgressReporter struct {
	store ProgressStore
	log   *logger.Logger
}

func NewProgressReporter(store ProgressStore, baseLog *logger.Logger) *ProgressReporter {
	return &ProgressReporter{store: store, log: baseLog.With("service", "ProgressReporter")}
}

func (r *ProgressReporter) Read(ctx context.Context, jobID string) storyboard.DatasetProgress {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" || r == nil || r.store == nil {
		return storyboard.NotFoundProgress(jobID)
	}
	p, err := r.store.Load(ctx, jobID)
	if err != nil {
		r.log.Warn("progress read failed", "job_id", jobID, "error", err)
		out := storyboard.NotFoundProgress(jobID)
		out.Logs = append(out.Logs, fmt.Sprintf("Progress unavailable: %v", err))
		out.UpdatedAt = time.Now().UTC()
		return out
	}
	if p == nil {
		return storyboard.NotFoundProgress(jobID)
	}
	out := p.Clone()
	out.Found = true
	if out.Logs == nil {
		out.Logs = []string{}
	}
	if out.Pairs == nil {
		out.Pairs = []storyboard.ActivityImage{}
	}
	return out
}
