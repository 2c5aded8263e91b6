package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

// Executor runs one claimed job through its handler. The DB worker pool and
// the Temporal activity share it.
type Executor struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Repo     repos.JobRunRepo
	Registry *Registry
	Notify   services.JobNotifier

	// HeartbeatInterval is how often the row is touched and checked for cancel.
	HeartbeatInterval time.Duration
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

// Execute runs job, which must already be marked running. onBeat, if set, is
// called on every heartbeat tick. It returns the row as stored afterwards.
func (e *Executor) Execute(ctx context.Context, job *jobs.JobRun, onBeat func()) (*jobs.JobRun, error) {
	if e == nil || e.Repo == nil || e.Registry == nil {
		return nil, fmt.Errorf("job executor not configured")
	}
	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := e.watch(runCtx, cancel, job, onBeat)
	defer stop()

	jc := NewContext(runCtx, e.DB, job, e.Repo, e.Notify)
	handlerReturnedNil := false
	h, ok := e.Registry.Get(job.JobType)
	if !ok {
		e.Log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.Log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
					jc.Fail("panic", &panicError{Val: r})
				}
			}()
			if runErr := h.Run(jc); runErr != nil {
				// most handlers call jc.Fail themselves
				jc.Fail("run", runErr)
				return
			}
			handlerReturnedNil = true
		}()
	}

	loadCtx := context.WithoutCancel(ctx)
	updated, err := e.Repo.GetByID(dbctx.Context{Ctx: loadCtx}, job.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("job %s not found after run", job.ID)
	}

	// A handler that returns nil while the row is still running is treated as
	// done, unless the process is shutting down and the row should be reclaimed.
	if handlerReturnedNil && updated.Status == jobs.StatusRunning && ctx.Err() == nil {
		e.Log.Warn("Job handler returned nil without terminal status; marking succeeded", "job_id", job.ID, "job_type", job.JobType, "stage", updated.Stage)
		finalStage := "done"
		if s := strings.TrimSpace(updated.Stage); s != "" && s != jobs.StatusQueued && s != jobs.StatusRunning {
			finalStage = s
		}
		jc.Ctx = loadCtx
		jc.Succeed(finalStage, nil)
		if r2, rerr := e.Repo.GetByID(dbctx.Context{Ctx: loadCtx}, job.ID); rerr == nil && r2 != nil {
			updated = r2
		}
	}

	observability.Current().ObserveJob(job.JobType, updated.Status, time.Since(start))
	return updated, nil
}

// watch heartbeats the row and cancels the run once the row is canceled.
func (e *Executor) watch(ctx context.Context, cancel context.CancelFunc, job *jobs.JobRun, onBeat func()) func() {
	interval := e.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if onBeat != nil {
					onBeat()
				}
				dbc := dbctx.Context{Ctx: ctx}
				_ = e.Repo.Heartbeat(dbc, job.ID)
				row, err := e.Repo.GetByID(dbc, job.ID)
				if err != nil || row == nil {
					continue
				}
				if row.Status == jobs.StatusCanceled {
					e.Log.Info("Job canceled; stopping handler", "job_id", job.ID, "job_type", job.JobType)
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
