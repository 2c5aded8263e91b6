package worker

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
	Heartbeat    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	return c
}

type Worker struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.JobRunRepo
	exec *runtime.Executor
	cfg  Config
	wg   sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	log := baseLog.With("component", "JobWorker")
	return &Worker{
		db:   db,
		log:  log,
		repo: repo,
		exec: &runtime.Executor{
			Log:               log,
			DB:                db,
			Repo:              repo,
			Registry:          registry,
			Notify:            notify,
			HeartbeatInterval: cfg.Heartbeat,
		},
		cfg: cfg,
	}
}

// Start launches the pool. Loops exit when ctx is done; Wait blocks until they have.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain: keep claiming while work is available
			for ctx.Err() == nil && w.RunOnce(ctx) {
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx, Tx: w.db}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("ClaimNextRunnable failed", "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}
	w.log.Debug("Job claimed", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	if _, err := w.exec.Execute(ctx, job, nil); err != nil {
		w.log.Warn("Job execution bookkeeping failed", "job_id", job.ID, "error", err)
	}
	return true
}
