package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	sdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	jobrt "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/retryx"
	"github.com/yungbote/storyboard-backend/internal/services"
	"github.com/yungbote/storyboard-backend/internal/temporalx"
	"github.com/yungbote/storyboard-backend/internal/temporalx/jobrun"
)

// Deps are the pieces the tick activity needs to run a job_run row.
type Deps struct {
	DB       *gorm.DB
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry
	Notify   services.JobNotifier
}

// Runner hosts the job_run workflow and its tick activity on the storyboard
// task queue. It replaces the DB worker pool when Temporal is configured.
type Runner struct {
	log         *logger.Logger
	tc          sdkclient.Client
	cfg         temporalx.Config
	concurrency int
	acts        *jobrun.Activities
	startWait   time.Duration
}

func NewRunner(log *logger.Logger, tc sdkclient.Client, cfg temporalx.Config, concurrency int, deps Deps) (*Runner, error) {
	if tc == nil {
		return nil, errors.New("temporal client is not configured")
	}
	if deps.DB == nil || deps.Jobs == nil || deps.Registry == nil {
		return nil, errors.New("temporal worker needs db, job repo and registry")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	log = log.With("component", "TemporalWorker")
	return &Runner{
		log:         log,
		tc:          tc,
		cfg:         cfg,
		concurrency: concurrency,
		startWait:   envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", time.Minute),
		acts: &jobrun.Activities{
			Log:      log,
			DB:       deps.DB,
			Jobs:     deps.Jobs,
			Registry: deps.Registry,
			Notify:   deps.Notify,
		},
	}, nil
}

// Start polls the task queue until ctx is done. A frontend that is still
// booting, or a namespace that does not exist yet, is retried for startWait.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return errors.New("temporal worker not initialized")
	}
	r.log.Info("Starting Temporal worker",
		"namespace", r.cfg.Namespace,
		"task_queue", r.cfg.TaskQueue,
		"concurrency", r.concurrency,
		"handlers", r.acts.Registry.Types(),
	)
	if r.cfg.RegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
			r.log.Warn("Temporal namespace check failed; retrying on start", "namespace", r.cfg.Namespace, "error", err)
		}
	}

	base := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MS", 250*time.Millisecond)
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	attempts := 1
	if r.startWait > 0 {
		attempts = int(r.startWait/base) + 1
	}
	policy := retryx.Policy{
		MaxAttempts: attempts,
		Backoff:     retryx.Exponential(base, envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5*time.Second)),
		OnRetry: func(n int, delay time.Duration, err error) {
			r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", n, "delay", delay, "error", err)
		},
	}

	startCtx := ctx
	if r.startWait > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, r.startWait)
		defer cancel()
	}
	// the worker lives until the caller's ctx ends, not startCtx
	err := policy.Do(startCtx, func(attemptCtx context.Context, attempt int) error {
		w := r.newWorker()
		err := w.Start()
		if err == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var missing *serviceerror.NamespaceNotFound
		if errors.As(err, &missing) {
			if r.cfg.RegisterNamespace {
				_ = temporalx.EnsureNamespace(attemptCtx, r.cfg, r.log)
			}
			return fmt.Errorf("temporal namespace %s not found: %w", r.cfg.Namespace, err)
		}
		return err
	})
	return err
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(r.acts.Tick, activity.RegisterOptions{Name: jobrun.ActivityTick})
	return w
}
