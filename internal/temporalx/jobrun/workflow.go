package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
)

const (
	tickBackoff = 2 * time.Second
	// a failed row is re-ticked until this many attempts, matching the DB pool's MaxAttempts
	maxTicks = 5
)

// Workflow ticks one job_run row until it reaches a terminal status. The
// workflow id is the job id, so a second start for the same row is rejected.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: workflow started without a job id")
	}
	log := workflow.GetLogger(ctx)

	// retries belong to the tick loop so each one is a fresh attempt on the row
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
	})

	for tick := 1; ; tick++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}
		if out.terminal() {
			if out.Status == jobs.StatusFailed {
				return fmt.Errorf("job %s failed at stage %q and will not be retried", jobID, out.Stage)
			}
			return nil
		}
		if out.Status == jobs.StatusFailed {
			if tick >= maxTicks {
				return fmt.Errorf("job %s failed at stage %q: %s", jobID, out.Stage, out.Message)
			}
			log.Warn("job failed; ticking again", "job_id", jobID, "stage", out.Stage, "tick", tick)
		}
		if err := workflow.Sleep(ctx, tickBackoff*time.Duration(tick)); err != nil {
			return err
		}
	}
}
