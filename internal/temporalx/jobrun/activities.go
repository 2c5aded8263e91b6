package jobrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/storyboard-backend/internal/jobs/runtime"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/services"
)

type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry
	Notify   services.JobNotifier
}

// Tick claims the row and runs its handler once. Rows that are already
// succeeded or canceled come back unchanged.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return TickResult{JobID: jobID}, errors.New("jobrun: activities not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil || id == uuid.Nil {
		return TickResult{JobID: jobID}, fmt.Errorf("jobrun: bad job id %q", jobID)
	}
	dbc := dbctx.Context{Ctx: ctx, Tx: a.DB}

	job, err := a.Jobs.GetByID(dbc, id)
	if err != nil {
		return TickResult{JobID: jobID}, err
	}
	if job == nil {
		return TickResult{JobID: jobID}, fmt.Errorf("jobrun: job %s not found", id)
	}
	if resultOf(job).terminal() {
		return resultOf(job), nil
	}

	claimed, err := a.claim(dbc, job)
	if err != nil || !claimed {
		return resultOf(job), err
	}

	exec := &jobrt.Executor{Log: a.Log, DB: a.DB, Repo: a.Jobs, Registry: a.Registry, Notify: a.Notify}
	updated, err := exec.Execute(ctx, job, func() { activity.RecordHeartbeat(ctx, job.Stage) })
	if err != nil {
		return resultOf(job), err
	}
	return resultOf(updated), nil
}

// claim marks the row running unless it was canceled or finished meanwhile.
func (a *Activities) claim(dbc dbctx.Context, job *jobs.JobRun) (bool, error) {
	now := time.Now().UTC()
	ok, err := a.Jobs.UpdateFieldsUnlessStatus(dbc, job.ID, []string{jobs.StatusCanceled, jobs.StatusSucceeded}, map[string]interface{}{
		"status":       jobs.StatusRunning,
		"attempts":     gorm.Expr("attempts + 1"),
		"locked_at":    now,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil || !ok {
		return false, err
	}
	job.Status = jobs.StatusRunning
	job.Attempts++
	job.LockedAt = &now
	job.HeartbeatAt = &now
	job.UpdatedAt = now
	return true, nil
}
