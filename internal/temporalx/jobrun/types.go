package jobrun

import (
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/services"
)

const (
	WorkflowName = services.JobRunWorkflow
	ActivityTick = "storyboard_job_run_tick"
)

// TickResult is the row state after one tick.
type TickResult struct {
	JobID    string `json:"job_id"`
	JobType  string `json:"job_type,omitempty"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	NoRetry  bool   `json:"no_retry,omitempty"`
}

func (r TickResult) terminal() bool {
	switch r.Status {
	case jobs.StatusSucceeded, jobs.StatusCanceled:
		return true
	case jobs.StatusFailed:
		return r.NoRetry
	}
	return false
}

func resultOf(job *jobs.JobRun) TickResult {
	return TickResult{
		JobID:    job.ID.String(),
		JobType:  job.JobType,
		Status:   job.Status,
		Stage:    job.Stage,
		Progress: job.Progress,
		Message:  job.Message,
		NoRetry:  job.NoRetry,
	}
}
