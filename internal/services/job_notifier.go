package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/realtime"
)

// JobNotifier pushes job lifecycle events to the owner's SSE channel.
type JobNotifier interface {
	JobCreated(owner string, job *jobs.JobRun)
	JobProgress(owner string, job *jobs.JobRun, stage string, progress int, message string)
	JobFailed(owner string, job *jobs.JobRun, stage string, errorMessage string)
	JobDone(owner string, job *jobs.JobRun)
	JobCanceled(owner string, job *jobs.JobRun)
}

// jobEvent is the data of every job SSE message. Created and done events
// carry the full row.
type jobEvent struct {
	JobID    uuid.UUID    `json:"job_id"`
	JobType  string       `json:"job_type"`
	Stage    string       `json:"stage,omitempty"`
	Progress *int         `json:"progress,omitempty"`
	Message  string       `json:"message,omitempty"`
	Error    string       `json:"error,omitempty"`
	Job      *jobs.JobRun `json:"job,omitempty"`
}

type jobNotifier struct {
	emit SSEEmitter
}

// NewJobNotifier with a nil emitter drops every event.
func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) send(owner string, event realtime.SSEEvent, job *jobs.JobRun, fill func(*jobEvent)) {
	if n == nil || n.emit == nil || owner == "" || job == nil {
		return
	}
	data := jobEvent{JobID: job.ID, JobType: job.JobType}
	if fill != nil {
		fill(&data)
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: owner, Event: event, Data: data})
}

func (n *jobNotifier) JobCreated(owner string, job *jobs.JobRun) {
	n.send(owner, realtime.SSEEventJobCreated, job, func(e *jobEvent) { e.Job = job })
}

func (n *jobNotifier) JobProgress(owner string, job *jobs.JobRun, stage string, progress int, message string) {
	n.send(owner, realtime.SSEEventJobProgress, job, func(e *jobEvent) {
		e.Stage, e.Progress, e.Message = stage, &progress, message
	})
}

func (n *jobNotifier) JobFailed(owner string, job *jobs.JobRun, stage string, errorMessage string) {
	n.send(owner, realtime.SSEEventJobFailed, job, func(e *jobEvent) { e.Stage, e.Error = stage, errorMessage })
}

func (n *jobNotifier) JobDone(owner string, job *jobs.JobRun) {
	n.send(owner, realtime.SSEEventJobDone, job, func(e *jobEvent) { e.Job = job })
}

func (n *jobNotifier) JobCanceled(owner string, job *jobs.JobRun) {
	n.send(owner, realtime.SSEEventJobCanceled, job, nil)
}
