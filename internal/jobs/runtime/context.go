package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/pkg/ctxutil"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	"github.com/yungbote/storyboard-backend/internal/services"
)

// Context is what a handler sees of one job run. Status changes go through
// Progress, Fail, FailFinal and Succeed, none of which touch a canceled row. Ctx is
// canceled when the row is canceled or the process shuts down.
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *jobs.JobRun
	Repo   repos.JobRunRepo
	Notify services.JobNotifier

	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *jobs.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{Ctx: ctx, DB: db, Job: job, Repo: repo, Notify: notify, payload: map[string]any{}}
	if job != nil && len(job.Payload) > 0 {
		var m map[string]any
		if json.Unmarshal(job.Payload, &m) == nil && m != nil {
			c.payload = m
		}
	}
	// requests carry their trace ids through the payload into the worker's logs
	if trace, req := c.PayloadString("trace_id"), c.PayloadString("request_id"); ctx != nil && (trace != "" || req != "") {
		c.Ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TraceID: trace, RequestID: req})
	}
	return c
}

func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	switch v := c.Payload()[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// PayloadInt returns def when key is missing or not a number.
func (c *Context) PayloadInt(key string, def int) int {
	switch v := c.Payload()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func (c *Context) PayloadBool(key string) bool {
	b, _ := c.Payload()[key].(bool)
	return b
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PayloadString(key))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// JobID is nil when the run has no persisted row.
func (c *Context) JobID() *uuid.UUID {
	if c == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return nil
	}
	id := c.Job.ID
	return &id
}

func (c *Context) Canceled() bool {
	return c != nil && c.Ctx != nil && c.Ctx.Err() != nil
}

// write applies updates unless the row was canceled. Writes outlive Ctx so a
// canceled handler can still record how it ended.
func (c *Context) write(updates map[string]interface{}) bool {
	if c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return true
	}
	ctx := context.Background()
	if c.Ctx != nil {
		ctx = context.WithoutCancel(c.Ctx)
	}
	ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, []string{jobs.StatusCanceled}, updates)
	return ok
}

func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	if !c.write(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
		"updated_at":   now,
	}) || c.Job == nil {
		return
	}
	c.Job.Stage, c.Job.Progress, c.Job.Message = stage, pct, msg
	c.Job.HeartbeatAt, c.Job.UpdatedAt = &now, now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job.Owner, c.Job, stage, pct, msg)
	}
}

// Fail marks the run failed. The worker may claim it again while it has
// attempts left.
func (c *Context) Fail(stage string, err error) {
	c.fail(stage, err, false)
}

// FailFinal marks the run failed for good. The row is never claimed again.
func (c *Context) FailFinal(stage string, err error) {
	c.fail(stage, err, true)
}

func (c *Context) fail(stage string, err error, final bool) {
	if c == nil {
		return
	}
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        jobs.StatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         reason,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}
	if final {
		updates["no_retry"] = true
	}
	if !c.write(updates) || c.Job == nil {
		return
	}
	c.Job.Status, c.Job.Stage, c.Job.Message, c.Job.Error = jobs.StatusFailed, stage, "", reason
	c.Job.LastErrorAt, c.Job.LockedAt, c.Job.UpdatedAt = &now, nil, now
	c.Job.NoRetry = c.Job.NoRetry || final
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job.Owner, c.Job, stage, reason)
	}
}

// Succeed finishes the run. A nil result leaves job_run.result as it is, which
// is how pipelines that already stored their own snapshot keep it.
func (c *Context) Succeed(stage string, result any) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       jobs.StatusSucceeded,
		"stage":        stage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	}
	var stored datatypes.JSON
	if result != nil {
		raw, _ := json.Marshal(result)
		stored = datatypes.JSON(raw)
		updates["result"] = stored
	}
	if !c.write(updates) || c.Job == nil {
		return
	}
	c.Job.Status, c.Job.Stage, c.Job.Progress = jobs.StatusSucceeded, stage, 100
	c.Job.Message, c.Job.Error = "", ""
	if stored != nil {
		c.Job.Result = stored
	}
	c.Job.LockedAt, c.Job.HeartbeatAt, c.Job.UpdatedAt = nil, &now, now
	if c.Notify != nil {
		c.Notify.JobDone(c.Job.Owner, c.Job)
	}
}
