package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/data/repos/testutil"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
)

type handlerFunc struct {
	typ string
	run func(*Context) error
}

func (h handlerFunc) Type() string           { return h.typ }
func (h handlerFunc) Run(ctx *Context) error { return h.run(ctx) }

func newExecutor(t *testing.T, hs ...Handler) (*Executor, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)
	reg := NewRegistry()
	for _, h := range hs {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return &Executor{Log: log, DB: db, Repo: repo, Registry: reg, HeartbeatInterval: 5 * time.Millisecond}, repo
}

func runningJob(t *testing.T, repo repos.JobRunRepo, jobType string, payload string) *jobs.JobRun {
	t.Helper()
	now := time.Now().UTC()
	job := &jobs.JobRun{
		ID:        uuid.New(),
		Owner:     "dave",
		JobType:   jobType,
		Status:    jobs.StatusRunning,
		Stage:     jobs.StatusRunning,
		Payload:   datatypes.JSON([]byte(payload)),
		Result:    datatypes.JSON([]byte("{}")),
		LockedAt:  &now,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := repo.Create(dbctx.New(context.Background()), []*jobs.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestExecuteSucceeded(t *testing.T) {
	e, repo := newExecutor(t, handlerFunc{typ: "ok", run: func(c *Context) error {
		if c.PayloadString("username") != "dave" || c.PayloadInt("n", 0) != 3 || !c.PayloadBool("flag") {
			return errors.New("payload not decoded")
		}
		c.Progress("working", 50, "half")
		c.Succeed("done", map[string]any{"rendered": 3})
		return nil
	}})
	job := runningJob(t, repo, "ok", `{"username":"dave","n":3,"flag":true}`)

	got, err := e.Execute(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Status != jobs.StatusSucceeded || got.Stage != "done" || got.Progress != 100 || got.LockedAt != nil {
		t.Fatalf("row = %+v", got)
	}
	if string(got.Result) != `{"rendered":3}` {
		t.Fatalf("result = %s", got.Result)
	}
}

func TestExecuteNilReturnMarksSucceeded(t *testing.T) {
	e, repo := newExecutor(t, handlerFunc{typ: "quiet", run: func(c *Context) error {
		c.Progress("rendering", 80, "almost")
		return nil
	}})
	job := runningJob(t, repo, "quiet", `{}`)

	got, err := e.Execute(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Status != jobs.StatusSucceeded || got.Stage != "rendering" {
		t.Fatalf("status = %q stage = %q", got.Status, got.Stage)
	}
}

func TestExecuteFailures(t *testing.T) {
	e, repo := newExecutor(t,
		handlerFunc{typ: "err", run: func(*Context) error { return errors.New("remote down") }},
		handlerFunc{typ: "boom", run: func(*Context) error { panic("bad state") }},
	)
	cases := []struct {
		jobType   string
		wantStage string
		wantErr   string
	}{
		{"err", "run", "remote down"},
		{"boom", "panic", "panic: bad state"},
		{"unknown", "dispatch", "no handler registered for job_type=unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.jobType, func(t *testing.T) {
			job := runningJob(t, repo, tc.jobType, `{}`)
			got, err := e.Execute(context.Background(), job, nil)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got.Status != jobs.StatusFailed || got.Stage != tc.wantStage || got.Error != tc.wantErr {
				t.Fatalf("row status=%q stage=%q error=%q", got.Status, got.Stage, got.Error)
			}
			if got.LockedAt != nil || got.LastErrorAt == nil {
				t.Fatalf("lock not released: %+v", got)
			}
		})
	}
}

func TestExecuteStopsOnCancel(t *testing.T) {
	started := make(chan struct{})
	e, repo := newExecutor(t, handlerFunc{typ: "slow", run: func(c *Context) error {
		close(started)
		select {
		case <-c.Ctx.Done():
			return c.Ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("handler was not canceled")
		}
	}})
	job := runningJob(t, repo, "slow", `{}`)

	go func() {
		<-started
		_ = repo.UpdateFields(dbctx.New(context.Background()), job.ID, map[string]interface{}{
			"status":    jobs.StatusCanceled,
			"locked_at": nil,
		})
	}()

	var beats atomic.Int32
	got, err := e.Execute(context.Background(), job, func() { beats.Add(1) })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Status != jobs.StatusCanceled {
		t.Fatalf("status = %q, want canceled to stick", got.Status)
	}
	if beats.Load() == 0 {
		t.Fatalf("heartbeat callback never ran")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	h := handlerFunc{typ: "a", run: func(*Context) error { return nil }}
	if err := reg.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(h); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := reg.Register(handlerFunc{run: h.run}); err == nil {
		t.Fatalf("expected empty type error")
	}
	if err := reg.Register(nil); err == nil {
		t.Fatalf("expected nil handler error")
	}
	if types := reg.Types(); len(types) != 1 || types[0] != "a" {
		t.Fatalf("types = %v", types)
	}
}
