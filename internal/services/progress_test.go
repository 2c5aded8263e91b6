package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/data/repos/testutil"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
)

func TestProgressReadUnknownJob(t *testing.T) {
	r := NewProgressReporter(NewMemoryProgressStore(), testutil.Logger(t))
	for _, id := range []string{"", "nope", uuid.NewString()} {
		got := r.Read(context.Background(), id)
		if got.Found || got.Status != storyboard.ProgressNotFound {
			t.Fatalf("Read(%q) = found %v status %q", id, got.Found, got.Status)
		}
		if got.Logs == nil || got.Pairs == nil {
			t.Fatalf("Read(%q) returned nil slices", id)
		}
	}
}

func TestMemoryProgressStoreCopies(t *testing.T) {
	store := NewMemoryProgressStore()
	ctx := context.Background()
	p := &storyboard.DatasetProgress{JobID: "j1", Status: storyboard.ProgressInProgress, Logs: []string{"a"}}
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p.Logs = append(p.Logs, "b")

	got, err := store.Load(ctx, "j1")
	if err != nil || got == nil {
		t.Fatalf("Load: %v %v", got, err)
	}
	if len(got.Logs) != 1 {
		t.Fatalf("stored snapshot aliased caller: %v", got.Logs)
	}
	if err := store.Save(ctx, &storyboard.DatasetProgress{}); err == nil {
		t.Fatalf("expected error for snapshot without job id")
	}
}

func TestMemoryReporterFollowsAssembly(t *testing.T) {
	store := NewMemoryProgressStore()
	a := NewDatasetAssembler(testutil.Logger(t), newFakeGen(), &fakeDatasets{id: "ds-1"}, nil, AssemblyConfig{})
	a.Assemble(context.Background(), testInput(storyboard.NewCatalog("reading", "swimming")), store)

	got := NewProgressReporter(store, testutil.Logger(t)).Read(context.Background(), "job-1")
	if !got.Found || got.Status != storyboard.ProgressComplete || len(got.Pairs) != 2 {
		t.Fatalf("progress = %+v", got)
	}
}

func newDBJobService(t *testing.T) (JobService, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewJobRunRepo(db, log)
	return NewJobService(db, log, repo, NewJobNotifier(nil), nil, ""), repo
}

func TestJobRunProgressStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	jobsSvc, repo := newDBJobService(t)
	log := testutil.Logger(t)
	datasets := NewDatasetService(jobsSvc, storyboard.NewCatalog("reading", "swimming"))

	job, err := datasets.Request(ctx, DatasetRequest{Username: "dave", Description: "a cheerful boy", SeedImageID: "img_42"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	store := NewJobRunProgressStore(repo, log)
	reporter := NewProgressReporter(store, log)

	got := reporter.Read(ctx, job.ID.String())
	if !got.Found || got.Status != storyboard.ProgressStarting || got.TotalActivities != 2 {
		t.Fatalf("initial progress = %+v", got)
	}

	dsID := "ds-1"
	if err := store.Save(ctx, &storyboard.DatasetProgress{
		JobID:               job.ID.String(),
		Found:               true,
		DatasetID:           &dsID,
		CompletedActivities: 1,
		TotalActivities:     2,
		Status:              storyboard.ProgressInProgress,
		Logs:                []string{"Uploaded reading"},
		Pairs:               []storyboard.ActivityImage{{Activity: "reading", ImageID: "img-1"}},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got = reporter.Read(ctx, job.ID.String())
	if got.CompletedActivities != 1 || got.DatasetID == nil || *got.DatasetID != "ds-1" || len(got.Pairs) != 1 {
		t.Fatalf("saved progress = %+v", got)
	}
	row, err := repo.GetByID(dbctx.New(ctx), job.ID)
	if err != nil || row == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Progress != 50 || row.Message != "Uploaded reading" {
		t.Fatalf("job row progress = %d message = %q", row.Progress, row.Message)
	}
}

func TestJobRunProgressReconcilesCanceledRun(t *testing.T) {
	ctx := context.Background()
	jobsSvc, repo := newDBJobService(t)
	log := testutil.Logger(t)
	datasets := NewDatasetService(jobsSvc, storyboard.NewCatalog("reading"))

	job, err := datasets.Request(ctx, DatasetRequest{Username: "erin", Description: "a calm girl", SeedImageID: "img_7"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := jobsSvc.Cancel(dbctx.New(ctx), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got := NewProgressReporter(NewJobRunProgressStore(repo, log), log).Read(ctx, job.ID.String())
	if !got.Found || got.Status != storyboard.ProgressFailed {
		t.Fatalf("progress after cancel = %+v", got)
	}
	if !hasLog(&got, "canceled") {
		t.Fatalf("logs = %v", got.Logs)
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		p    storyboard.DatasetProgress
		want int
	}{
		{storyboard.DatasetProgress{}, 0},
		{storyboard.DatasetProgress{CompletedActivities: 3, TotalActivities: 9}, 33},
		{storyboard.DatasetProgress{CompletedActivities: 9, TotalActivities: 9, Status: storyboard.ProgressInProgress}, 99},
		{storyboard.DatasetProgress{CompletedActivities: 9, TotalActivities: 9, Status: storyboard.ProgressComplete}, 100},
	}
	for _, tc := range cases {
		if got := tc.p.Percent(); got != tc.want {
			t.Fatalf("Percent(%d/%d %s) = %d, want %d", tc.p.CompletedActivities, tc.p.TotalActivities, tc.p.Status, got, tc.want)
		}
	}
}
