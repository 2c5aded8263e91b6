package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/storyboard-backend/internal/data/repos/testutil"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
)

func testInput(catalog storyboard.Catalog) AssemblyInput {
	return AssemblyInput{
		JobID:       "job-1",
		Username:    "dave",
		SeedImageID: "img_42",
		Description: "a cheerful boy",
		Catalog:     catalog,
	}
}

func hasLog(p *storyboard.DatasetProgress, parts ...string) bool {
	for _, line := range p.Logs {
		ok := true
		for _, part := range parts {
			if !strings.Contains(line, part) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestAssembleAllActivitiesSucceed(t *testing.T) {
	gen := newFakeGen()
	ds := &fakeDatasets{id: "ds-1"}
	sink := &recordingSink{}
	a := NewDatasetAssembler(testutil.Logger(t), gen, ds, nil, AssemblyConfig{})

	p := a.Assemble(context.Background(), testInput(storyboard.NewCatalog("reading", "swimming")), sink)

	if p.Status != storyboard.ProgressComplete {
		t.Fatalf("status = %q, logs = %v", p.Status, p.Logs)
	}
	if p.CompletedActivities != 2 || p.TotalActivities != 2 {
		t.Fatalf("completed %d of %d", p.CompletedActivities, p.TotalActivities)
	}
	if p.DatasetID == nil || *p.DatasetID != "ds-1" {
		t.Fatalf("dataset id = %v", p.DatasetID)
	}
	if len(ds.uploads) != 2 || ds.uploads[0] != "img-1" || ds.uploads[1] != "img-2" {
		t.Fatalf("uploads = %v", ds.uploads)
	}
	if len(p.Pairs) != 2 || p.Pairs[0].Activity != "reading" || p.Pairs[1].Activity != "swimming" {
		t.Fatalf("pairs = %+v", p.Pairs)
	}
	if p.Pairs[1].Index != 1 || p.Pairs[1].URL == "" {
		t.Fatalf("pair detail = %+v", p.Pairs[1])
	}
	last := sink.snapshots[len(sink.snapshots)-1]
	if last.Status != storyboard.ProgressComplete {
		t.Fatalf("last saved status = %q", last.Status)
	}
}

func TestAssembleUploadFailureStillCompletes(t *testing.T) {
	gen := newFakeGen()
	ds := &fakeDatasets{id: "ds-1", failUpload: map[string]bool{"img-2": true}}
	a := NewDatasetAssembler(testutil.Logger(t), gen, ds, nil, AssemblyConfig{})

	p := a.Assemble(context.Background(), testInput(storyboard.NewCatalog("reading", "swimming")), &recordingSink{})

	if p.Status != storyboard.ProgressComplete {
		t.Fatalf("status = %q", p.Status)
	}
	if len(ds.uploads) != 1 || ds.uploads[0] != "img-1" {
		t.Fatalf("uploads = %v", ds.uploads)
	}
	if len(p.Pairs) != 1 || p.Pairs[0].Activity != "reading" {
		t.Fatalf("pairs = %+v", p.Pairs)
	}
	if !hasLog(p, "swimming", "failed") {
		t.Fatalf("no swimming failure in logs: %v", p.Logs)
	}
	if p.CompletedActivities != 2 {
		t.Fatalf("completed = %d", p.CompletedActivities)
	}
}

func TestAssembleDatasetCreationIsFatal(t *testing.T) {
	cases := []struct {
		name string
		ds   *fakeDatasets
	}{
		{"error", &fakeDatasets{createErr: errors.New("boom")}},
		{"empty id", &fakeDatasets{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newFakeGen()
			a := NewDatasetAssembler(testutil.Logger(t), gen, tc.ds, nil, AssemblyConfig{})

			p := a.Assemble(context.Background(), testInput(storyboard.NewCatalog("reading", "swimming")), &recordingSink{})

			if p.Status != storyboard.ProgressFailed {
				t.Fatalf("status = %q", p.Status)
			}
			if n := len(gen.Prompts()); n != 0 {
				t.Fatalf("generation calls = %d", n)
			}
			if len(tc.ds.uploads) != 0 {
				t.Fatalf("uploads = %v", tc.ds.uploads)
			}
			if p.DatasetID != nil {
				t.Fatalf("dataset id = %v", *p.DatasetID)
			}
			if !hasLog(p, "Dataset creation failed") {
				t.Fatalf("logs = %v", p.Logs)
			}
		})
	}
}

func TestAssembleIssuesGenerationsInCatalogOrder(t *testing.T) {
	catalog := storyboard.NewCatalog("reading", "swimming", "cooking", "painting", "running")
	gen := newFakeGen()
	sink := &recordingSink{}
	a := NewDatasetAssembler(testutil.Logger(t), gen, &fakeDatasets{id: "ds-1"}, nil, AssemblyConfig{})

	a.Assemble(context.Background(), testInput(catalog), sink)

	prompts := gen.Prompts()
	if len(prompts) != catalog.Len() {
		t.Fatalf("prompts = %v", prompts)
	}
	for i, act := range catalog.Activities {
		if !strings.Contains(prompts[i], act.Phrase) || !strings.Contains(prompts[i], "a cheerful boy") {
			t.Fatalf("prompt %d = %q, want %q", i, prompts[i], act.Phrase)
		}
	}
	prev := 0
	for _, snap := range sink.snapshots {
		if snap.CompletedActivities < prev || snap.CompletedActivities > catalog.Len() {
			t.Fatalf("completed_activities went %d -> %d", prev, snap.CompletedActivities)
		}
		prev = snap.CompletedActivities
	}
}

func TestAssembleContinuesAfterMissingJobID(t *testing.T) {
	gen := newFakeGen()
	gen.noIDFor["reading"] = true
	ds := &fakeDatasets{id: "ds-1"}
	sink := &recordingSink{}
	a := NewDatasetAssembler(testutil.Logger(t), gen, ds, nil, AssemblyConfig{})

	p := a.Assemble(context.Background(), testInput(storyboard.NewCatalog("reading", "swimming", "cooking")), sink)

	if n := len(gen.Prompts()); n != 3 {
		t.Fatalf("generation attempts = %d", n)
	}
	if !hasLog(p, "reading", leonardo.ErrMissingJobID.Error()) {
		t.Fatalf("logs = %v", p.Logs)
	}
	if len(p.Pairs) != 2 || p.Pairs[0].Activity != "swimming" || p.Pairs[1].Activity != "cooking" {
		t.Fatalf("pairs = %+v", p.Pairs)
	}
	sawError := false
	for _, snap := range sink.snapshots {
		if snap.Status == storyboard.ProgressError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an error status after the failed activity")
	}
}

func TestAssembleTimedOutGenerationIsLogged(t *testing.T) {
	gen := newFakeGen()
	gen.outcomes["gen-1"] = poller.OutcomeTimedOut
	gen.outcomes["gen-2"] = poller.OutcomeFailed
	a := NewDatasetAssembler(testutil.Logger(t), gen, &fakeDatasets{id: "ds-1"}, nil, AssemblyConfig{})

	p := a.Assemble(context.Background(), testInput(storyboard.NewCatalog("reading", "swimming")), nil)

	if p.Status != storyboard.ProgressComplete || len(p.Pairs) != 0 {
		t.Fatalf("status = %q pairs = %d", p.Status, len(p.Pairs))
	}
	if !hasLog(p, "reading", "timed out") || !hasLog(p, "swimming", "failed remotely") {
		t.Fatalf("logs = %v", p.Logs)
	}
}

func TestAssembleCanceledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := newFakeGen()
	a := NewDatasetAssembler(testutil.Logger(t), gen, &fakeDatasets{id: "ds-1"}, nil, AssemblyConfig{})

	p := a.Assemble(ctx, testInput(storyboard.NewCatalog("reading")), &recordingSink{})

	if p.Status != storyboard.ProgressFailed {
		t.Fatalf("status = %q", p.Status)
	}
	if len(gen.Prompts()) != 0 {
		t.Fatalf("generation issued after cancel")
	}
}

type fakeStarter struct {
	got TrainingStartInput
	err error
}

func (f *fakeStarter) Start(_ context.Context, in TrainingStartInput) (*storyboard.CustomModel, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &storyboard.CustomModel{ModelID: "model-1", DatasetID: in.DatasetID}, nil
}

func TestAssembleAutoTrainStartsTraining(t *testing.T) {
	starter := &fakeStarter{}
	a := NewDatasetAssembler(testutil.Logger(t), newFakeGen(), &fakeDatasets{id: "ds-1"}, starter, AssemblyConfig{})
	in := testInput(storyboard.NewCatalog("reading"))
	in.AutoTrain = true

	p := a.Assemble(context.Background(), in, nil)

	if starter.got.DatasetID != "ds-1" || starter.got.Username != "dave" {
		t.Fatalf("training input = %+v", starter.got)
	}
	if p.ModelID != "model-1" || p.Status != storyboard.ProgressComplete {
		t.Fatalf("model = %q status = %q", p.ModelID, p.Status)
	}
}

func TestAssembleEmptyCatalogUsesDefault(t *testing.T) {
	gen := newFakeGen()
	a := NewDatasetAssembler(testutil.Logger(t), gen, &fakeDatasets{id: "ds-1"}, nil, AssemblyConfig{})

	p := a.Assemble(context.Background(), testInput(storyboard.Catalog{}), nil)

	want := storyboard.DefaultCatalog().Len()
	if p.TotalActivities != want || len(gen.Prompts()) != want {
		t.Fatalf("total = %d prompts = %d, want %d", p.TotalActivities, len(gen.Prompts()), want)
	}
}
