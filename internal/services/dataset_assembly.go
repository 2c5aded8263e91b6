package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
)

type GenerationClient interface {
	Submit(ctx context.Context, req leonardo.GenerationRequest) (string, error)
	WaitUntilDone(ctx context.Context, jobID string, p poller.Policy) (poller.Outcome, error)
	FetchImages(ctx context.Context, jobID string) ([]leonardo.Image, error)
}

type DatasetClient interface {
	CreateDataset(ctx context.Context, spec leonardo.DatasetSpec) (string, error)
	UploadImage(ctx context.Context, datasetID, imageID string) error
}

type TrainingStarter interface {
	Start(ctx context.Context, in TrainingStartInput) (*storyboard.CustomModel, error)
}

type AssemblyConfig struct {
	PollInterval time.Duration
	PollMaxWait  time.Duration
}

func (c AssemblyConfig) withDefaults() AssemblyConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollMaxWait <= 0 {
		c.PollMaxWait = 600 * time.Second
	}
	return c
}

type AssemblyInput struct {
	JobID       string
	Username    string
	DatasetName string
	SeedImageID string
	Description string
	Catalog     storyboard.Catalog
	AutoTrain   bool
}

// DatasetAssembler builds a per-user training dataset: one seeded generation
// per catalog activity, uploaded in catalog order.
type DatasetAssembler struct {
	gen      GenerationClient
	datasets DatasetClient
	trainer  TrainingStarter
	cfg      AssemblyConfig
	log      *logger.Logger
}

// NewDatasetAssembler wires the assembler. trainer may be nil when auto-training is not offered.
func NewDatasetAssembler(baseLog *logger.Logger, gen GenerationClient, datasets DatasetClient, trainer TrainingStarter, cfg AssemblyConfig) *DatasetAssembler {
	return &DatasetAssembler{
		gen:      gen,
		datasets: datasets,
		trainer:  trainer,
		cfg:      cfg.withDefaults(),
		log:      baseLog.With("service", "DatasetAssembler"),
	}
}

// assemblyRun holds the one snapshot a run mutates; every change is pushed to the sink.
type assemblyRun struct {
	ctx  context.Context
	p    *storyboard.DatasetProgress
	sink ProgressSink
	log  *logger.Logger
}

func (r *assemblyRun) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.p.Logs = append(r.p.Logs, line)
	r.log.Debug("assembly", "job_id", r.p.JobID, "line", line)
}

func (r *assemblyRun) save() {
	r.p.UpdatedAt = time.Now().UTC()
	if r.sink == nil {
		return
	}
	// the final snapshot of a canceled run must still land
	ctx := context.WithoutCancel(r.ctx)
	if err := r.sink.Save(ctx, r.p); err != nil {
		r.log.Warn("progress save failed", "job_id", r.p.JobID, "error", err)
	}
}

func (r *assemblyRun) fail(format string, args ...any) {
	r.logf(format, args...)
	r.p.Status = storyboard.ProgressFailed
	r.save()
}

// Assemble runs the whole workflow and returns the final snapshot. It never
// panics and never returns an error; failures are recorded in the snapshot.
func (a *DatasetAssembler) Assemble(ctx context.Context, in AssemblyInput, sink ProgressSink) (result *storyboard.DatasetProgress) {
	catalog := in.Catalog
	if catalog.Len() == 0 {
		catalog = storyboard.DefaultCatalog()
	}
	run := &assemblyRun{
		ctx: ctx,
		p: &storyboard.DatasetProgress{
			JobID:           in.JobID,
			Found:           true,
			TotalActivities: catalog.Len(),
			Logs:            []string{},
			Pairs:           []storyboard.ActivityImage{},
			Status:          storyboard.ProgressStarting,
		},
		sink: sink,
		log:  a.log,
	}
	result = run.p

	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error("dataset assembly panic", "job_id", in.JobID, "panic", rec)
			run.fail("Assembly aborted: unexpected error: %v", rec)
		}
	}()

	run.logf("Starting dataset assembly with %d activities", catalog.Len())
	run.save()

	datasetName := strings.TrimSpace(in.DatasetName)
	if datasetName == "" {
		datasetName = fmt.Sprintf("%s-dataset", in.Username)
	}
	datasetID, err := a.datasets.CreateDataset(ctx, leonardo.DatasetSpec{
		Name:        datasetName,
		Description: in.Description,
		SeedImageID: in.SeedImageID,
	})
	if err != nil || datasetID == "" {
		if err == nil {
			err = errors.New("no dataset id returned")
		}
		run.fail("Dataset creation failed: %v", err)
		return result
	}
	run.p.DatasetID = &datasetID
	run.p.Status = storyboard.ProgressInProgress
	run.logf("Created dataset %s", datasetID)
	run.save()

	for i, activity := range catalog.Activities {
		if ctx.Err() != nil {
			run.fail("Assembly canceled before activity %q: %v", activity.Phrase, ctx.Err())
			return result
		}
		run.p.CurrentActivity = activity.Phrase
		ok := a.runActivity(run, datasetID, catalog, activity, i, in)
		if ctx.Err() != nil {
			run.fail("Assembly canceled during activity %q: %v", activity.Phrase, ctx.Err())
			return result
		}
		if ok {
			observability.Current().IncActivity("succeeded")
			run.p.Status = storyboard.ProgressInProgress
		} else {
			observability.Current().IncActivity("failed")
			run.p.Status = storyboard.ProgressError
		}
		run.p.CompletedActivities = i + 1
		run.save()
	}

	run.p.CurrentActivity = ""
	run.p.Status = storyboard.ProgressComplete
	run.logf("Dataset assembly complete: %d of %d images uploaded", len(run.p.Pairs), catalog.Len())
	run.save()

	if in.AutoTrain && a.trainer != nil {
		model, err := a.trainer.Start(ctx, TrainingStartInput{
			Username:    in.Username,
			DatasetID:   datasetID,
			Description: in.Description,
		})
		if err != nil {
			run.logf("Training could not start: %v", err)
		} else {
			run.p.ModelID = model.ModelID
			run.logf("Training started for model %s", model.ModelID)
		}
		run.save()
	}
	return result
}

// runActivity generates and uploads the image for one activity. It reports
// whether the activity produced at least one uploaded image.
func (a *DatasetAssembler) runActivity(run *assemblyRun, datasetID string, catalog storyboard.Catalog, activity storyboard.Activity, index int, in AssemblyInput) bool {
	ctx := run.ctx
	run.logf("Generating %q (%d/%d)", activity.Phrase, index+1, catalog.Len())
	run.save()

	jobID, err := a.gen.Submit(ctx, leonardo.GenerationRequest{
		Prompt:     catalog.Prompt(in.Description, activity),
		ImageCount: 1,
		Seed:       &leonardo.SeedReference{ImageID: in.SeedImageID, Strength: leonardo.SeedHigh},
	})
	if err != nil || jobID == "" {
		if err == nil {
			err = leonardo.ErrMissingJobID
		}
		run.logf("Generation for %q failed: %v", activity.Phrase, err)
		return false
	}

	outcome, err := a.gen.WaitUntilDone(ctx, jobID, poller.Policy{
		Interval: a.cfg.PollInterval,
		MaxWait:  a.cfg.PollMaxWait,
	})
	observability.Current().IncPollOutcome("generation", string(outcome))
	switch outcome {
	case poller.OutcomeComplete:
	case poller.OutcomeTimedOut:
		run.logf("Generation for %q timed out after %s", activity.Phrase, a.cfg.PollMaxWait)
		return false
	case poller.OutcomeFailed:
		run.logf("Generation for %q failed remotely", activity.Phrase)
		return false
	default:
		run.logf("Generation for %q interrupted: %v", activity.Phrase, err)
		return false
	}

	images, err := a.gen.FetchImages(ctx, jobID)
	if err != nil {
		run.logf("Fetching images for %q failed: %v", activity.Phrase, err)
		return false
	}
	if len(images) == 0 {
		run.logf("Generation for %q produced no images", activity.Phrase)
		return false
	}

	uploaded := 0
	for _, img := range images {
		if err := a.datasets.UploadImage(ctx, datasetID, img.ImageID); err != nil {
			run.logf("Upload of %q image %s failed: %v", activity.Phrase, img.ImageID, err)
			continue
		}
		uploaded++
		run.p.Pairs = append(run.p.Pairs, storyboard.ActivityImage{
			Activity: activity.Phrase,
			Index:    index,
			ImageID:  img.ImageID,
			URL:      img.URL,
		})
		run.logf("Uploaded %q image %s", activity.Phrase, img.ImageID)
	}
	return uploaded > 0
}
