package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
)

type TrainingClient interface {
	SubmitTraining(ctx context.Context, req leonardo.TrainingRequest) (*leonardo.TrainingSubmission, error)
	TrainingStatus(ctx context.Context, modelID string) (leonardo.TrainingStatus, error)
}

type TrainingStartInput struct {
	Username    string
	DatasetID   string
	Description string
}

type TrainingConfig struct {
	WatchInterval time.Duration
	WatchMaxPolls int
}

func (c TrainingConfig) withDefaults() TrainingConfig {
	if c.WatchInterval <= 0 {
		c.WatchInterval = 30 * time.Second
	}
	if c.WatchMaxPolls <= 0 {
		c.WatchMaxPolls = 60
	}
	return c
}

// TrainingOrchestrator starts custom model training and tracks it to a
// terminal status. Each username owns at most one model row.
type TrainingOrchestrator struct {
	client TrainingClient
	models repos.CustomModelRepo
	jobs   JobService
	cfg    TrainingConfig
	log    *logger.Logger
}

// NewTrainingOrchestrator wires the orchestrator. jobs may be nil, in which
// case no background watch is enqueued.
func NewTrainingOrchestrator(baseLog *logger.Logger, client TrainingClient, models repos.CustomModelRepo, jobs JobService, cfg TrainingConfig) *TrainingOrchestrator {
	return &TrainingOrchestrator{
		client: client,
		models: models,
		jobs:   jobs,
		cfg:    cfg.withDefaults(),
		log:    baseLog.With("service", "TrainingOrchestrator"),
	}
}

func (o *TrainingOrchestrator) Start(ctx context.Context, in TrainingStartInput) (*storyboard.CustomModel, error) {
	username := strings.TrimSpace(in.Username)
	datasetID := strings.TrimSpace(in.DatasetID)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", pkgerrors.ErrInvalidArgument)
	}
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset_id required", pkgerrors.ErrInvalidArgument)
	}

	sub, err := o.client.SubmitTraining(ctx, leonardo.TrainingRequest{
		DatasetID:      datasetID,
		Name:           username + "-model",
		Description:    in.Description,
		InstancePrompt: in.Description,
	})
	if err != nil {
		o.log.Warn("training start failed", "username", username, "dataset_id", datasetID, "error", err)
		return nil, fmt.Errorf("start training for dataset %s: %w", datasetID, err)
	}

	now := time.Now().UTC()
	model, err := o.models.Upsert(dbctx.New(ctx), &storyboard.CustomModel{
		ID:            uuid.New(),
		Username:      username,
		ModelID:       sub.ModelID,
		TrainingJobID: sub.TrainingID,
		DatasetID:     datasetID,
		Description:   in.Description,
		Status:        storyboard.TrainingTraining,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("save custom model: %w", err)
	}
	o.log.Info("training started", "username", username, "model_id", model.ModelID, "attempts", sub.Attempts)

	if o.jobs != nil {
		// one watch per remote submission; the row id survives a retrain
		entityID := model.ID
		if _, err := o.jobs.Enqueue(dbctx.New(ctx), JobRequest{
			Owner:      username,
			JobType:    JobTypeModelTrainWatch,
			EntityType: "custom_model",
			EntityID:   &entityID,
			Payload: map[string]any{
				"model_id": model.ModelID,
				"username": username,
			},
		}); err != nil {
			// the model row is the source of truth; a later watch can still be started
			o.log.Error("enqueue training watch failed", "model_id", model.ModelID, "error", err)
		}
	}
	return model, nil
}

// ErrModelReplaced ends a watch whose model id no longer backs any row, which
// happens when the user started another training run.
var ErrModelReplaced = errors.New("custom model replaced by a newer training run")

// Watch polls the training status until it is terminal or the poll budget is
// spent. Every read is persisted against the model id.
func (o *TrainingOrchestrator) Watch(ctx context.Context, modelID string) (poller.Outcome, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return poller.OutcomeFailed, fmt.Errorf("%w: model_id required", pkgerrors.ErrInvalidArgument)
	}
	policy := poller.Policy{Interval: o.cfg.WatchInterval, MaxAttempts: o.cfg.WatchMaxPolls}

	last := leonardo.TrainingPending
	replaced := false
	outcome, err := policy.Wait(ctx, func(ctx context.Context) (poller.State, error) {
		current, err := o.models.GetByModelID(dbctx.New(ctx), modelID)
		if err != nil {
			return poller.Pending, err
		}
		if current == nil {
			replaced = true
			return poller.Failed, nil
		}
		st, err := o.client.TrainingStatus(ctx, modelID)
		if err != nil {
			return poller.Pending, err
		}
		last = st
		if _, perr := o.models.UpdateStatusByModelID(dbctx.New(ctx), modelID, string(st)); perr != nil {
			o.log.Warn("persist training status failed", "model_id", modelID, "status", st, "error", perr)
		}
		switch st {
		case leonardo.TrainingComplete:
			return poller.Done, nil
		case leonardo.TrainingFailed:
			return poller.Failed, nil
		}
		return poller.Pending, nil
	}, func(attempt int, err error) {
		o.log.Warn("training status poll failed", "model_id", modelID, "attempt", attempt, "error", err)
	})
	if replaced {
		observability.Current().IncPollOutcome("training", "replaced")
		o.log.Info("training watch stopped; model replaced", "model_id", modelID)
		return poller.OutcomeCanceled, ErrModelReplaced
	}
	observability.Current().IncPollOutcome("training", string(outcome))
	o.log.Info("training watch finished", "model_id", modelID, "outcome", outcome, "last_status", last)
	return outcome, err
}

func (o *TrainingOrchestrator) CurrentModel(ctx context.Context, username string) (*storyboard.CustomModel, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", pkgerrors.ErrInvalidArgument)
	}
	m, err := o.models.GetByUsername(dbctx.New(ctx), username)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("custom model for %s: %w", username, pkgerrors.ErrNotFound)
	}
	return m, nil
}

// IsTrainingPrecondition reports whether err means the dataset was not ready,
// so callers can answer with a client error instead of a server one.
func IsTrainingPrecondition(err error) bool {
	return errors.Is(err, leonardo.ErrDatasetNotReady) || errors.Is(err, leonardo.ErrInsufficientImages)
}
