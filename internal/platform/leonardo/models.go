package leonardo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/storyboard-backend/internal/observability"
)

// SubmitTraining starts training a custom model on a dataset.
//
// The dataset is read first; a missing dataset fails with ErrDatasetNotReady and
// one with fewer than MinTrainingImages images with ErrInsufficientImages, both
// before anything is submitted. Submission is retried under the training policy;
// a quota or limit rejection stops immediately with ErrQuotaExceeded.
func (c *Client) SubmitTraining(ctx context.Context, req TrainingRequest) (*TrainingSubmission, error) {
	if strings.TrimSpace(req.DatasetID) == "" {
		return nil, fmt.Errorf("%w: dataset id required", ErrDatasetNotReady)
	}
	ds, err := c.GetDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetNotReady, err)
	}
	if n := len(ds.Images); n < c.cfg.MinTrainingImages {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientImages, n, c.cfg.MinTrainingImages)
	}

	modelType := req.ModelType
	if modelType == "" {
		modelType = "CHARACTERS"
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = ds.Name
	}
	body := trainingBody{
		Name:           name,
		Description:    req.Description,
		DatasetID:      req.DatasetID,
		InstancePrompt: req.InstancePrompt,
		ModelType:      modelType,
		Resolution:     768,
		SDVersion:      "v1_5",
		Strength:       "MEDIUM",
	}

	var (
		sub      *TrainingSubmission
		attempts int
	)
	p := c.trainingRetry
	p.OnRetry = func(n int, delay time.Duration, err error) {
		observability.Current().IncLeonardoRetry("models.submit")
		c.log.Warn("training submission failed, retrying", "dataset_id", req.DatasetID, "attempt", n, "sleep", delay.String(), "error", err)
	}
	err = p.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		var out trainingResponse
		if err := c.doOnce(ctx, call{op: "models.submit", method: http.MethodPost, path: "/models", body: body, out: &out}); err != nil {
			return err
		}
		if out.SDTrainingJob == nil || strings.TrimSpace(out.SDTrainingJob.CustomModelID) == "" {
			return &ServiceError{Op: "models.submit", Method: http.MethodPost, Path: "/models", StatusCode: http.StatusOK, Err: errors.New("response has no customModelId")}
		}
		sub = &TrainingSubmission{
			ModelID:    out.SDTrainingJob.CustomModelID,
			TrainingID: out.SDTrainingJob.ID,
		}
		if sub.TrainingID == "" {
			sub.TrainingID = sub.ModelID
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if isQuotaError(err) {
			c.log.Warn("training submission rejected by quota", "dataset_id", req.DatasetID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		c.log.Error("training submission failed", "dataset_id", req.DatasetID, "attempts", attempts, "error", err)
		return nil, fmt.Errorf("submit training after %d attempts: %w", attempts, err)
	}
	sub.Attempts = attempts
	c.log.Info("training submitted", "dataset_id", req.DatasetID, "model_id", sub.ModelID, "attempts", attempts)
	return sub, nil
}

// TrainingStatus is one status read for a custom model. QUEUED and unknown values are PENDING.
func (c *Client) TrainingStatus(ctx context.Context, modelID string) (TrainingStatus, error) {
	var out modelResponse
	if err := c.do(ctx, call{op: "models.get", method: http.MethodGet, path: "/models/" + url.PathEscape(modelID), out: &out}); err != nil {
		return TrainingPending, err
	}
	if out.CustomModelsByPK == nil {
		return TrainingPending, nil
	}
	return normalizeTrainingStatus(out.CustomModelsByPK.Status), nil
}
