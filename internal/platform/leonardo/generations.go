package leonardo

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/yungbote/storyboard-backend/internal/platform/poller"
)

// Submit starts a generation job and returns its id. A 2xx response with no
// id yields ("", ErrMissingJobID).
func (c *Client) Submit(ctx context.Context, req GenerationRequest) (string, error) {
	if req.ImageCount < 1 || req.ImageCount > MaxImagesPerGeneration {
		return "", ErrInvalidImageCount
	}
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = c.cfg.ModelID
	}
	body := generationBody{
		Prompt:      req.Prompt,
		NumImages:   req.ImageCount,
		ModelID:     modelID,
		Width:       c.cfg.Width,
		Height:      c.cfg.Height,
		Alchemy:     c.cfg.Alchemy,
		PresetStyle: c.cfg.PresetStyle,
	}
	if req.Seed != nil && req.Seed.ImageID != "" {
		strength := req.Seed.Strength
		if strength != SeedLow {
			strength = SeedHigh
		}
		body.Controlnets = []controlnet{{
			InitImageID:    req.Seed.ImageID,
			InitImageType:  "GENERATED",
			PreprocessorID: CharacterReferencePreprocessor,
			StrengthType:   string(strength),
		}}
	}

	var out submitGenerationResponse
	if err := c.do(ctx, call{op: "generations.submit", method: http.MethodPost, path: "/generations", body: body, out: &out}); err != nil {
		return "", err
	}
	if out.SDGenerationJob == nil || strings.TrimSpace(out.SDGenerationJob.GenerationID) == "" {
		return "", ErrMissingJobID
	}
	id := out.SDGenerationJob.GenerationID
	c.log.Debug("generation submitted", "generation_id", id, "num_images", req.ImageCount, "seeded", req.Seed != nil)
	return id, nil
}

type generationView struct {
	Status GenerationStatus
	Images []Image
}

func generationCacheKey(id string) string { return "generation:" + id }

// getGeneration reads a generation, serving terminal results from cache.
func (c *Client) getGeneration(ctx context.Context, jobID string) (generationView, error) {
	if v, ok := c.cache.Get(generationCacheKey(jobID)); ok {
		return v.(generationView), nil
	}
	var out generationResponse
	if err := c.do(ctx, call{op: "generations.get", method: http.MethodGet, path: "/generations/" + url.PathEscape(jobID), out: &out}); err != nil {
		return generationView{Status: GenerationPending, Images: []Image{}}, err
	}
	view := generationView{Status: GenerationPending, Images: []Image{}}
	switch {
	case out.GenerationsByPK != nil:
		view.Status = normalizeGenerationStatus(out.GenerationsByPK.Status)
		view.Images = toImages(out.GenerationsByPK.GeneratedImages)
	case out.SDGenerationJob != nil:
		view.Status = normalizeGenerationStatus(out.SDGenerationJob.Status)
	}
	if view.Status.Terminal() {
		c.cache.Set(generationCacheKey(jobID), view, cache.DefaultExpiration)
	}
	return view, nil
}

// PollStatus is a single status read. Absent or unknown statuses are PENDING.
func (c *Client) PollStatus(ctx context.Context, jobID string) (GenerationStatus, error) {
	view, err := c.getGeneration(ctx, jobID)
	if err != nil {
		return GenerationPending, err
	}
	return view.Status, nil
}

// WaitUntilDone polls under p until the job is terminal or p is exhausted.
// Poll errors are logged and count as pending.
func (c *Client) WaitUntilDone(ctx context.Context, jobID string, p poller.Policy) (poller.Outcome, error) {
	return p.Wait(ctx, func(ctx context.Context) (poller.State, error) {
		st, err := c.PollStatus(ctx, jobID)
		if err != nil {
			return poller.Pending, err
		}
		switch st {
		case GenerationComplete:
			return poller.Done, nil
		case GenerationFailed:
			return poller.Failed, nil
		default:
			return poller.Pending, nil
		}
	}, func(attempt int, err error) {
		c.log.Warn("generation poll failed", "generation_id", jobID, "attempt", attempt, "error", err)
	})
}

// FetchImages returns the images a job produced, in server order. The slice is
// never nil, including on error.
func (c *Client) FetchImages(ctx context.Context, jobID string) ([]Image, error) {
	view, err := c.getGeneration(ctx, jobID)
	if err != nil {
		return []Image{}, err
	}
	return view.Images, nil
}

// GenerateWithModel submits a generation scoped to a trained custom model.
func (c *Client) GenerateWithModel(ctx context.Context, modelID, prompt string, imageCount int) (string, error) {
	return c.Submit(ctx, GenerationRequest{Prompt: prompt, ImageCount: imageCount, ModelID: modelID})
}
