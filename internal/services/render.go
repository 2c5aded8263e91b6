package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
	"github.com/yungbote/storyboard-backend/internal/platform/leonardo"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/poller"
)

var ErrModelNotReady = errors.New("custom model is not trained yet")

type ModelGenerationClient interface {
	GenerateWithModel(ctx context.Context, modelID, prompt string, imageCount int) (string, error)
	WaitUntilDone(ctx context.Context, jobID string, p poller.Policy) (poller.Outcome, error)
	FetchImages(ctx context.Context, jobID string) ([]leonardo.Image, error)
}

type SheetUploader interface {
	ComposeAndUpload(ctx context.Context, username, key string, panels []Panel) (string, error)
}

type RenderConfig struct {
	Concurrency int
	Wait        poller.Policy
}

type RenderResult struct {
	DiaryID  uuid.UUID                    `json:"diary_id"`
	Rendered int                          `json:"rendered"`
	Failed   []int                        `json:"failed"`
	Images   []*storyboard.GeneratedImage `json:"images"`
	SheetURL string                       `json:"sheet_url,omitempty"`
}

// RenderService draws every scene of a diary with the owner's custom model.
type RenderService struct {
	gen     ModelGenerationClient
	entries repos.DiaryEntryRepo
	models  repos.CustomModelRepo
	images  repos.GeneratedImageRepo
	sheets  SheetUploader
	jobs    JobService
	cfg     RenderConfig
	log     *logger.Logger
}

// NewRenderService wires rendering. sheets may be nil to skip the storyboard sheet.
func NewRenderService(
	baseLog *logger.Logger,
	gen ModelGenerationClient,
	entries repos.DiaryEntryRepo,
	models repos.CustomModelRepo,
	images repos.GeneratedImageRepo,
	sheets SheetUploader,
	jobs JobService,
	cfg RenderConfig,
) *RenderService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.Wait.Interval <= 0 {
		cfg.Wait.Interval = 5 * time.Second
	}
	if cfg.Wait.MaxAttempts <= 0 && cfg.Wait.MaxWait <= 0 {
		cfg.Wait.MaxWait = 5 * time.Minute
	}
	return &RenderService{
		gen:     gen,
		entries: entries,
		models:  models,
		images:  images,
		sheets:  sheets,
		jobs:    jobs,
		cfg:     cfg,
		log:     baseLog.With("service", "RenderService"),
	}
}

func (s *RenderService) loadForRender(ctx context.Context, diaryID uuid.UUID) (*storyboard.DiaryEntry, *storyboard.CustomModel, error) {
	entry, err := s.entries.GetByID(dbctx.New(ctx), diaryID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("diary %s: %w", diaryID, pkgerrors.ErrNotFound)
	}
	model, err := s.models.GetByUsername(dbctx.New(ctx), entry.Username)
	if err != nil {
		return nil, nil, err
	}
	if !model.Ready() {
		return entry, model, fmt.Errorf("%w: %w", pkgerrors.ErrConflict, ErrModelNotReady)
	}
	return entry, model, nil
}

// Request enqueues a scene_render job for the diary. A render already queued
// or running for the same diary is returned instead of a new one.
func (s *RenderService) Request(ctx context.Context, diaryID uuid.UUID) (*jobs.JobRun, error) {
	entry, _, err := s.loadForRender(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	if len(DiaryScenes(entry)) == 0 {
		return nil, fmt.Errorf("%w: diary has no scenes", pkgerrors.ErrInvalidArgument)
	}
	id := entry.ID
	req := JobRequest{
		Owner:      entry.Username,
		JobType:    JobTypeSceneRender,
		EntityType: "diary_entry",
		EntityID:   &id,
		Payload:    map[string]any{"diary_id": id.String()},
	}
	job, created, err := s.jobs.EnqueueIfIdle(dbctx.New(ctx), req)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.jobs.LatestForEntity(dbctx.New(ctx), entry.Username, "diary_entry", entry.ID, JobTypeSceneRender)
	}
	return job, nil
}

// Render generates one image per scene with bounded concurrency, stores them
// and composes the storyboard sheet. progress is called after each scene.
func (s *RenderService) Render(ctx context.Context, jobRunID *uuid.UUID, diaryID uuid.UUID, progress func(done, total int)) (*RenderResult, error) {
	entry, model, err := s.loadForRender(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	scenes := DiaryScenes(entry)
	result := &RenderResult{DiaryID: diaryID, Failed: []int{}, Images: []*storyboard.GeneratedImage{}}
	if len(scenes) == 0 {
		return result, nil
	}

	var (
		mu    sync.Mutex
		done  int
		found = make([]*storyboard.GeneratedImage, len(scenes))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, scene := range scenes {
		g.Go(func() error {
			img, err := s.renderScene(gctx, model, scene)
			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("scene render failed", "diary_id", diaryID, "scene_index", i, "error", err)
				result.Failed = append(result.Failed, i)
			} else {
				found[i] = &storyboard.GeneratedImage{
					ID:           uuid.New(),
					DiaryEntryID: &entry.ID,
					Username:     entry.Username,
					JobRunID:     jobRunID,
					GenerationID: img.generationID,
					ImageID:      img.ImageID,
					ImageURL:     img.URL,
					Description:  scene,
					Kind:         storyboard.ImageKindScene,
					SceneIndex:   i,
					CreatedAt:    time.Now().UTC(),
				}
			}
			if progress != nil {
				progress(done, len(scenes))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	sort.Ints(result.Failed)

	panels := make([]Panel, 0, len(scenes))
	for i, scene := range scenes {
		p := Panel{Caption: scene}
		if found[i] != nil {
			result.Images = append(result.Images, found[i])
			p.ImageURL = found[i].ImageURL
		}
		panels = append(panels, p)
	}
	result.Rendered = len(result.Images)
	if result.Rendered > 0 {
		if _, err := s.images.Create(dbctx.New(ctx), result.Images); err != nil {
			return result, fmt.Errorf("save scene images: %w", err)
		}
	}

	if s.sheets != nil && result.Rendered > 0 {
		url, err := s.sheets.ComposeAndUpload(ctx, entry.Username, entry.ID.String(), panels)
		if err != nil {
			s.log.Warn("storyboard sheet failed", "diary_id", diaryID, "error", err)
		} else {
			result.SheetURL = url
			if err := s.entries.UpdateFields(dbctx.New(ctx), entry.ID, map[string]interface{}{
				"sheet_url":  url,
				"updated_at": time.Now().UTC(),
			}); err != nil {
				return result, fmt.Errorf("save sheet url: %w", err)
			}
		}
	}
	s.log.Info("diary rendered", "diary_id", diaryID, "rendered", result.Rendered, "failed", len(result.Failed))
	return result, nil
}

type renderedImage struct {
	leonardo.Image
	generationID string
}

func (s *RenderService) renderScene(ctx context.Context, model *storyboard.CustomModel, scene string) (*renderedImage, error) {
	prompt := scene
	if d := strings.TrimSpace(model.Description); d != "" {
		prompt = d + ", " + scene
	}
	genID, err := s.gen.GenerateWithModel(ctx, model.ModelID, prompt, 1)
	if err != nil {
		return nil, err
	}
	if genID == "" {
		return nil, leonardo.ErrMissingJobID
	}
	outcome, err := s.gen.WaitUntilDone(ctx, genID, s.cfg.Wait)
	observability.Current().IncPollOutcome("render", string(outcome))
	if outcome != poller.OutcomeComplete {
		if err == nil {
			err = fmt.Errorf("generation %s ended %s", genID, outcome)
		}
		return nil, err
	}
	imgs, err := s.gen.FetchImages(ctx, genID)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("generation %s produced no images", genID)
	}
	return &renderedImage{Image: imgs[0], generationID: genID}, nil
}
