package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

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

const (
	DefaultCharacterImages  = 4
	MaxCharacterImages      = 10
	MaxCharacterDescription = 255
)

// GenerationStatusClient reads a remote generation without waiting on it.
type GenerationStatusClient interface {
	PollStatus(ctx context.Context, jobID string) (leonardo.GenerationStatus, error)
	FetchImages(ctx context.Context, jobID string) ([]leonardo.Image, error)
}

type CharacterRequest struct {
	Username    string `json:"username"`
	Description string `json:"description"`
	NumImages   int    `json:"num_images"`
}

// Normalize trims the request, applies the default image count and validates it.
func (r *CharacterRequest) Normalize() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Description = strings.TrimSpace(r.Description)
	if r.Username == "" {
		return fmt.Errorf("%w: username required", pkgerrors.ErrInvalidArgument)
	}
	if r.Description == "" {
		return fmt.Errorf("%w: description required", pkgerrors.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(r.Description) > MaxCharacterDescription {
		return fmt.Errorf("%w: description longer than %d characters", pkgerrors.ErrInvalidArgument, MaxCharacterDescription)
	}
	if r.NumImages == 0 {
		r.NumImages = DefaultCharacterImages
	}
	if r.NumImages < 1 || r.NumImages > MaxCharacterImages {
		return fmt.Errorf("%w: num_images must be between 1 and %d", pkgerrors.ErrInvalidArgument, MaxCharacterImages)
	}
	return nil
}

type CharacterResult struct {
	GenerationID string                       `json:"generation_id"`
	Outcome      poller.Outcome               `json:"outcome"`
	Images       []*storyboard.GeneratedImage `json:"images"`
}

type CharacterService struct {
	gen     GenerationClient
	status  GenerationStatusClient
	records repos.GenerationRecordRepo
	images  repos.GeneratedImageRepo
	jobs    JobService
	wait    poller.Policy
	log     *logger.Logger
}

func NewCharacterService(
	baseLog *logger.Logger,
	gen GenerationClient,
	status GenerationStatusClient,
	records repos.GenerationRecordRepo,
	images repos.GeneratedImageRepo,
	jobs JobService,
	wait poller.Policy,
) *CharacterService {
	if wait.Interval <= 0 {
		wait.Interval = 5 * time.Second
	}
	if wait.MaxAttempts <= 0 && wait.MaxWait <= 0 {
		wait.MaxAttempts = 12
	}
	return &CharacterService{
		gen:     gen,
		status:  status,
		records: records,
		images:  images,
		jobs:    jobs,
		wait:    wait,
		log:     baseLog.With("service", "CharacterService"),
	}
}

// Request validates and enqueues a character_generate job.
func (s *CharacterService) Request(ctx context.Context, req CharacterRequest) (*jobs.JobRun, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	return s.jobs.Enqueue(dbctx.New(ctx), JobRequest{
		Owner:   req.Username,
		JobType: JobTypeCharacterGenerate,
		Payload: map[string]any{
			"username":    req.Username,
			"description": req.Description,
			"num_images":  req.NumImages,
		},
	})
}

// Generate submits an unseeded generation for the description, waits for it
// and stores the resulting images as character candidates.
func (s *CharacterService) Generate(ctx context.Context, jobRunID *uuid.UUID, req CharacterRequest) (*CharacterResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	genID, err := s.gen.Submit(ctx, leonardo.GenerationRequest{Prompt: req.Description, ImageCount: req.NumImages})
	if err != nil {
		return nil, fmt.Errorf("submit character generation: %w", err)
	}
	if genID == "" {
		return nil, leonardo.ErrMissingJobID
	}

	now := time.Now().UTC()
	rec := &storyboard.GenerationRecord{
		GenerationID: genID,
		Username:     req.Username,
		Prompt:       req.Description,
		ImageCount:   req.NumImages,
		Status:       storyboard.GenerationPending,
		Images:       datatypes.JSON(`[]`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.records.Save(dbctx.New(ctx), rec); err != nil {
		return nil, fmt.Errorf("save generation record: %w", err)
	}

	outcome, err := s.gen.WaitUntilDone(ctx, genID, s.wait)
	observability.Current().IncPollOutcome("generation", string(outcome))
	result := &CharacterResult{GenerationID: genID, Outcome: outcome, Images: []*storyboard.GeneratedImage{}}
	switch outcome {
	case poller.OutcomeComplete:
	case poller.OutcomeFailed:
		rec.Status = storyboard.GenerationFailed
		s.saveRecord(ctx, rec)
		return result, fmt.Errorf("character generation %s failed", genID)
	case poller.OutcomeTimedOut:
		// the record stays PENDING so a later status read can still pick the images up
		return result, fmt.Errorf("character generation %s timed out", genID)
	default:
		return result, fmt.Errorf("character generation %s interrupted: %w", genID, err)
	}

	imgs, err := s.gen.FetchImages(ctx, genID)
	if err != nil {
		return result, fmt.Errorf("fetch character images: %w", err)
	}
	rec.Status = storyboard.GenerationComplete
	rec.Images = imagesJSON(imgs)
	s.saveRecord(ctx, rec)

	rows := make([]*storyboard.GeneratedImage, 0, len(imgs))
	for _, img := range imgs {
		rows = append(rows, &storyboard.GeneratedImage{
			ID:           uuid.New(),
			Username:     req.Username,
			JobRunID:     jobRunID,
			GenerationID: genID,
			ImageID:      img.ImageID,
			ImageURL:     img.URL,
			Description:  req.Description,
			Kind:         storyboard.ImageKindCharacter,
			CreatedAt:    time.Now().UTC(),
		})
	}
	if len(rows) > 0 {
		if _, err := s.images.Create(dbctx.New(ctx), rows); err != nil {
			return result, fmt.Errorf("save character images: %w", err)
		}
	}
	result.Images = rows
	s.log.Info("character generated", "username", req.Username, "generation_id", genID, "images", len(rows))
	return result, nil
}

func (s *CharacterService) saveRecord(ctx context.Context, rec *storyboard.GenerationRecord) {
	rec.UpdatedAt = time.Now().UTC()
	if err := s.records.Save(dbctx.New(context.WithoutCancel(ctx)), rec); err != nil {
		s.log.Warn("update generation record failed", "generation_id", rec.GenerationID, "error", err)
	}
}

// GenerationStatus returns the stored generation, refreshing it from the
// remote service while it is not terminal. Unknown ids are read remotely.
func (s *CharacterService) GenerationStatus(ctx context.Context, generationID string) (*storyboard.GenerationRecord, error) {
	generationID = strings.TrimSpace(generationID)
	if generationID == "" {
		return nil, fmt.Errorf("%w: generation id required", pkgerrors.ErrInvalidArgument)
	}
	rec, err := s.records.GetByGenerationID(dbctx.New(ctx), generationID)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Terminal() {
		return rec, nil
	}

	st, err := s.status.PollStatus(ctx, generationID)
	if err != nil {
		if rec != nil {
			s.log.Warn("generation refresh failed", "generation_id", generationID, "error", err)
			return rec, nil
		}
		return nil, fmt.Errorf("generation %s: %w", generationID, err)
	}
	if rec == nil {
		now := time.Now().UTC()
		rec = &storyboard.GenerationRecord{GenerationID: generationID, Images: datatypes.JSON(`[]`), CreatedAt: now}
	}
	rec.Status = string(st)
	if st == leonardo.GenerationComplete {
		imgs, err := s.status.FetchImages(ctx, generationID)
		if err != nil {
			s.log.Warn("generation images unavailable", "generation_id", generationID, "error", err)
		}
		rec.Images = imagesJSON(imgs)
	}
	if rec.Username != "" {
		s.saveRecord(ctx, rec)
	}
	return rec, nil
}

func imagesJSON(imgs []leonardo.Image) datatypes.JSON {
	if imgs == nil {
		imgs = []leonardo.Image{}
	}
	raw, err := json.Marshal(imgs)
	if err != nil {
		return datatypes.JSON(`[]`)
	}
	return datatypes.JSON(raw)
}
