package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storyboard-backend/internal/data/repos"
	"github.com/yungbote/storyboard-backend/internal/domain/storyboard"
	"github.com/yungbote/storyboard-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
	"github.com/yungbote/storyboard-backend/internal/platform/gcp"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/openai"
)

const sceneSplitSystemPrompt = `You turn diary entries into short, descriptive image prompts.

Rules:
- Split the entry into a list of brief activity phrases.
- Every phrase has the diary's writer as its subject and shows one distinct action.
- No full sentences, no connective words, no extra detail.
- Phrases must work as prompts for an image generator.

Format:
- One phrase per line.
- No numbering and no bullet points.

Example 1
Entry: "I woke up early and went for a morning jog. Then I returned home and baked some bread. In the afternoon, I sat under an old oak tree and read a book."
Output:
jogging through early morning light
kneading fresh dough in a cozy kitchen
reading quietly beneath a sprawling oak tree

Example 2
Entry: "After breakfast, I went cycling along the river. Later, I painted a watercolor landscape on my balcony. In the evening, I listened to jazz in a dimly lit cafe."
Output:
cycling beside a calm riverbank
brushing gentle colors onto paper
sipping coffee with soft jazz tunes`

// SceneSplitter breaks diary text into ordered scene phrases.
type SceneSplitter interface {
	Split(ctx context.Context, text string) ([]string, error)
}

type llmSceneSplitter struct {
	llm openai.Client
	log *logger.Logger
}

func NewSceneSplitter(llm openai.Client, baseLog *logger.Logger) SceneSplitter {
	return &llmSceneSplitter{llm: llm, log: baseLog.With("component", "SceneSplitter")}
}

func (s *llmSceneSplitter) Split(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}
	out, err := s.llm.GenerateText(ctx, sceneSplitSystemPrompt, "Entry: "+text)
	if err != nil {
		return nil, fmt.Errorf("scene split: %w", err)
	}
	scenes := ParseScenes(out)
	s.log.Info("diary split into scenes", "scenes", len(scenes))
	return scenes, nil
}

// ParseScenes splits model output into one phrase per non-blank line, with
// surrounding whitespace, quotes and list markers removed.
func ParseScenes(raw string) []string {
	scenes := []string{}
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.Trim(line, "\"'“” ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if lower := strings.ToLower(line); lower == "output:" || strings.HasPrefix(lower, "entry:") {
			continue
		}
		scenes = append(scenes, line)
	}
	return scenes
}

type DiaryUpload struct {
	Username string
	Filename string
	Data     []byte
}

type DiaryView struct {
	Entry  *storyboard.DiaryEntry       `json:"entry"`
	Scenes []string                     `json:"scenes"`
	Images []*storyboard.GeneratedImage `json:"images"`
}

type DiaryService struct {
	bucket   gcp.BucketService
	vision   gcp.Vision
	splitter SceneSplitter
	entries  repos.DiaryEntryRepo
	images   repos.GeneratedImageRepo
	hints    []string
	log      *logger.Logger
}

func NewDiaryService(
	baseLog *logger.Logger,
	bucket gcp.BucketService,
	vision gcp.Vision,
	splitter SceneSplitter,
	entries repos.DiaryEntryRepo,
	images repos.GeneratedImageRepo,
	languageHints []string,
) *DiaryService {
	return &DiaryService{
		bucket:   bucket,
		vision:   vision,
		splitter: splitter,
		entries:  entries,
		images:   images,
		hints:    languageHints,
		log:      baseLog.With("service", "DiaryService"),
	}
}

// Upload stores the page image, reads its text and splits it into scenes.
// A page with no readable text is kept with an empty scene list.
func (s *DiaryService) Upload(ctx context.Context, in DiaryUpload) (*DiaryView, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", pkgerrors.ErrInvalidArgument)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: diary_image required", pkgerrors.ErrInvalidArgument)
	}

	id := uuid.New()
	ext := strings.ToLower(path.Ext(in.Filename))
	if ext == "" {
		ext = ".png"
	}
	key := fmt.Sprintf("%s/%s%s", username, id, ext)
	if err := s.bucket.Upload(ctx, gcp.CategoryDiaryPage, key, bytes.NewReader(in.Data)); err != nil {
		return nil, fmt.Errorf("store diary page: %w", err)
	}

	text, err := s.vision.ExtractText(ctx, in.Data, s.hints)
	switch {
	case errors.Is(err, gcp.ErrNoText):
		s.log.Warn("diary page has no readable text", "username", username, "diary_id", id)
		text = ""
	case err != nil:
		return nil, fmt.Errorf("read diary text: %w", err)
	}

	scenes := []string{}
	if text != "" {
		if scenes, err = s.splitter.Split(ctx, text); err != nil {
			return nil, err
		}
	}
	scenesJSON, err := json.Marshal(scenes)
	if err != nil {
		return nil, fmt.Errorf("marshal scenes: %w", err)
	}

	now := time.Now().UTC()
	entry, err := s.entries.Create(dbctx.New(ctx), &storyboard.DiaryEntry{
		ID:            id,
		Username:      username,
		ImageKey:      key,
		ImageURL:      s.bucket.PublicURL(gcp.CategoryDiaryPage, key),
		ExtractedText: text,
		Scenes:        datatypes.JSON(scenesJSON),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("save diary entry: %w", err)
	}
	s.log.Info("diary stored", "username", username, "diary_id", id, "scenes", len(scenes))
	return &DiaryView{Entry: entry, Scenes: scenes, Images: []*storyboard.GeneratedImage{}}, nil
}

func (s *DiaryService) Get(ctx context.Context, id uuid.UUID) (*DiaryView, error) {
	entry, err := s.entries.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("diary %s: %w", id, pkgerrors.ErrNotFound)
	}
	images, err := s.images.ListByDiaryEntry(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []*storyboard.GeneratedImage{}
	}
	return &DiaryView{Entry: entry, Scenes: DiaryScenes(entry), Images: images}, nil
}

// DiaryScenes decodes the stored scene list. A malformed column reads as empty.
func DiaryScenes(entry *storyboard.DiaryEntry) []string {
	scenes := []string{}
	if entry == nil || len(entry.Scenes) == 0 {
		return scenes
	}
	if err := json.Unmarshal(entry.Scenes, &scenes); err != nil {
		return []string{}
	}
	return scenes
}
