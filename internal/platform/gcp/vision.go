package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/storyboard-backend/internal/pkg/ctxutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// ErrNoText is returned when the page contains no detectable text.
var ErrNoText = errors.New("vision: no text detected")

type Vision interface {
	// ExtractText runs DOCUMENT_TEXT_DETECTION over img and returns the page text.
	ExtractText(ctx context.Context, img []byte, languageHints []string) (string, error)
	Close() error
}

type visionService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	client, err := vision.NewImageAnnotatorClient(context.Background(), clientOptions(vision.DefaultAuthScopes()...)...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{log: log.With("service", "gcp.Vision"), client: client}, nil
}

func (s *visionService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *visionService) ExtractText(ctx context.Context, img []byte, languageHints []string) (string, error) {
	if len(img) == 0 {
		return "", fmt.Errorf("vision: empty image")
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 60*time.Second)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
	}
	if len(languageHints) > 0 {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: languageHints}
	}
	resp, err := s.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", ErrNoText
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	text := TextFromAnnotation(r0.FullTextAnnotation, languageHints)
	if text == "" {
		return "", ErrNoText
	}
	s.log.Debug("ocr complete", "chars", len([]rune(text)), "pages", len(r0.FullTextAnnotation.GetPages()))
	return text, nil
}

// TextFromAnnotation rebuilds paragraph text from symbols. Scripts that do not
// separate words with spaces (zh, ja, ko) are joined without a separator.
func TextFromAnnotation(fta *visionpb.TextAnnotation, languageHints []string) string {
	if fta == nil {
		return ""
	}
	sep := " "
	if isUnspacedScript(languageHints) {
		sep = ""
	}
	var paragraphs []string
	for _, page := range fta.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				words := make([]string, 0, len(para.GetWords()))
				for _, word := range para.GetWords() {
					var b strings.Builder
					for _, sym := range word.GetSymbols() {
						b.WriteString(sym.GetText())
					}
					if w := b.String(); w != "" {
						words = append(words, w)
					}
				}
				if line := strings.TrimSpace(strings.Join(words, sep)); line != "" {
					paragraphs = append(paragraphs, line)
				}
			}
		}
	}
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(strings.ReplaceAll(fta.GetText(), "\u00a0", " ")), " ")
	}
	return strings.Join(paragraphs, "\n")
}

func isUnspacedScript(hints []string) bool {
	for _, h := range hints {
		lang := strings.ToLower(strings.TrimSpace(h))
		if i := strings.IndexAny(lang, "-_"); i > 0 {
			lang = lang[:i]
		}
		switch lang {
		case "zh", "ja", "ko":
			return true
		}
	}
	return false
}
