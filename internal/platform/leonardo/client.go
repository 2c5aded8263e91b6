// Package leonardo is the client for the Leonardo.ai REST API: image
// generations, training datasets and custom model training.
package leonardo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/pkg/httpx"
	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/retryx"
)

const (
	DefaultBaseURL = "https://cloud.leonardo.ai/api/rest/v1"
	// DefaultModelID is Leonardo Diffusion XL.
	DefaultModelID = "b24e16ff-06e3-43eb-8d33-4416c2d75876"
	// CharacterReferencePreprocessor is the controlnet preprocessor that keeps a
	// character consistent with its seed image.
	CharacterReferencePreprocessor = 133
	MinTrainingImages              = 5
	MaxImagesPerGeneration         = 10
)

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
	// MaxAttempts and RetryBase shape the policy applied to every call except
	// training submission.
	MaxAttempts int
	RetryBase   time.Duration
	// Training submission has its own linear schedule.
	TrainingMaxAttempts int
	TrainingRetryStep   time.Duration
	MinTrainingImages   int

	ModelID     string
	Width       int
	Height      int
	Alchemy     bool
	PresetStyle string
	CacheTTL    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:             envutil.String("LEONARDO_BASE_URL", DefaultBaseURL),
		APIKey:              envutil.String("LEONARDO_API_KEY", ""),
		Timeout:             envutil.Seconds("LEONARDO_TIMEOUT_SECONDS", 60*time.Second),
		RequestsPerMinute:   envutil.Int("LEONARDO_REQUESTS_PER_MINUTE", 60),
		MaxAttempts:         envutil.Int("LEONARDO_MAX_ATTEMPTS", 1),
		RetryBase:           envutil.Seconds("LEONARDO_RETRY_BASE_SECONDS", time.Second),
		TrainingMaxAttempts: envutil.Int("LEONARDO_TRAINING_MAX_ATTEMPTS", 3),
		TrainingRetryStep:   envutil.Seconds("LEONARDO_TRAINING_RETRY_STEP_SECONDS", 15*time.Second),
		MinTrainingImages:   envutil.Int("LEONARDO_MIN_TRAINING_IMAGES", MinTrainingImages),
		ModelID:             envutil.String("LEONARDO_MODEL_ID", DefaultModelID),
		Width:               envutil.Int("LEONARDO_IMAGE_WIDTH", 1024),
		Height:              envutil.Int("LEONARDO_IMAGE_HEIGHT", 768),
		Alchemy:             envutil.Bool("LEONARDO_ALCHEMY", true),
		PresetStyle:         envutil.String("LEONARDO_PRESET_STYLE", "DYNAMIC"),
		CacheTTL:            envutil.Seconds("LEONARDO_CACHE_TTL_SECONDS", 30*time.Minute),
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.TrainingMaxAttempts < 1 {
		c.TrainingMaxAttempts = 3
	}
	if c.TrainingRetryStep < 0 {
		c.TrainingRetryStep = 15 * time.Second
	}
	if c.MinTrainingImages <= 0 {
		c.MinTrainingImages = MinTrainingImages
	}
	if c.ModelID == "" {
		c.ModelID = DefaultModelID
	}
	if c.Width <= 0 {
		c.Width = 1024
	}
	if c.Height <= 0 {
		c.Height = 768
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	return c
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	log     *logger.Logger
	http    *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache

	retry         retryx.Policy
	trainingRetry retryx.Policy
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing LEONARDO_API_KEY")
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = max(1, cfg.RequestsPerMinute/10)
	}
	c := &Client{
		cfg:     cfg,
		log:     log.With("client", "leonardo"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
	c.retry = retryx.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     retryx.Exponential(cfg.RetryBase, 30*time.Second),
		Retryable:   httpx.IsRetryableError,
	}
	c.trainingRetry = retryx.Policy{
		MaxAttempts: cfg.TrainingMaxAttempts,
		Backoff:     retryx.Linear(cfg.TrainingRetryStep),
		Retryable:   func(err error) bool { return !isQuotaError(err) },
	}
	return c, nil
}

func (c *Client) Config() Config { return c.cfg }

// call describes one API request. want is the exact success status; zero accepts any 2xx.
type call struct {
	op     string
	method string
	path   string
	body   any
	out    any
	want   int
}

// do runs cl under the default retry policy.
func (c *Client) do(ctx context.Context, cl call) error {
	p := c.retry
	p.OnRetry = func(n int, delay time.Duration, err error) {
		observability.Current().IncLeonardoRetry(cl.op)
		c.log.Warn("leonardo request retrying", "op", cl.op, "attempt", n, "sleep", delay.String(), "error", err)
	}
	return p.Do(ctx, func(ctx context.Context, _ int) error {
		return c.doOnce(ctx, cl)
	})
}

func (c *Client) doOnce(ctx context.Context, cl call) (err error) {
	ctx, span := observability.StartSpan(ctx, "leonardo."+cl.op,
		attribute.String("http.method", cl.method),
		attribute.String("leonardo.path", cl.path),
	)
	start := time.Now()
	status := "error"
	defer func() {
		observability.Current().ObserveLeonardoRequest(cl.op, status, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	observability.Current().ObserveRateLimiterWait(time.Since(waitStart))

	var payload io.Reader
	if cl.body != nil {
		raw, mErr := json.Marshal(cl.body)
		if mErr != nil {
			return &ServiceError{Op: cl.op, Method: cl.method, Path: cl.path, Err: mErr}
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.cfg.BaseURL+cl.path, payload)
	if err != nil {
		return &ServiceError{Op: cl.op, Method: cl.method, Path: cl.path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ServiceError{Op: cl.op, Method: cl.method, Path: cl.path, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		return &ServiceError{Op: cl.op, Method: cl.method, Path: cl.path, StatusCode: resp.StatusCode, Err: err}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if cl.want != 0 {
		ok = resp.StatusCode == cl.want
	}
	if !ok {
		return &ServiceError{Op: cl.op, Method: cl.method, Path: cl.path, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if cl.out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		return &ServiceError{Op: cl.op, Method: cl.method, Path: cl.path, StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// Me returns the authenticated user's account info. It doubles as an API key check.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, call{op: "me", method: http.MethodGet, path: "/me", out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}
