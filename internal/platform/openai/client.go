// Package openai is the text model client behind the diary scene splitter.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/pkg/httpx"
	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/platform/retryx"
)

type Client interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// Temperature is omitted from requests when nil.
	Temperature *float64
	MaxRetries  int
}

func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:      envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:    envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 3*time.Minute),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 4),
	}
	raw := strings.ToLower(envutil.String("OPENAI_TEMPERATURE", "0.2"))
	if t, err := strconv.ParseFloat(raw, 64); err == nil {
		cfg.Temperature = &t
	}
	return cfg
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client

	retry retryx.Policy
}

func NewClient(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, errors.New("openai: logger required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing OPENAI_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &client{
		log:  log.With("service", "OpenAIClient", "model", cfg.Model),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	c.retry = retryx.Policy{
		MaxAttempts: cfg.MaxRetries + 1,
		Backoff:     retryx.Exponential(time.Second, 10*time.Second),
		Retryable:   httpx.IsRetryableError,
		OnRetry: func(n int, delay time.Duration, err error) {
			c.log.Warn("OpenAI request retrying", "attempt", n, "delay", delay, "error", err)
		},
	}
	return c, nil
}

// statusError is a non-2xx answer. httpx classifies it by HTTPStatusCode.
type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string       { return fmt.Sprintf("openai http %d: %s", e.code, e.body) }
func (e *statusError) HTTPStatusCode() int { return e.code }

func (c *client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return retryx.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return retryx.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return &statusError{
			code:       resp.StatusCode,
			body:       string(payload),
			retryAfter: httpx.RetryAfterDuration(resp, 0, 10*time.Second),
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return retryx.Permanent(fmt.Errorf("openai: decode %s response: %w", path, err))
	}
	return nil
}

// postWithRetry honors Retry-After from the last failed response before
// falling back to the policy's backoff.
func (c *client) postWithRetry(ctx context.Context, path string, body, out any) error {
	start := time.Now()
	var last error
	policy := c.retry
	backoff := policy.Backoff
	policy.Backoff = func(n int) time.Duration {
		var se *statusError
		if errors.As(last, &se) && se.retryAfter > 0 {
			return httpx.JitterSleep(se.retryAfter)
		}
		return httpx.JitterSleep(backoff(n))
	}
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		last = c.post(ctx, path, body, out)
		return last
	})

	status := "ok"
	if code := httpx.StatusCode(err); code != 0 {
		status = strconv.Itoa(code)
	} else if err != nil {
		status = "error"
	}
	observability.Current().ObserveLLMRequest(c.cfg.Model, status, time.Since(start))
	return err
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string    `json:"model"`
	Input       []message `json:"input"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type outputPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string       `json:"type"`
		Role    string       `json:"role,omitempty"`
		Content []outputPart `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

// text joins the assistant's output_text parts.
func (r responsesResponse) text() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	req := responsesRequest{
		Model:       c.cfg.Model,
		Input:       []message{{Role: "system", Content: system}, {Role: "user", Content: user}},
		Temperature: c.cfg.Temperature,
	}
	var resp responsesResponse
	if err := c.postWithRetry(ctx, "/v1/responses", req, &resp); err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("openai: model refused: %s", resp.Refusal)
	}
	text := resp.text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("openai: response has no output_text")
	}
	return text, nil
}
