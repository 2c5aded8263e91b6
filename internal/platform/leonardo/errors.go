package leonardo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingJobID means a 2xx submit response carried no generation id.
	ErrMissingJobID       = errors.New("leonardo: response has no generation id")
	ErrInvalidImageCount  = errors.New("leonardo: image count must be between 1 and 10")
	ErrDatasetNotFound    = errors.New("leonardo: dataset not found")
	ErrDatasetNotReady    = errors.New("leonardo: dataset is not ready for training")
	ErrInsufficientImages = errors.New("leonardo: dataset has too few images for training")
	ErrQuotaExceeded      = errors.New("leonardo: quota or limit exceeded")
)

// ServiceError is a failed call to the Leonardo API. StatusCode is 0 for
// transport and decode failures.
type ServiceError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "leonardo %s (%s %s)", e.Op, e.Method, e.Path)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 512 {
			body = body[:512] + "..."
		}
		b.WriteString(": ")
		b.WriteString(body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) HTTPStatusCode() int { return e.StatusCode }

// isQuotaError matches the provider's quota and rate-limit rejections by message.
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "limit")
}
