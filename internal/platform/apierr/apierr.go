package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/yungbote/storyboard-backend/internal/pkg/errors"
)

// Error is an error with the HTTP status and machine-readable code the API
// layer should answer with.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }
func NotFound(code string, err error) *Error   { return New(http.StatusNotFound, code, err) }
func Conflict(code string, err error) *Error   { return New(http.StatusConflict, code, err) }

// From unwraps err into an *Error. The generic sentinels map to 400, 404 and
// 409; anything else is a 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return BadRequest("invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return NotFound("not_found", err)
	case errors.Is(err, pkgerrors.ErrConflict):
		return Conflict("conflict", err)
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
