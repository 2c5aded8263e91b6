package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing rows or remote resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for rejected input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a request that collides with in-flight work.
	ErrConflict = errors.New("conflict")
)
