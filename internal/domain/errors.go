package domain

import "errors"

// Error categories shared by every service. Callers wrap them with context
// (fmt.Errorf("...: %w", ErrNotFound)) and the HTTP layer maps each category
// to a client-facing status.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrNotAvailable = errors.New("not available")
)
