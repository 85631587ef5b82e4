package model

import "github.com/pkg/errors"

// Error taxonomy shared by the store, engine, and admin surface. Callers
// classify with errors.Is; wrapping preserves the sentinel.
var (
	// ErrNotFound means the id or subject named by a point operation is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument means the input fails validation (blank content,
	// confidence outside [0,1], retention days out of bounds, bad patch).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorageUnavailable means the persistence layer is unreachable.
	// The engine does not retry; retry policy belongs to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConstraintViolation means a uniqueness constraint fired, usually a
	// duplicate-insert race resolved by falling back to a refresh-touch.
	ErrConstraintViolation = errors.New("constraint violation")
)
