package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a run status change would break the
// run state machine.
var ErrInvalidTransition = errors.New("invalid run status transition")

// ErrVersionConflict is returned when a configuration document was changed
// since the caller last read it.
var ErrVersionConflict = errors.New("configuration document version conflict")

// ErrInvalidJSON is returned when a configuration document does not parse.
var ErrInvalidJSON = errors.New("configuration document is not valid JSON")
