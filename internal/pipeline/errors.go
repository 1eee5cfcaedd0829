package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hoanghai1803/quill/internal/ai"
	"github.com/hoanghai1803/quill/internal/generation"
	"github.com/hoanghai1803/quill/internal/models"
	"github.com/hoanghai1803/quill/internal/research"
	"github.com/hoanghai1803/quill/internal/storage"
	"github.com/hoanghai1803/quill/internal/wordpress"
)

// Stage names recorded on failed runs.
const (
	StageResearch   = "research"
	StageGeneration = "generation"
	StagePublish    = "publish"
	StagePromotion  = "promotion"
)

// ErrorKind classifies why a stage failed.
type ErrorKind string

const (
	KindUnreachable  ErrorKind = "unreachable"
	KindAuth         ErrorKind = "auth"
	KindQuota        ErrorKind = "quota"
	KindInvalidInput ErrorKind = "invalid_input"
	KindProvider     ErrorKind = "provider"
	KindInternal     ErrorKind = "internal"
)

// StageError is a stage failure that ends a run.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: classify(err), Err: err}
}

// classify maps an error from any stage onto the error taxonomy.
func classify(err error) ErrorKind {
	if errors.Is(err, ai.ErrBudgetExceeded) {
		return KindQuota
	}

	var aiErr *ai.APIError
	if errors.As(err, &aiErr) {
		switch {
		case aiErr.Auth():
			return KindAuth
		case aiErr.Quota():
			return KindQuota
		}
		return KindProvider
	}

	var wpErr *wordpress.APIError
	if errors.As(err, &wpErr) {
		if wpErr.Auth() {
			return KindAuth
		}
		return KindProvider
	}

	switch {
	case errors.Is(err, wordpress.ErrNotConnected),
		errors.Is(err, research.ErrNoKeywords),
		errors.Is(err, generation.ErrNoTopic),
		errors.Is(err, generation.ErrNoImageProvider),
		errors.Is(err, models.ErrInvalidBlog),
		errors.Is(err, storage.ErrInvalidJSON):
		return KindInvalidInput
	case errors.Is(err, research.ErrUnreachable),
		errors.Is(err, context.DeadlineExceeded):
		return KindUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindUnreachable
	}
	return KindProvider
}
