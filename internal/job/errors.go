package job

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the job package.
var (
	// ErrCanceled is returned by RunAndAwait when the job was stopped by
	// Cancel or by its parent context rather than by a failing batch.
	// It matches context.Canceled.
	ErrCanceled = fmt.Errorf("job canceled: %w", context.Canceled)

	// ErrAlreadyStarted is returned by a second RunAndAwait call.
	ErrAlreadyStarted = errors.New("job already started")
)
