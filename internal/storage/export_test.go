package storage

import (
	"context"
	"time"
)

// Export internal identifiers for testing.
// This file is only compiled during tests (suffix _test.go).

// PutObjectAPI exports putObjectAPI for testing.
type PutObjectAPI = putObjectAPI

// NewPublisherWithClient exports newPublisher with a fast retry policy.
func NewPublisherWithClient(client PutObjectAPI, cfg S3Config) *Publisher {
	p := newPublisher(client, cfg)
	p.retry = RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return p
}

// IsTransient exports isTransient for testing.
var IsTransient = isTransient

// RetryWithBackoff exports retryWithBackoff for testing.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error), shouldRetry func(error) bool) (T, error) {
	return retryWithBackoff(ctx, cfg, fn, shouldRetry)
}
