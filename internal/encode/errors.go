package encode

import "errors"

// Sentinel errors for the encode package.
var (
	// ErrConcatFailed indicates the final concatenation did not produce an
	// output. Segment files are left in place.
	ErrConcatFailed = errors.New("concatenation failed")

	// ErrNothingToConcat indicates an empty segment list.
	ErrNothingToConcat = errors.New("no segments to concatenate")

	// ErrEmptyBatch indicates a split batch without segments.
	ErrEmptyBatch = errors.New("batch has no segments")
)
