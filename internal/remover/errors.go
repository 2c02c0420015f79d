package remover

import "errors"

var (
	// ErrNothingAudible indicates the whole input is silent, so there is
	// nothing to keep.
	ErrNothingAudible = errors.New("no audible segments found")

	// ErrPublishFailed indicates the output was written but could not be
	// uploaded.
	ErrPublishFailed = errors.New("failed to publish output")
)
