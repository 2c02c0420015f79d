package silence

import "errors"

// ErrDetectionFailed indicates silencedetect could not analyze the input.
var ErrDetectionFailed = errors.New("silence detection failed")

// ErrNoDuration indicates the detector output carried no media duration.
var ErrNoDuration = errors.New("could not determine media duration")
