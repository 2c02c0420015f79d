package config

import "errors"

// Sentinel errors for the config package.
var (
	// ErrInvalid indicates a configuration value outside its allowed range.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnknownKey indicates a settings key that does not exist.
	ErrUnknownKey = errors.New("unknown config key")
)
