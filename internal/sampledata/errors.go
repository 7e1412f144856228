package sampledata

import "errors"

// ErrInvalidConfig is returned for settings Generate cannot honor.
var ErrInvalidConfig = errors.New("invalid sample data config")
