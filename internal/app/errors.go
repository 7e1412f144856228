package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotStarted  = errors.New("service not started")
	ErrJobNotFound = errors.New("import job not found")
	ErrJobFinished = errors.New("import job already finished")
	ErrSubmit      = errors.New("submit import failed")
)
