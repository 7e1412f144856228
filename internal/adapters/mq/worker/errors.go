package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrStopped = errors.New("worker pool stopped")
	ErrCommit  = errors.New("commit leads failed")
)
