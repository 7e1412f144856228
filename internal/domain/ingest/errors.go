package ingest

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrCancelled   = errors.New("import cancelled")
	ErrNotFinished = errors.New("import not finished")
	ErrAdmit       = errors.New("admit lead failed")
)
