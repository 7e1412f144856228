package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("lead not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrDuplicateID  = errors.New("duplicate lead id")
)
