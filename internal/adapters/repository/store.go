// Package repository holds admitted leads and answers queries over them.
package repository

import (
	"context"

	"github.com/okian/leadflow/internal/domain/model"
)

// Query selects leads by search term and score band.
type Query struct {
	// Search matches name, email or company case-insensitively. Empty matches all.
	Search string
	// Filter restricts the score band. The zero value matches all.
	Filter model.ScoreFilter
}

// Stats summarizes the stored leads.
type Stats struct {
	Total        int `json:"total"`
	High         int `json:"high"`
	Medium       int `json:"medium"`
	Low          int `json:"low"`
	AverageScore int `json:"average_score"`
}

// Store is an append/remove-only collection of leads in insertion order.
type Store interface {
	// Add appends a lead. Leads are never deduplicated by content; only a
	// repeated id is rejected with ErrDuplicateID.
	Add(ctx context.Context, lead model.Lead) error
	// AddAll appends a batch atomically: either every lead is stored or none.
	AddAll(ctx context.Context, leads []model.Lead) error
	// Remove deletes the lead with id. It reports whether a lead was removed;
	// an unknown id is not an error.
	Remove(ctx context.Context, id string) bool
	// Get returns a lead by id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Lead, error)
	// Query returns matching leads in insertion order.
	Query(ctx context.Context, q Query) []model.Lead
	// Stats returns band counts and the rounded mean score.
	Stats(ctx context.Context) Stats
	// TopConverting returns up to n leads scoring at least 70, highest first,
	// ties in insertion order. n must be positive.
	TopConverting(ctx context.Context, n int) ([]model.Lead, error)
	// Count returns the number of stored leads.
	Count(ctx context.Context) int
}
