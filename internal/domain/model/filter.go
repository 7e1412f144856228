package model

import (
	"fmt"
	"strings"
)

// Score band thresholds shared by filtering, stats and top converting leads.
const (
	HighScoreThreshold   = 70
	MediumScoreThreshold = 40
)

// ScoreFilter selects leads by score band.
type ScoreFilter string

// Supported filters.
const (
	FilterAll    ScoreFilter = "all"
	FilterHigh   ScoreFilter = "high"
	FilterMedium ScoreFilter = "medium"
	FilterLow    ScoreFilter = "low"
)

// ParseScoreFilter reads a filter name case-insensitively. Empty means all.
func ParseScoreFilter(s string) (ScoreFilter, error) {
	switch f := ScoreFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterHigh, FilterMedium, FilterLow:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
}

// Matches reports whether score falls into the filter's band.
func (f ScoreFilter) Matches(score int) bool {
	switch f {
	case FilterHigh:
		return score >= HighScoreThreshold
	case FilterMedium:
		return score >= MediumScoreThreshold && score < HighScoreThreshold
	case FilterLow:
		return score < MediumScoreThreshold
	default:
		return true
	}
}

// BandOf returns the high, medium or low band for score.
func BandOf(score int) ScoreFilter {
	switch {
	case score >= HighScoreThreshold:
		return FilterHigh
	case score >= MediumScoreThreshold:
		return FilterMedium
	default:
		return FilterLow
	}
}
