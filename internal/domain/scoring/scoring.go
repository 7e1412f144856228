// Package scoring computes a lead's predictive score from its attributes.
//
// The model is a fixed rule table: four independently weighted factors are
// looked up case-insensitively and summed, with a default for every factor
// that is missing or unrecognized. The total is capped at 100.
package scoring

import (
	"context"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/okian/leadflow/internal/domain/model"
)

// Score bounds and factor defaults.
const (
	MaxScore = 100

	defaultSourcePoints     = 10
	defaultTimelinePoints   = 5
	defaultEngagementPoints = 10
)

// Conversion probability labels, from the highest band down.
const (
	ProbabilityVeryHigh = "Very High (85-95%)"
	ProbabilityHigh     = "High (65-84%)"
	ProbabilityMedium   = "Medium (40-64%)"
	ProbabilityLow      = "Low (20-39%)"
	ProbabilityVeryLow  = "Very Low (0-19%)"
)

// Probability band lower bounds.
const (
	veryHighFloor = 80
	highFloor     = 60
	mediumFloor   = 40
	lowFloor      = 20
)

// Budget point tiers. A budget must exceed the bound to earn the points.
const (
	budgetTier3Bound = 50_000
	budgetTier2Bound = 10_000
	budgetTier1Bound = 1_000

	budgetTier3Points = 30
	budgetTier2Points = 20
	budgetTier1Points = 10
)

// DefaultSourcePoints returns a copy of the built-in source table.
func DefaultSourcePoints() map[string]int {
	return map[string]int{
		"website":  20,
		"referral": 25,
		"social":   15,
		"email":    18,
		"cold":     10,
		"event":    22,
	}
}

// DefaultTimelinePoints returns a copy of the built-in timeline table.
func DefaultTimelinePoints() map[string]int {
	return map[string]int{
		"immediate":       25,
		"within 1 month":  20,
		"within 3 months": 15,
		"within 6 months": 10,
		"no timeline":     5,
	}
}

// DefaultEngagementPoints returns a copy of the built-in engagement table.
func DefaultEngagementPoints() map[string]int {
	return map[string]int{
		"very high": 25,
		"high":      20,
		"medium":    15,
		"low":       10,
		"very low":  5,
	}
}

// Breakdown holds each factor's contribution before capping.
type Breakdown struct {
	Source     int `json:"source"`
	Budget     int `json:"budget"`
	Timeline   int `json:"timeline"`
	Engagement int `json:"engagement"`
}

// Total is the uncapped sum of all factors.
func (b Breakdown) Total() int {
	return b.Source + b.Budget + b.Timeline + b.Engagement
}

// Result contains the computed score and its probability band.
type Result struct {
	Score       int       `json:"score"`
	Probability string    `json:"probability"`
	Breakdown   Breakdown `json:"breakdown"`
}

// Scorer computes a score from lead attributes.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, attrs model.Attributes) (Result, error)
}

// Option applies a configuration option to the RuleScorer.
type Option func(*RuleScorer)

// WithSourcePoints overrides or adds source table entries.
func WithSourcePoints(points map[string]int) Option {
	return func(s *RuleScorer) { mergePoints(s.source, points) }
}

// WithTimelinePoints overrides or adds timeline table entries.
func WithTimelinePoints(points map[string]int) Option {
	return func(s *RuleScorer) { mergePoints(s.timeline, points) }
}

// WithEngagementPoints overrides or adds engagement table entries.
func WithEngagementPoints(points map[string]int) Option {
	return func(s *RuleScorer) { mergePoints(s.engagement, points) }
}

func mergePoints(dst, src map[string]int) {
	for k, v := range src {
		if v >= 0 {
			dst[strings.ToLower(k)] = v
		}
	}
}

// RuleScorer implements Scorer with the fixed rule table.
type RuleScorer struct {
	source     map[string]int
	timeline   map[string]int
	engagement map[string]int
}

var defaultScorer = NewRuleScorer() //nolint:gochecknoglobals // immutable default tables

// NewRuleScorer creates a scorer with the built-in tables and any overrides.
func NewRuleScorer(opts ...Option) *RuleScorer {
	s := &RuleScorer{
		source:     DefaultSourcePoints(),
		timeline:   DefaultTimelinePoints(),
		engagement: DefaultEngagementPoints(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the score for attrs.
func (s *RuleScorer) Score(ctx context.Context, attrs model.Attributes) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("score: %w", err)
	}
	return s.Compute(attrs), nil
}

// Compute is the pure scoring function.
func (s *RuleScorer) Compute(attrs model.Attributes) Result {
	b := Breakdown{
		Source:     lookup(s.source, attrs.Source, defaultSourcePoints),
		Budget:     BudgetPoints(ParseBudget(attrs.Budget)),
		Timeline:   lookup(s.timeline, attrs.Timeline, defaultTimelinePoints),
		Engagement: lookup(s.engagement, attrs.Engagement, defaultEngagementPoints),
	}
	score := min(b.Total(), MaxScore)
	return Result{Score: score, Probability: Probability(score), Breakdown: b}
}

// Tables returns copies of the scorer's source, timeline and engagement tables.
func (s *RuleScorer) Tables() (source, timeline, engagement map[string]int) {
	return maps.Clone(s.source), maps.Clone(s.timeline), maps.Clone(s.engagement)
}

// Compute scores attrs with the built-in tables.
func Compute(attrs model.Attributes) Result {
	return defaultScorer.Compute(attrs)
}

// Keys are lowercased but not trimmed.
func lookup(table map[string]int, key string, fallback int) int {
	if key == "" {
		return fallback
	}
	if p, ok := table[strings.ToLower(key)]; ok {
		return p
	}
	return fallback
}

// ParseBudget keeps only the ASCII digits of s and reads them as an integer.
// Text without digits is 0; a value too large for int saturates at math.MaxInt.
func ParseBudget(s string) int {
	var digits strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			digits.WriteByte(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return math.MaxInt
	}
	return n
}

// BudgetPoints maps a parsed budget to its contribution.
func BudgetPoints(budget int) int {
	switch {
	case budget > budgetTier3Bound:
		return budgetTier3Points
	case budget > budgetTier2Bound:
		return budgetTier2Points
	case budget > budgetTier1Bound:
		return budgetTier1Points
	default:
		return 0
	}
}

// Probability returns the conversion probability label for score.
func Probability(score int) string {
	switch {
	case score >= veryHighFloor:
		return ProbabilityVeryHigh
	case score >= highFloor:
		return ProbabilityHigh
	case score >= mediumFloor:
		return ProbabilityMedium
	case score >= lowFloor:
		return ProbabilityLow
	default:
		return ProbabilityVeryLow
	}
}
