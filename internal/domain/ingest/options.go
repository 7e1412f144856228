package ingest

import (
	"time"

	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/pkg/logger"
	"golang.org/x/time/rate"
)

// AdmitterOption applies a configuration option to the Admitter.
type AdmitterOption func(*Admitter)

// WithScorer sets the scorer used for admitted leads.
func WithScorer(s scoring.Scorer) AdmitterOption {
	return func(a *Admitter) {
		if s != nil {
			a.scorer = s
		}
	}
}

// WithIDGenerator sets the lead id source.
func WithIDGenerator(fn func() string) AdmitterOption {
	return func(a *Admitter) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// WithClock sets the time source for AddedAt.
func WithClock(fn func() time.Time) AdmitterOption {
	return func(a *Admitter) {
		if fn != nil {
			a.now = fn
		}
	}
}

// WithPhoneRegion sets the region used to read phones without a country code.
func WithPhoneRegion(region string) AdmitterOption {
	return func(a *Admitter) {
		if region != "" {
			a.region = region
		}
	}
}

// WithDateFormat sets the layout of DateAdded.
func WithDateFormat(layout string) AdmitterOption {
	return func(a *Admitter) {
		if layout != "" {
			a.dateFormat = layout
		}
	}
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithAdmitter sets the admitter used for every row.
func WithAdmitter(a *Admitter) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.admitter = a
		}
	}
}

// WithRowRate paces row processing to perSecond rows. Zero or less disables pacing.
func WithRowRate(perSecond float64) Option {
	return func(p *Pipeline) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			p.limiter = nil
		}
	}
}

// WithMaxBytes caps the size of an import.
func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
