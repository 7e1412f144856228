package service

import (
	"time"

	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/internal/events"
	"github.com/okian/leadflow/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of background import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets how many submitted imports may wait for a worker.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxImportBytes caps the size of a single import.
func WithMaxImportBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImportBytes = n
		}
	}
}

// WithRowRate paces import rows. Zero disables pacing.
func WithRowRate(perSecond float64) Option {
	return func(s *Service) {
		if perSecond >= 0 {
			s.rowRate = perSecond
		}
	}
}

// WithPhoneRegion sets the default region for phone normalization.
func WithPhoneRegion(region string) Option {
	return func(s *Service) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

// WithDateFormat sets the layout of a lead's DateAdded.
func WithDateFormat(layout string) Option {
	return func(s *Service) {
		if layout != "" {
			s.dateFormat = layout
		}
	}
}

// WithScoringOptions customizes the rule scorer.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithTopConvertingLimit sets the size used when TopConverting is asked for 0 leads.
func WithTopConvertingLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topLimit = n
		}
	}
}

// WithIDGenerator sets the lead and job id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock sets the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBus sets the event bus.
func WithBus(bus events.Bus) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
