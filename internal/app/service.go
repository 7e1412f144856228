// Package service wires the ingestion core together: the admitter, the
// parsing pipeline, the lead repository, the import queue with its worker
// pool and the event bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/leadflow/internal/adapters/mq/queue"
	"github.com/okian/leadflow/internal/adapters/mq/worker"
	"github.com/okian/leadflow/internal/adapters/repository"
	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/internal/events"
	"github.com/okian/leadflow/pkg/logger"
	"github.com/okian/leadflow/pkg/metrics"
)

// Default service configuration.
const (
	DefaultWorkerCount        = 1
	DefaultQueueSize          = 64
	DefaultTopConvertingLimit = 5
)

// Service owns the lead collection and every import against it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    *repository.MemoryStore
	bus      events.Bus
	admitter *ingest.Admitter
	pipeline *ingest.Pipeline
	jobs     *tracker
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	workerCount    int
	queueSize      int
	maxImportBytes int64
	rowRate        float64
	phoneRegion    string
	dateFormat     string
	scoringOpts    []scoring.Option
	topLimit       int
	newID          func() string
	now            func() time.Time

	// State
	started   bool
	runCancel context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. The repository and the admitter are usable
// right away; imports need Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    DefaultWorkerCount,
		queueSize:      DefaultQueueSize,
		maxImportBytes: ingest.DefaultMaxBytes,
		phoneRegion:    ingest.DefaultPhoneRegion,
		dateFormat:     ingest.DefaultDateFormat,
		topLimit:       DefaultTopConvertingLimit,
		newID:          uuid.NewString,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.bus == nil {
		s.bus = events.NewInMemoryBus(events.WithLogger(s.logger.Named("events")))
	}

	s.store = repository.NewMemoryStore()
	s.admitter = ingest.NewAdmitter(
		ingest.WithScorer(scoring.NewRuleScorer(s.scoringOpts...)),
		ingest.WithIDGenerator(s.newID),
		ingest.WithClock(s.now),
		ingest.WithPhoneRegion(s.phoneRegion),
		ingest.WithDateFormat(s.dateFormat),
	)
	s.pipeline = ingest.NewPipeline(
		ingest.WithAdmitter(s.admitter),
		ingest.WithRowRate(s.rowRate),
		ingest.WithMaxBytes(s.maxImportBytes),
		ingest.WithLogger(s.logger.Named("ingest")),
	)
	s.jobs = newTracker(s.bus, s.now, s.logger.Named("jobs"))

	return s
}

// Start creates the import queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting lead service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.jobs, s.store,
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "lead service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop cancels running imports, finishes queued ones as cancelled and stops
// the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping lead service...")

	s.runCancel()
	s.jobs.cancelRunning()
	err := s.pool.Shutdown(ctx)

	s.started = false
	s.logger.Info(ctx, "lead service stopped")
	return err
}

// AddLead validates, scores and stores a manually entered lead. A
// *model.ValidationError leaves the collection untouched.
func (s *Service) AddLead(ctx context.Context, attrs model.Attributes) (model.Lead, error) {
	lead, err := s.admitter.Admit(ctx, attrs)
	if err != nil {
		metrics.RecordManualEntry("rejected")
		return model.Lead{}, err
	}
	if err := s.store.Add(ctx, lead); err != nil {
		metrics.RecordManualEntry("rejected")
		return model.Lead{}, err
	}
	metrics.RecordManualEntry("accepted")

	s.logger.Debug(ctx, "lead added", logger.String("id", lead.ID), logger.Int("score", lead.Score))
	s.bus.Publish(ctx, events.LeadAdded{BaseEvent: events.NewBaseEvent(), Lead: lead})
	return lead, nil
}

// RemoveLead deletes the lead with id. It reports whether a lead was removed.
func (s *Service) RemoveLead(ctx context.Context, id string) bool {
	if !s.store.Remove(ctx, id) {
		return false
	}
	s.bus.Publish(ctx, events.LeadRemoved{BaseEvent: events.NewBaseEvent(), LeadID: id})
	return true
}

// GetLead returns the lead with id.
func (s *Service) GetLead(ctx context.Context, id string) (model.Lead, error) {
	return s.store.Get(ctx, id)
}

// Leads returns the leads matching q in insertion order.
func (s *Service) Leads(ctx context.Context, q repository.Query) []model.Lead {
	return s.store.Query(ctx, q)
}

// Stats summarizes the whole collection.
func (s *Service) Stats(ctx context.Context) repository.Stats {
	return s.store.Stats(ctx)
}

// TopConverting returns up to n high scoring leads, best first. Zero uses
// the configured limit.
func (s *Service) TopConverting(ctx context.Context, n int) ([]model.Lead, error) {
	if n == 0 {
		n = s.topLimit
	}
	return s.store.TopConverting(ctx, n)
}

// Import parses src and runs it to completion on the calling goroutine.
// onProgress, when set, sees every processed data line. Leads are committed
// only when the import completes.
func (s *Service) Import(ctx context.Context, source string, src io.Reader, onProgress func(ingest.Progress)) (JobInfo, error) {
	pool, err := s.runningPool()
	if err != nil {
		return JobInfo{}, err
	}

	job, err := s.pipeline.Parse(src)
	if err != nil {
		metrics.RecordErrorByComponent("ingest", "parse")
		return JobInfo{}, err
	}

	id := s.newID()
	s.jobs.register(id, source, job.Total(), onProgress)
	err = pool.Process(ctx, queue.Request{JobID: id, Source: source, Job: job})

	info, _, _ := s.jobs.get(id)
	return info, err
}

// SubmitImport parses src and queues it for a background worker. Parse
// errors are returned immediately. It returns the job id.
func (s *Service) SubmitImport(ctx context.Context, source string, src io.Reader) (string, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return "", ErrNotStarted
	}

	job, err := s.pipeline.Parse(src)
	if err != nil {
		metrics.RecordErrorByComponent("ingest", "parse")
		return "", err
	}

	id := s.newID()
	s.jobs.register(id, source, job.Total(), nil)
	if err := q.Enqueue(ctx, queue.Request{JobID: id, Source: source, Job: job}); err != nil {
		s.jobs.forget(id)
		return "", fmt.Errorf("%w: %w", ErrSubmit, err)
	}

	s.logger.Debug(ctx, "import queued", logger.String("job", id), logger.String("source", source))
	return id, nil
}

// ImportStatus returns a snapshot of the import with id.
func (s *Service) ImportStatus(_ context.Context, id string) (JobInfo, error) {
	info, _, ok := s.jobs.get(id)
	if !ok {
		return JobInfo{}, ErrJobNotFound
	}
	return info, nil
}

// Imports lists every import in submission order.
func (s *Service) Imports(_ context.Context) []JobInfo {
	return s.jobs.list()
}

// WaitImport blocks until the import with id reaches a terminal state or ctx
// ends.
func (s *Service) WaitImport(ctx context.Context, id string) (JobInfo, error) {
	_, done, ok := s.jobs.get(id)
	if !ok {
		return JobInfo{}, ErrJobNotFound
	}

	select {
	case <-done:
		info, _, _ := s.jobs.get(id)
		return info, nil
	case <-ctx.Done():
		return JobInfo{}, ctx.Err()
	}
}

// CancelImport cancels a queued or running import. Nothing it admitted is
// committed.
func (s *Service) CancelImport(ctx context.Context, id string) error {
	return s.jobs.cancel(ctx, id)
}

// Subscribe registers handler for events named name, or every event for
// events.AllEvents.
func (s *Service) Subscribe(name string, handler events.Handler) func() {
	return s.bus.Subscribe(name, handler)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"leads":       s.store.Count(ctx),
		"imports":     len(s.jobs.list()),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}
	return stats
}

func (s *Service) runningPool() (*worker.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return s.pool, nil
}

// IsValidation reports whether err is a missing-field rejection.
func IsValidation(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr)
}
