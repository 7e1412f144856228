// Package worker runs queued imports in the background and commits their
// admitted leads.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/leadflow/internal/adapters/mq/queue"
	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/pkg/logger"
	"github.com/okian/leadflow/pkg/metrics"
)

// Import outcomes recorded in metrics and reported to the Reporter.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

const defaultShutdownTimeout = 30 * time.Second

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Request
}

// Committer stores the leads of a finished import.
type Committer interface {
	AddAll(ctx context.Context, leads []model.Lead) error
}

// Reporter follows an import through its lifecycle.
type Reporter interface {
	// Begin is called when a worker picks the request up. It returns the
	// context the import runs under, or false when the import was cancelled
	// while queued.
	Begin(ctx context.Context, req queue.Request) (context.Context, bool)
	// Progress is called after every processed line.
	Progress(ctx context.Context, req queue.Request, p ingest.Progress)
	// Finish is called exactly once per begun or drained request.
	Finish(ctx context.Context, req queue.Request, res ingest.Result, err error)
}

// Outcome classifies an import error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, ingest.ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Worker processes requests from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current import.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for import requests.
type InMemoryWorker struct {
	queue     Queue
	reporter  Reporter
	committer Committer
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, reporter Reporter, committer Committer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		reporter:  reporter,
		committer: committer,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := w.Process(ctx, req); err != nil {
				w.logger.Warn(ctx, "import did not complete",
					logger.String("job", req.JobID),
					logger.String("status", Outcome(err)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current import.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process runs one import on the calling goroutine, commits its leads and
// reports the outcome. It returns the import error, if any.
func (w *InMemoryWorker) Process(ctx context.Context, req queue.Request) error {
	return process(ctx, req, w.reporter, w.committer, w.logger)
}

func process(ctx context.Context, req queue.Request, reporter Reporter, committer Committer, log logger.Logger) error {
	jobCtx, ok := reporter.Begin(ctx, req)
	if !ok {
		err := fmt.Errorf("%w: cancelled while queued", ingest.ErrCancelled)
		metrics.RecordImport(StatusCancelled, 0)
		reporter.Finish(ctx, req, ingest.Result{Progress: req.Job.Progress()}, err)
		return err
	}

	metrics.WorkerBusy(1)
	defer metrics.WorkerBusy(-1)
	start := time.Now()

	for p := range req.Job.Steps(jobCtx) {
		reporter.Progress(jobCtx, req, p)
	}

	res, err := req.Job.Result()
	if err == nil {
		if cerr := committer.AddAll(ctx, res.Leads); cerr != nil {
			metrics.RecordErrorByComponent("worker", "commit")
			err = fmt.Errorf("%w: %w", ErrCommit, cerr)
			res.Leads = nil
		}
	}
	if err != nil {
		res.Progress = req.Job.Progress()
	}

	status := Outcome(err)
	metrics.RecordImport(status, time.Since(start).Seconds())
	log.Debug(ctx, "import processed",
		logger.String("job", req.JobID),
		logger.String("status", status),
		logger.Int("admitted", len(res.Leads)),
		logger.Duration("took", time.Since(start)),
	)
	reporter.Finish(ctx, req, res, err)
	return err
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	reporter  Reporter
	committer Committer
	started   atomic.Bool

	logger logger.Logger
}

// NewPool creates a worker pool. A workerCount below one starts a single worker.
func NewPool(workerCount int, q Queue, reporter Reporter, committer Committer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		reporter:  reporter,
		committer: committer,
	}
	for i := range workerCount {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, reporter, committer, wopts...)
	}
	pool.logger = pool.workers[0].logger

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Process runs one import synchronously on the caller's goroutine.
func (p *Pool) Process(ctx context.Context, req queue.Request) error {
	return process(ctx, req, p.reporter, p.committer, p.logger)
}

// Shutdown closes the queue, waits for running imports to end and finishes
// every request still queued as cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	closer, closable := p.queue.(interface{ Close() error })
	if closable {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if p.started.Load() {
		shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()

		var errs []error
		for i, worker := range p.workers {
			if err := worker.Shutdown(shutdownCtx); err != nil {
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				errs = append(errs, err)
			}
		}
		metrics.UpdateWorkerActiveCount(0)
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
	}

	if !closable {
		return nil
	}
	for req := range p.queue.Dequeue(ctx) {
		err := fmt.Errorf("%w: %w", ingest.ErrCancelled, ErrStopped)
		metrics.RecordImport(StatusCancelled, 0)
		p.reporter.Finish(ctx, req, ingest.Result{Progress: req.Job.Progress()}, err)
	}
	return nil
}
