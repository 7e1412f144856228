package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/leadflow/internal/adapters/mq/queue"
	"github.com/okian/leadflow/internal/adapters/mq/worker"
	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/events"
	"github.com/okian/leadflow/pkg/logger"
)

// JobStatus is the lifecycle state of an import.
type JobStatus string

// Import job states.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = worker.StatusCompleted
	JobCancelled JobStatus = worker.StatusCancelled
	JobFailed    JobStatus = worker.StatusFailed
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// JobInfo is a snapshot of one import.
type JobInfo struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Status      JobStatus       `json:"status"`
	Progress    ingest.Progress `json:"progress"`
	Admitted    int             `json:"admitted"`
	Err         error           `json:"-"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   time.Time       `json:"started_at,omitzero"`
	FinishedAt  time.Time       `json:"finished_at,omitzero"`
}

type jobEntry struct {
	info       JobInfo
	cancel     context.CancelFunc
	onProgress func(ingest.Progress)
	done       chan struct{}
}

// tracker records import state and reports it on the bus. It is the
// worker.Reporter of the service's pool.
type tracker struct {
	mu    sync.Mutex
	jobs  map[string]*jobEntry
	order []string

	bus    events.Bus
	now    func() time.Time
	logger logger.Logger
}

var _ worker.Reporter = (*tracker)(nil)

func newTracker(bus events.Bus, now func() time.Time, log logger.Logger) *tracker {
	return &tracker{
		jobs:   make(map[string]*jobEntry),
		bus:    bus,
		now:    now,
		logger: log,
	}
}

func (t *tracker) register(id, source string, total int, onProgress func(ingest.Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.jobs[id] = &jobEntry{
		info: JobInfo{
			ID:          id,
			Source:      source,
			Status:      JobQueued,
			Progress:    ingest.Progress{Total: total},
			SubmittedAt: t.now(),
		},
		onProgress: onProgress,
		done:       make(chan struct{}),
	}
	t.order = append(t.order, id)
}

func (t *tracker) forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.jobs, id)
	t.order = slices.DeleteFunc(t.order, func(v string) bool { return v == id })
}

func (t *tracker) get(id string) (JobInfo, <-chan struct{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.jobs[id]
	if !ok {
		return JobInfo{}, nil, false
	}
	return e.info, e.done, true
}

func (t *tracker) list() []JobInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobInfo, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.jobs[id].info)
	}
	return out
}

// cancel stops a running import or finalizes a queued one. The worker that
// later dequeues a finalized job gets false from Begin and its Finish is a no-op.
func (t *tracker) cancel(ctx context.Context, id string) error {
	t.mu.Lock()
	e, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return ErrJobNotFound
	}
	switch {
	case e.info.Status.Terminal():
		t.mu.Unlock()
		return ErrJobFinished
	case e.info.Status == JobRunning:
		cancel := e.cancel
		t.mu.Unlock()
		cancel()
		return nil
	}

	e.info.Status = JobCancelled
	e.info.Err = ingest.ErrCancelled
	e.info.FinishedAt = t.now()
	close(e.done)
	info := e.info
	t.mu.Unlock()

	t.bus.Publish(ctx, events.ImportCancelled{BaseEvent: events.NewBaseEvent(), JobID: id, Progress: info.Progress})
	return nil
}

// cancelRunning cancels every import currently running.
func (t *tracker) cancelRunning() {
	t.mu.Lock()
	var cancels []context.CancelFunc
	for _, e := range t.jobs {
		if e.info.Status == JobRunning && e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (t *tracker) Begin(ctx context.Context, req queue.Request) (context.Context, bool) {
	t.mu.Lock()
	e, ok := t.jobs[req.JobID]
	if !ok || e.info.Status != JobQueued {
		t.mu.Unlock()
		return ctx, false
	}
	jobCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.info.Status = JobRunning
	e.info.StartedAt = t.now()
	t.mu.Unlock()

	t.logger.Info(ctx, "import started",
		logger.String("job", req.JobID),
		logger.String("source", req.Source),
		logger.Int("rows", req.Job.Total()),
	)
	t.bus.Publish(ctx, events.ImportStarted{
		BaseEvent: events.NewBaseEvent(),
		JobID:     req.JobID,
		Source:    req.Source,
		Total:     req.Job.Total(),
	})
	return jobCtx, true
}

func (t *tracker) Progress(ctx context.Context, req queue.Request, p ingest.Progress) {
	t.mu.Lock()
	var onProgress func(ingest.Progress)
	if e, ok := t.jobs[req.JobID]; ok {
		e.info.Progress = p
		onProgress = e.onProgress
	}
	t.mu.Unlock()

	if onProgress != nil {
		onProgress(p)
	}
	t.bus.Publish(ctx, events.ImportProgressed{BaseEvent: events.NewBaseEvent(), JobID: req.JobID, Progress: p})
}

func (t *tracker) Finish(ctx context.Context, req queue.Request, res ingest.Result, err error) {
	t.mu.Lock()
	e, ok := t.jobs[req.JobID]
	if !ok || e.info.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	status := JobStatus(worker.Outcome(err))
	e.info.Status = status
	e.info.Progress = res.Progress
	e.info.Admitted = len(res.Leads)
	e.info.Err = err
	e.info.FinishedAt = t.now()
	close(e.done)
	info := e.info
	t.mu.Unlock()

	base := events.NewBaseEvent()
	switch status {
	case JobCompleted:
		t.logger.Info(ctx, "import completed",
			logger.String("job", info.ID),
			logger.Int("admitted", info.Admitted),
			logger.Int("skipped", info.Progress.Skipped),
		)
		for _, lead := range res.Leads {
			t.bus.Publish(ctx, events.LeadAdded{BaseEvent: base, Lead: lead, JobID: info.ID})
		}
		t.bus.Publish(ctx, events.ImportCompleted{BaseEvent: base, JobID: info.ID, Progress: info.Progress})
	case JobCancelled:
		t.logger.Info(ctx, "import cancelled", logger.String("job", info.ID), logger.Int("processed", info.Progress.Processed))
		t.bus.Publish(ctx, events.ImportCancelled{BaseEvent: base, JobID: info.ID, Progress: info.Progress})
	default:
		t.logger.Error(ctx, "import failed", logger.String("job", info.ID), logger.Error(err))
		t.bus.Publish(ctx, events.ImportFailed{BaseEvent: base, JobID: info.ID, Err: err})
	}
}
