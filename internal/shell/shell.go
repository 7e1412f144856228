// Package shell is the interactive front end of leadflow. Every input line
// is tokenized like a POSIX shell would and dispatched through a cobra
// command tree; state lives in the service for the life of the process.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/okian/leadflow/internal/adapters/repository"
	service "github.com/okian/leadflow/internal/app"
	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/events"
	"github.com/okian/leadflow/internal/render"
	"github.com/okian/leadflow/pkg/logger"
)

// DefaultPrompt is printed before every line read.
const DefaultPrompt = "leadflow> "

// Service is the part of the application service the shell drives.
type Service interface {
	AddLead(ctx context.Context, attrs model.Attributes) (model.Lead, error)
	RemoveLead(ctx context.Context, id string) bool
	Leads(ctx context.Context, q repository.Query) []model.Lead
	Stats(ctx context.Context) repository.Stats
	TopConverting(ctx context.Context, n int) ([]model.Lead, error)
	Import(ctx context.Context, source string, src io.Reader, onProgress func(ingest.Progress)) (service.JobInfo, error)
	SubmitImport(ctx context.Context, source string, src io.Reader) (string, error)
	Imports(ctx context.Context) []service.JobInfo
	WaitImport(ctx context.Context, id string) (service.JobInfo, error)
	CancelImport(ctx context.Context, id string) error
	Subscribe(name string, handler events.Handler) func()
}

// Session reads commands and prints their results.
type Session struct {
	svc      Service
	out      io.Writer
	prompt   string
	format   string
	topLimit int
	notify   bool

	mu        sync.Mutex
	submitted map[string]struct{}

	logger logger.Logger
}

// New creates a session over svc writing to stdout.
func New(svc Service, opts ...Option) *Session {
	s := &Session{
		svc:       svc,
		out:       os.Stdout,
		prompt:    DefaultPrompt,
		format:    render.FormatTable,
		topLimit:  service.DefaultTopConvertingLimit,
		notify:    true,
		submitted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("shell")
	}
	s.out = &syncWriter{w: s.out}
	return s
}

// Run executes lines from in until it is exhausted, exit is entered or ctx
// ends. Command errors are printed and do not end the session.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	if s.notify {
		unsubscribe := s.svc.Subscribe(events.AllEvents, events.HandlerFunc(s.onEvent))
		defer unsubscribe()
	}

	scanner := bufio.NewScanner(in)
	for {
		if s.prompt != "" {
			fmt.Fprint(s.out, s.prompt)
		}
		if !scanner.Scan() {
			break
		}
		err := s.Exec(ctx, scanner.Text())
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// Exec runs a single command line. Blank lines are ignored.
func (s *Session) Exec(ctx context.Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseLine, err)
	}
	if len(args) == 0 {
		return nil
	}

	s.logger.Debug(ctx, "executing command", logger.String("command", args[0]), logger.Int("args", len(args)-1))

	root := s.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (s *Session) track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted[id] = struct{}{}
}

// untrack reports whether id was a background import of this session.
func (s *Session) untrack(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.submitted[id]
	delete(s.submitted, id)
	return ok
}

func (s *Session) onEvent(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.ImportCompleted:
		if s.untrack(ev.JobID) {
			fmt.Fprintf(s.out, "\n[import %s] completed: %d of %d rows admitted\n", ev.JobID, ev.Progress.Admitted, ev.Progress.Total)
		}
	case events.ImportCancelled:
		if s.untrack(ev.JobID) {
			fmt.Fprintf(s.out, "\n[import %s] cancelled after %d of %d rows\n", ev.JobID, ev.Progress.Processed, ev.Progress.Total)
		}
	case events.ImportFailed:
		if s.untrack(ev.JobID) {
			fmt.Fprintf(s.out, "\n[import %s] failed: %v\n", ev.JobID, ev.Err)
		}
	}
	return nil
}

// syncWriter serializes writes from commands and event handlers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
