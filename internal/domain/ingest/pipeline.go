// Package ingest turns header-described comma separated text into admitted,
// scored leads.
//
// Parsing is eager and structural: the whole input is read, split into lines
// and the header row resolved. Row processing is lazy: a Job yields one
// Progress per data line, in file order, and can be paused by breaking out of
// the sequence or stopped through its context. Leads are only handed out once
// every line has been processed.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/okian/leadflow/internal/domain/mapping"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/pkg/logger"
	"github.com/okian/leadflow/pkg/metrics"
	"golang.org/x/time/rate"
)

// DefaultMaxBytes bounds a single import.
const DefaultMaxBytes int64 = 32 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF} //nolint:gochecknoglobals // constant byte sequence

// Skip reasons reported to metrics.
const (
	skipMissingRequired = "missing_required"
	skipBlank           = "blank"
)

// Progress is reported after every processed data line.
type Progress struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Admitted  int     `json:"admitted"`
	Skipped   int     `json:"skipped"`
	Blank     int     `json:"blank"`
	Done      bool    `json:"done"`
}

// Result is the outcome of a completed import.
type Result struct {
	Leads    []model.Lead
	Progress Progress
}

// Pipeline parses imports and drives their jobs.
type Pipeline struct {
	admitter *Admitter
	limiter  *rate.Limiter
	maxBytes int64
	logger   logger.Logger
}

// NewPipeline creates a pipeline. Without options it admits rows with the
// default Admitter and does not pace rows.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(p)
	}
	if p.admitter == nil {
		p.admitter = NewAdmitter()
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}
	return p
}

// Parse reads src and resolves its header row. Read failures, oversized input
// and a blank header row are reported as *model.ParseError.
func (p *Pipeline) Parse(src io.Reader) (*Job, error) {
	data, err := io.ReadAll(io.LimitReader(src, p.maxBytes+1))
	if err != nil {
		metrics.RecordErrorByComponent("ingest", "read")
		return nil, &model.ParseError{Reason: "read input", Err: err}
	}
	if int64(len(data)) > p.maxBytes {
		metrics.RecordErrorByComponent("ingest", "too_large")
		return nil, &model.ParseError{Reason: fmt.Sprintf("input exceeds %d bytes", p.maxBytes)}
	}
	return p.ParseString(string(bytes.TrimPrefix(data, utf8BOM)))
}

// ParseString is Parse for input already in memory.
func (p *Pipeline) ParseString(text string) (*Job, error) {
	lines := strings.Split(text, "\n")
	header := strings.TrimSpace(lines[0])
	if header == "" {
		metrics.RecordErrorByComponent("ingest", "no_header")
		return nil, &model.ParseError{Reason: "missing header row"}
	}
	headers := mapping.NormalizeHeaders(header)
	return &Job{
		pipeline: p,
		headers:  headers,
		mapper:   mapping.New(headers),
		lines:    lines[1:],
		progress: Progress{Total: len(lines) - 1},
	}, nil
}

// Run parses src and processes every row, calling onProgress after each one.
func (p *Pipeline) Run(ctx context.Context, src io.Reader, onProgress func(Progress)) (Result, error) {
	job, err := p.Parse(src)
	if err != nil {
		return Result{}, err
	}
	for pr := range job.Steps(ctx) {
		if onProgress != nil {
			onProgress(pr)
		}
	}
	return job.Result()
}

// Job is one parsed import. It is not safe for concurrent use.
type Job struct {
	pipeline *Pipeline
	headers  []string
	mapper   *mapping.Mapper
	lines    []string

	next     int
	progress Progress
	leads    []model.Lead
	err      error
}

// Headers returns the normalized header row.
func (j *Job) Headers() []string { return slices.Clone(j.headers) }

// Columns returns how each header was mapped.
func (j *Job) Columns() []mapping.Column { return j.mapper.Columns() }

// Total is the number of data lines, blank ones included.
func (j *Job) Total() int { return len(j.lines) }

// Progress returns the latest progress.
func (j *Job) Progress() Progress { return j.progress }

// Err returns the error that stopped the job, if any.
func (j *Job) Err() error { return j.err }

// Finished reports whether every line has been processed.
func (j *Job) Finished() bool { return j.err == nil && j.next >= len(j.lines) }

// Steps processes the remaining lines lazily, yielding progress after each.
// Breaking out of the loop pauses the job; a later call resumes at the next
// line. Once ctx is done the job fails with ErrCancelled and yields nothing
// further.
func (j *Job) Steps(ctx context.Context) iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		for j.err == nil && j.next < len(j.lines) {
			if err := ctx.Err(); err != nil {
				j.fail(err)
				return
			}
			if lim := j.pipeline.limiter; lim != nil {
				if err := lim.Wait(ctx); err != nil {
					if ctx.Err() == nil {
						// the next token would arrive after the deadline
						err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
					}
					j.fail(err)
					return
				}
			}
			if err := j.step(ctx); err != nil {
				j.fail(err)
				return
			}
			// ctx may have ended while the row was processed
			if err := ctx.Err(); err != nil {
				j.fail(err)
				return
			}
			if !yield(j.progress) {
				return
			}
		}
	}
}

// Result returns the admitted leads once the job has finished. A job with no
// data lines finishes immediately at 100 percent.
func (j *Job) Result() (Result, error) {
	if j.err != nil {
		return Result{}, j.err
	}
	if j.next < len(j.lines) {
		return Result{}, ErrNotFinished
	}
	pr := j.progress
	pr.Percent = 100
	pr.Done = true
	return Result{Leads: slices.Clone(j.leads), Progress: pr}, nil
}

func (j *Job) step(ctx context.Context) error {
	lineNo := j.next + 2
	line := strings.TrimSpace(j.lines[j.next])

	switch {
	case line == "":
		j.progress.Blank++
		metrics.RecordRowSkipped(skipBlank)
	default:
		attrs := j.mapper.Map(mapping.SplitRow(line))
		lead, err := j.pipeline.admitter.Admit(ctx, attrs)
		switch {
		case err == nil:
			j.leads = append(j.leads, lead)
			j.progress.Admitted++
			metrics.RecordRowAdmitted()
		case isValidation(err):
			j.progress.Skipped++
			metrics.RecordRowSkipped(skipMissingRequired)
			j.pipeline.logger.Debug(ctx, "row skipped", logger.Int("line", lineNo), logger.Error(err))
		default:
			return err
		}
	}

	j.next++
	j.progress.Processed = j.next
	j.progress.Percent = float64(j.next) * 100 / float64(len(j.lines))
	j.progress.Done = j.next == len(j.lines)
	metrics.RecordRowProcessed()
	return nil
}

func (j *Job) fail(err error) {
	j.leads = nil
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		j.err = fmt.Errorf("%w: %w", ErrCancelled, err)
		return
	}
	j.err = err
}
