package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

const sampleCSV = "name,email,company,phone,source,industry,budget,timeline,engagement\n" +
	"John Doe,john@example.com,Acme Inc,+1234567890,website,tech,$50000,immediate,high"

var fixedTime = time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("lead-%d", n)
	}
}

func newPipeline(opts ...ingest.Option) *ingest.Pipeline {
	admitter := ingest.NewAdmitter(
		ingest.WithIDGenerator(sequentialIDs()),
		ingest.WithClock(func() time.Time { return fixedTime }),
	)
	return ingest.NewPipeline(append([]ingest.Option{ingest.WithAdmitter(admitter), ingest.WithLogger(logger.Nop())}, opts...)...)
}

func collect(ctx context.Context, job *ingest.Job) []ingest.Progress {
	var out []ingest.Progress
	for pr := range job.Steps(ctx) {
		out = append(out, pr)
	}
	return out
}

type failingScorer struct{ err error }

func (f failingScorer) Score(context.Context, model.Attributes) (scoring.Result, error) {
	return scoring.Result{}, f.err
}

// cancellingScorer cancels its context while scoring the row numbered at.
type cancellingScorer struct {
	at     int
	calls  int
	cancel context.CancelFunc
}

func (c *cancellingScorer) Score(_ context.Context, attrs model.Attributes) (scoring.Result, error) {
	c.calls++
	if c.calls == c.at {
		c.cancel()
	}
	return scoring.Compute(attrs), nil
}

func TestPipeline_Run(t *testing.T) {
	Convey("Given a pipeline with fixed ids and clock", t, func() {
		p := newPipeline()
		ctx := context.Background()

		Convey("When importing the sample file", func() {
			var seen []ingest.Progress
			res, err := p.Run(ctx, strings.NewReader(sampleCSV), func(pr ingest.Progress) { seen = append(seen, pr) })

			Convey("Then one scored lead is admitted", func() {
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 1)
				lead := res.Leads[0]
				So(lead.ID, ShouldEqual, "lead-1")
				So(lead.Name, ShouldEqual, "John Doe")
				So(lead.Email, ShouldEqual, "john@example.com")
				So(lead.Company, ShouldEqual, "Acme Inc")
				So(lead.Budget, ShouldEqual, "$50000")
				So(lead.Score, ShouldEqual, 85)
				So(lead.ConversionProbability, ShouldEqual, "Very High (85-95%)")
				So(lead.AddedAt, ShouldEqual, fixedTime)
				So(lead.DateAdded, ShouldEqual, "3/5/2024")
				So(lead.PhoneE164, ShouldEqual, "+1234567890")
			})

			Convey("Then progress is reported once and ends at 100", func() {
				So(seen, ShouldHaveLength, 1)
				So(seen[0], ShouldResemble, ingest.Progress{Processed: 1, Total: 1, Percent: 100, Admitted: 1, Done: true})
				So(res.Progress, ShouldResemble, seen[0])
			})
		})

		Convey("When headers use abbreviations", func() {
			res, err := p.Run(ctx, strings.NewReader("Name,E-mail,Co.\nAnn,ann@x.com,Acme"), nil)

			Convey("Then the row still maps", func() {
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 1)
				So(res.Leads[0].Attributes, ShouldResemble, model.Attributes{Name: "Ann", Email: "ann@x.com", Company: "Acme"})
			})
		})

		Convey("When lines end with CRLF", func() {
			res, err := p.Run(ctx, strings.NewReader("Name,Email\r\nAnn,a@x.com\r\n"), nil)

			Convey("Then values are trimmed and the trailing newline is a blank line", func() {
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 1)
				So(res.Leads[0].Email, ShouldEqual, "a@x.com")
				So(res.Progress.Total, ShouldEqual, 2)
				So(res.Progress.Blank, ShouldEqual, 1)
			})
		})

		Convey("When the input starts with a byte order mark", func() {
			res, err := p.Run(ctx, strings.NewReader("\ufeffname,email\nAnn,a@x.com"), nil)

			Convey("Then the header is read normally", func() {
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 1)
			})
		})
	})
}

func TestPipeline_Progress(t *testing.T) {
	Convey("Given a file with 10 data rows of which some are invalid", t, func() {
		var b strings.Builder
		b.WriteString("name,email,source")
		for i := range 10 {
			switch {
			case i%3 == 0:
				fmt.Fprintf(&b, "\nLead %d,,website", i)
			case i == 5:
				b.WriteString("\n   ")
			default:
				fmt.Fprintf(&b, "\nLead %d,lead%d@x.com,referral", i, i)
			}
		}
		job, err := newPipeline().ParseString(b.String())
		So(err, ShouldBeNil)

		Convey("When every step is consumed", func() {
			steps := collect(context.Background(), job)

			Convey("Then there are exactly 10 non-decreasing values ending at 100", func() {
				So(steps, ShouldHaveLength, 10)
				for i := 1; i < len(steps); i++ {
					So(steps[i].Percent, ShouldBeGreaterThanOrEqualTo, steps[i-1].Percent)
					So(steps[i].Processed, ShouldEqual, steps[i-1].Processed+1)
				}
				So(steps[9].Percent, ShouldEqual, 100)
				So(steps[9].Done, ShouldBeTrue)
				So(steps[8].Done, ShouldBeFalse)
			})

			Convey("Then dropped rows advance progress but are not admitted", func() {
				last := steps[9]
				So(last.Skipped, ShouldEqual, 4)
				So(last.Blank, ShouldEqual, 1)
				So(last.Admitted, ShouldEqual, 5)

				res, err := job.Result()
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 5)
				for _, l := range res.Leads {
					So(l.Email, ShouldNotBeEmpty)
				}
			})
		})
	})

	Convey("Given a file with only a header", t, func() {
		job, err := newPipeline().ParseString("name,email")
		So(err, ShouldBeNil)

		Convey("Then no progress is yielded and the result is complete", func() {
			So(collect(context.Background(), job), ShouldBeEmpty)
			So(job.Finished(), ShouldBeTrue)
			res, err := job.Result()
			So(err, ShouldBeNil)
			So(res.Leads, ShouldBeEmpty)
			So(res.Progress.Percent, ShouldEqual, 100)
			So(res.Progress.Done, ShouldBeTrue)
		})
	})

	Convey("Given a file where every row is dropped", t, func() {
		res, err := newPipeline().Run(context.Background(), strings.NewReader("name,email\nAnn,\n,b@x.com"), nil)

		Convey("Then progress still reaches 100 with no leads", func() {
			So(err, ShouldBeNil)
			So(res.Leads, ShouldBeEmpty)
			So(res.Progress.Percent, ShouldEqual, 100)
			So(res.Progress.Skipped, ShouldEqual, 2)
		})
	})
}

func TestPipeline_ParseErrors(t *testing.T) {
	Convey("Given structurally broken input", t, func() {
		p := newPipeline(ingest.WithMaxBytes(64))

		Convey("When the input is empty", func() {
			_, err := p.Parse(strings.NewReader(""))

			Convey("Then a parse error is reported", func() {
				var perr *model.ParseError
				So(errors.As(err, &perr), ShouldBeTrue)
				So(perr.Reason, ShouldEqual, "missing header row")
			})
		})

		Convey("When the header line is blank", func() {
			_, err := p.Parse(strings.NewReader("  \nAnn,a@x.com"))

			Convey("Then a parse error is reported", func() {
				So(errors.Is(err, model.ErrParse), ShouldBeTrue)
			})
		})

		Convey("When the input is larger than allowed", func() {
			_, err := p.Parse(strings.NewReader("name,email\n" + strings.Repeat("a,b\n", 20)))

			Convey("Then it is rejected before any row is processed", func() {
				So(errors.Is(err, model.ErrParse), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "exceeds 64 bytes")
			})
		})

		Convey("When reading fails", func() {
			cause := errors.New("disk gone")
			res, err := p.Run(context.Background(), iotest.ErrReader(cause), nil)

			Convey("Then the parse error carries the cause and no leads", func() {
				So(errors.Is(err, model.ErrParse), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
				So(res.Leads, ShouldBeNil)
			})
		})
	})
}

func TestJob_Cancellation(t *testing.T) {
	Convey("Given a parsed job with several rows", t, func() {
		job, err := newPipeline().ParseString("name,email\na,a@x\nb,b@x\nc,c@x\nd,d@x\ne,e@x")
		So(err, ShouldBeNil)

		Convey("When the context is cancelled after two rows", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			var steps []ingest.Progress
			for pr := range job.Steps(ctx) {
				steps = append(steps, pr)
				if len(steps) == 2 {
					cancel()
				}
			}

			Convey("Then no further progress is yielded", func() {
				So(steps, ShouldHaveLength, 2)
				So(job.Progress().Processed, ShouldEqual, 2)
			})

			Convey("Then the job fails without leads", func() {
				res, err := job.Result()
				So(errors.Is(err, ingest.ErrCancelled), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(res.Leads, ShouldBeNil)
				So(job.Finished(), ShouldBeFalse)
			})

			Convey("Then resuming yields nothing", func() {
				So(collect(context.Background(), job), ShouldBeEmpty)
			})
		})

		Convey("When the context is cancelled while a row is processed", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			scorer := &cancellingScorer{at: 2, cancel: cancel}
			p := ingest.NewPipeline(
				ingest.WithAdmitter(ingest.NewAdmitter(ingest.WithScorer(scorer))),
				ingest.WithLogger(logger.Nop()),
			)
			job, err := p.ParseString("name,email\na,a@x\nb,b@x\nc,c@x")
			So(err, ShouldBeNil)

			steps := collect(ctx, job)

			Convey("Then that row's progress is never yielded", func() {
				So(steps, ShouldHaveLength, 1)
				So(steps[0].Processed, ShouldEqual, 1)
				So(scorer.calls, ShouldEqual, 2)
				_, err := job.Result()
				So(errors.Is(err, ingest.ErrCancelled), ShouldBeTrue)
			})
		})

		Convey("When the consumer stops early", func() {
			ctx := context.Background()
			for pr := range job.Steps(ctx) {
				if pr.Processed == 2 {
					break
				}
			}

			Convey("Then the job is paused and can be resumed", func() {
				_, err := job.Result()
				So(err, ShouldEqual, ingest.ErrNotFinished)

				rest := collect(ctx, job)
				So(rest, ShouldHaveLength, 3)
				So(rest[0].Processed, ShouldEqual, 3)

				res, err := job.Result()
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 5)
			})
		})
	})
}

func TestPipeline_RowRate(t *testing.T) {
	Convey("Given a paced pipeline", t, func() {
		Convey("When the rate is generous", func() {
			p := newPipeline(ingest.WithRowRate(10_000))
			res, err := p.Run(context.Background(), strings.NewReader("name,email\na,a@x\nb,b@x"), nil)

			Convey("Then all rows are processed", func() {
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 2)
			})
		})

		Convey("When the next row cannot start before the deadline", func() {
			p := newPipeline(ingest.WithRowRate(1))
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := p.Run(ctx, strings.NewReader("name,email\na,a@x\nb,b@x\nc,c@x"), nil)

			Convey("Then the import is cancelled by the deadline", func() {
				So(errors.Is(err, ingest.ErrCancelled), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When pacing is disabled again", func() {
			p := newPipeline(ingest.WithRowRate(1), ingest.WithRowRate(0))
			res, err := p.Run(context.Background(), strings.NewReader("name,email\na,a@x\nb,b@x\nc,c@x"), nil)

			Convey("Then rows are not delayed", func() {
				So(err, ShouldBeNil)
				So(res.Leads, ShouldHaveLength, 3)
			})
		})
	})
}

func TestAdmitter(t *testing.T) {
	Convey("Given an admitter", t, func() {
		a := ingest.NewAdmitter(
			ingest.WithIDGenerator(func() string { return "fixed" }),
			ingest.WithClock(func() time.Time { return fixedTime }),
			ingest.WithDateFormat("2006-01-02"),
			ingest.WithPhoneRegion("US"),
		)
		ctx := context.Background()

		Convey("When a manual entry is complete", func() {
			lead, err := a.Admit(ctx, model.Attributes{Name: "Ann", Email: "ann@x.com", Phone: "(650) 253-0000", Source: "event"})

			Convey("Then it is stamped and scored", func() {
				So(err, ShouldBeNil)
				So(lead.ID, ShouldEqual, "fixed")
				So(lead.DateAdded, ShouldEqual, "2024-03-05")
				So(lead.PhoneE164, ShouldEqual, "+16502530000")
				So(lead.Phone, ShouldEqual, "(650) 253-0000")
				So(lead.Score, ShouldEqual, 22+0+5+10)
			})
		})

		Convey("When a manual entry lacks an email", func() {
			_, err := a.Admit(ctx, model.Attributes{Name: "Ann"})

			Convey("Then a validation error is returned", func() {
				var verr *model.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(verr.Fields, ShouldResemble, []string{"email"})
			})
		})

		Convey("When the scorer fails", func() {
			boom := errors.New("boom")
			b := ingest.NewAdmitter(ingest.WithScorer(failingScorer{err: boom}))
			_, err := b.Admit(ctx, model.Attributes{Name: "Ann", Email: "a@x"})

			Convey("Then the failure is wrapped", func() {
				So(errors.Is(err, ingest.ErrAdmit), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When the scorer fails during an import", func() {
			b := ingest.NewAdmitter(ingest.WithScorer(failingScorer{err: errors.New("boom")}))
			p := ingest.NewPipeline(ingest.WithAdmitter(b), ingest.WithLogger(logger.Nop()))
			res, err := p.Run(ctx, strings.NewReader("name,email\na,a@x\nb,b@x"), nil)

			Convey("Then the import fails and admits nothing", func() {
				So(errors.Is(err, ingest.ErrAdmit), ShouldBeTrue)
				So(res.Leads, ShouldBeNil)
			})
		})
	})
}

func TestJob_Accessors(t *testing.T) {
	Convey("Given a parsed job", t, func() {
		job, err := newPipeline().ParseString(" Full Name ,EMAIL,Notes\nAnn,a@x,hi\n")
		So(err, ShouldBeNil)

		Convey("Then headers and columns describe the mapping", func() {
			So(job.Headers(), ShouldResemble, []string{"full name", "email", "notes"})
			cols := job.Columns()
			So(cols[0].Field, ShouldEqual, model.FieldName)
			So(cols[1].Field, ShouldEqual, model.FieldEmail)
			So(cols[2].Field, ShouldEqual, model.Field(""))
			So(job.Total(), ShouldEqual, 2)
			So(job.Err(), ShouldBeNil)
		})
	})
}
