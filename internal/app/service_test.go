package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/leadflow/internal/adapters/repository"
	service "github.com/okian/leadflow/internal/app"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/internal/events"
	"github.com/okian/leadflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var fixedTime = time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithIDGenerator(sequentialIDs()),
		service.WithClock(func() time.Time { return fixedTime }),
		service.WithLogger(logger.Nop()),
	}
	return service.New(append(base, opts...)...)
}

// recorder keeps every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventName())
	}
	return out
}

func (r *recorder) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

var hotLead = model.Attributes{
	Name:       "John Doe",
	Email:      "john@example.com",
	Company:    "Acme Inc",
	Phone:      "+1234567890",
	Source:     "website",
	Industry:   "tech",
	Budget:     "$50000",
	Timeline:   "immediate",
	Engagement: "high",
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, service.DefaultWorkerCount)
			So(stats["queueSize"], ShouldEqual, service.DefaultQueueSize)
			So(stats["leads"], ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(8),
			service.WithMaxImportBytes(1<<10),
			service.WithRowRate(0),
			service.WithPhoneRegion("GB"),
			service.WithDateFormat("2006-01-02"),
			service.WithTopConvertingLimit(3),
			service.WithBus(events.NewInMemoryBus()),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats(context.Background())["workerCount"], ShouldEqual, 4)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("When stopping the service", func() {
				So(svc.Stop(ctx), ShouldBeNil)

				Convey("Then it should be marked as stopped", func() {
					So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				})

				Convey("Then it can be started again", func() {
					So(svc.Start(ctx), ShouldBeNil)
					So(svc.Stop(ctx), ShouldBeNil)
				})
			})
		})

		Convey("When stopping a service that never started", func() {
			Convey("Then nothing happens", func() {
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_AddLead(t *testing.T) {
	Convey("Given a service with an event recorder", t, func() {
		svc := newService()
		rec := &recorder{}
		svc.Subscribe(events.AllEvents, rec)
		ctx := context.Background()

		Convey("When adding a complete lead", func() {
			lead, err := svc.AddLead(ctx, hotLead)

			Convey("Then it is scored, stamped and stored", func() {
				So(err, ShouldBeNil)
				So(lead.ID, ShouldEqual, "id-1")
				So(lead.Score, ShouldEqual, 85)
				So(lead.ConversionProbability, ShouldEqual, scoring.ProbabilityVeryHigh)
				So(lead.DateAdded, ShouldEqual, "3/5/2024")

				got, err := svc.GetLead(ctx, lead.ID)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, lead)
			})

			Convey("Then a lead.added event is published without a job id", func() {
				So(rec.names(), ShouldResemble, []string{events.NameLeadAdded})
				So(rec.events[0].(events.LeadAdded).JobID, ShouldBeEmpty)
			})
		})

		Convey("When adding a lead without an email", func() {
			_, err := svc.AddLead(ctx, model.Attributes{Name: "Ann"})

			Convey("Then a validation error is returned and nothing changes", func() {
				So(service.IsValidation(err), ShouldBeTrue)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(svc.Stats(ctx).Total, ShouldEqual, 0)
				So(rec.names(), ShouldBeEmpty)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.AddLead(cctx, hotLead)

			Convey("Then the lead is rejected", func() {
				So(err, ShouldNotBeNil)
				So(service.IsValidation(err), ShouldBeFalse)
				So(svc.Stats(ctx).Total, ShouldEqual, 0)
			})
		})
	})
}

func TestService_RemoveLead(t *testing.T) {
	Convey("Given a service holding one lead", t, func() {
		svc := newService()
		rec := &recorder{}
		svc.Subscribe(events.NameLeadRemoved, rec)
		ctx := context.Background()
		lead, err := svc.AddLead(ctx, hotLead)
		So(err, ShouldBeNil)

		Convey("When removing it", func() {
			removed := svc.RemoveLead(ctx, lead.ID)

			Convey("Then it is gone and the removal is announced", func() {
				So(removed, ShouldBeTrue)
				_, err := svc.GetLead(ctx, lead.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(rec.names(), ShouldResemble, []string{events.NameLeadRemoved})
			})
		})

		Convey("When removing an unknown id", func() {
			Convey("Then nothing is removed or announced", func() {
				So(svc.RemoveLead(ctx, "missing"), ShouldBeFalse)
				So(rec.names(), ShouldBeEmpty)
			})
		})
	})
}

func TestService_Views(t *testing.T) {
	Convey("Given a service with leads across every band", t, func() {
		svc := newService(service.WithTopConvertingLimit(1))
		ctx := context.Background()

		for _, attrs := range []model.Attributes{
			hotLead,
			{Name: "Mid", Email: "mid@corp.io", Source: "referral", Budget: "20000"},
			{Name: "Cold", Email: "cold@corp.io"},
			{Name: "Warm", Email: "warm@acme.com", Source: "website", Budget: "60000", Timeline: "immediate"},
		} {
			_, err := svc.AddLead(ctx, attrs)
			So(err, ShouldBeNil)
		}

		Convey("When listing by band", func() {
			high := svc.Leads(ctx, repository.Query{Filter: model.FilterHigh})
			low := svc.Leads(ctx, repository.Query{Filter: model.FilterLow})

			Convey("Then only matching leads are returned", func() {
				So(high, ShouldHaveLength, 2)
				for _, l := range high {
					So(l.Score, ShouldBeGreaterThanOrEqualTo, model.HighScoreThreshold)
				}
				So(low, ShouldHaveLength, 1)
				So(low[0].Name, ShouldEqual, "Cold")
			})
		})

		Convey("When searching", func() {
			found := svc.Leads(ctx, repository.Query{Search: "ACME"})

			Convey("Then name, email and company are matched case-insensitively", func() {
				So(found, ShouldHaveLength, 2)
			})
		})

		Convey("When asking for the top converting leads with no limit", func() {
			top, err := svc.TopConverting(ctx, 0)

			Convey("Then the configured limit applies", func() {
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 1)
				So(top[0].Name, ShouldEqual, "John Doe")
			})
		})

		Convey("When asking for a negative number of leads", func() {
			_, err := svc.TopConverting(ctx, -1)

			Convey("Then the limit is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When reading statistics", func() {
			stats := svc.Stats(ctx)

			Convey("Then every lead is counted once", func() {
				So(stats.Total, ShouldEqual, 4)
				So(stats.High+stats.Medium+stats.Low, ShouldEqual, 4)
			})
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("Then imports are refused", func() {
			_, err := svc.Import(ctx, "x.csv", nil, nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.SubmitImport(ctx, "x.csv", nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then unknown jobs are reported", func() {
			_, err := svc.ImportStatus(ctx, "nope")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)
			_, err = svc.WaitImport(ctx, "nope")
			So(errors.Is(err, service.ErrJobNotFound), ShouldBeTrue)
			So(errors.Is(svc.CancelImport(ctx, "nope"), service.ErrJobNotFound), ShouldBeTrue)
			So(svc.Imports(ctx), ShouldBeEmpty)
		})
	})
}
