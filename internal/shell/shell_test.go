package shell_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	service "github.com/okian/leadflow/internal/app"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/shell"
	"github.com/okian/leadflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

const leadsCSV = "Name,Email,Company,Source,Budget,Timeline,Engagement\n" +
	"John Doe,john@example.com,Acme Inc,website,$50000,immediate,high\n" +
	"Jane Roe,jane@example.com,Globex,referral,2000,within 1 month,low\n" +
	",nobody@example.com,,,,,"

func newSession(t *testing.T) (*shell.Session, *bytes.Buffer, *service.Service) {
	t.Helper()
	n := 0
	svc := service.New(
		service.WithLogger(logger.Nop()),
		service.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		service.WithClock(func() time.Time { return time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC) }),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	var out bytes.Buffer
	sess := shell.New(svc,
		shell.WithOutput(&out),
		shell.WithPrompt(""),
		shell.WithNotifications(false),
		shell.WithLogger(logger.Nop()),
	)
	return sess, &out, svc
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestSession_AddAndList(t *testing.T) {
	Convey("Given an empty session", t, func() {
		sess, out, _ := newSession(t)
		ctx := context.Background()

		Convey("When adding a lead with quoted values", func() {
			err := sess.Exec(ctx, `add --name "John Doe" --email john@example.com --company 'Acme Inc' --source website --budget $50000 --timeline immediate --engagement high`)

			Convey("Then it is scored and listed", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Added lead id-1: score 85, Very High (85-95%)")

				out.Reset()
				So(sess.Exec(ctx, "list --filter high"), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "John Doe")
				So(out.String(), ShouldContainSubstring, "Acme Inc")
			})
		})

		Convey("When the email is missing", func() {
			err := sess.Exec(ctx, "add --name Ann")

			Convey("Then a validation error is returned", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "email")
			})
		})

		Convey("When the filter is unknown", func() {
			err := sess.Exec(ctx, "list --filter hot")

			Convey("Then the filter is rejected", func() {
				So(errors.Is(err, model.ErrUnknownFilter), ShouldBeTrue)
			})
		})

		Convey("When the line has an unterminated quote", func() {
			err := sess.Exec(ctx, `add --name "John`)

			Convey("Then the line is rejected", func() {
				So(errors.Is(err, shell.ErrParseLine), ShouldBeTrue)
			})
		})

		Convey("When the line is blank", func() {
			Convey("Then nothing happens", func() {
				So(sess.Exec(ctx, "   "), ShouldBeNil)
				So(out.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the command is unknown", func() {
			Convey("Then an error is returned", func() {
				So(sess.Exec(ctx, "frobnicate"), ShouldNotBeNil)
			})
		})
	})
}

func TestSession_Import(t *testing.T) {
	Convey("Given a session and a lead file", t, func() {
		sess, out, svc := newSession(t)
		ctx := context.Background()
		path := writeFile(t, "leads.csv", leadsCSV)

		Convey("When importing it", func() {
			err := sess.Exec(ctx, "import "+path)

			Convey("Then progress and a summary are printed", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Importing leads.csv: 33% (1/3)")
				So(out.String(), ShouldContainSubstring, "Importing leads.csv: 100% (3/3)")
				So(out.String(), ShouldContainSubstring, "Imported 2 leads from leads.csv (1 skipped, 0 blank)")
				So(svc.Stats(ctx).Total, ShouldEqual, 2)
			})

			Convey("Then stats and top reflect the import", func() {
				out.Reset()
				So(sess.Exec(ctx, "stats --format json"), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, `"total": 2`)

				out.Reset()
				So(sess.Exec(ctx, "top -n 1"), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Top Converting Leads")
				So(out.String(), ShouldContainSubstring, "John Doe")
				So(out.String(), ShouldNotContainSubstring, "Jane Roe")
			})

			Convey("Then leads can be exported and removed", func() {
				exported := filepath.Join(t.TempDir(), "out.csv")
				So(sess.Exec(ctx, "export "+exported+" --search globex"), ShouldBeNil)
				data, err := os.ReadFile(exported)
				So(err, ShouldBeNil)
				So(strings.Count(string(data), "\n"), ShouldEqual, 2)
				So(string(data), ShouldContainSubstring, "Jane Roe")

				So(sess.Exec(ctx, "remove id-3"), ShouldBeNil)
				So(svc.Stats(ctx).Total, ShouldEqual, 1)
				So(sess.Exec(ctx, "remove id-3"), ShouldNotBeNil)
			})
		})

		Convey("When the file does not exist", func() {
			err := sess.Exec(ctx, "import "+filepath.Join(t.TempDir(), "missing.csv"))

			Convey("Then the open error is returned", func() {
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			})
		})

		Convey("When submitting it in the background", func() {
			So(sess.Exec(ctx, "submit "+path), ShouldBeNil)
			id := strings.TrimSpace(strings.TrimPrefix(out.String(), "Submitted import "))
			out.Reset()

			So(sess.Exec(ctx, "wait "+id), ShouldBeNil)

			Convey("Then the outcome is reported and listed", func() {
				So(out.String(), ShouldContainSubstring, "Import "+id+" completed: 2 leads admitted")

				out.Reset()
				So(sess.Exec(ctx, "jobs"), ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "leads.csv")
				So(out.String(), ShouldContainSubstring, "3/3 (100%)")
			})

			Convey("Then a finished import cannot be cancelled", func() {
				So(errors.Is(sess.Exec(ctx, "cancel "+id), service.ErrJobFinished), ShouldBeTrue)
			})
		})
	})
}

func TestSession_Run(t *testing.T) {
	Convey("Given a session reading a script", t, func() {
		sess, out, _ := newSession(t)
		script := strings.Join([]string{
			"add --name Ann --email ann@x.com",
			"add --name Bob",
			"jobs",
			"metrics",
			"exit",
			"add --name Never --email never@x.com",
		}, "\n")

		Convey("When running it", func() {
			err := sess.Run(context.Background(), strings.NewReader(script))

			Convey("Then errors are printed and exit stops the session", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Added lead id-1")
				So(out.String(), ShouldContainSubstring, "Error: validation failed")
				So(out.String(), ShouldContainSubstring, "No imports.")
				So(out.String(), ShouldContainSubstring, "leadflow_ingest_manual_entries_total")
				So(out.String(), ShouldNotContainSubstring, "Never")
			})
		})

		Convey("When the input ends without exit", func() {
			err := sess.Run(context.Background(), strings.NewReader("help"))

			Convey("Then the session ends cleanly", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Available Commands")
			})
		})
	})
}
