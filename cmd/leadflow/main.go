// Command leadflow scores sales leads from files or manual entry.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/leadflow/internal/adapters/repository"
	app "github.com/okian/leadflow/internal/app"
	"github.com/okian/leadflow/internal/config"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/domain/scoring"
	"github.com/okian/leadflow/internal/render"
	"github.com/okian/leadflow/internal/sampledata"
	"github.com/okian/leadflow/internal/shell"
	"github.com/okian/leadflow/pkg/logger"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitInput      = 3
)

const shutdownTimeout = 30 * time.Second

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

func codeError(code int, err error) error {
	return &exitErr{code: code, err: err}
}

// cli holds what every subcommand shares once the root has loaded it.
type cli struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	configPath string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadflow",
		Short:         "Score and report on sales leads",
		Long:          "leadflow imports lead files, scores every lead and reports on the collection.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (overrides "+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		c.shellCommand(),
		c.reportCommand(),
		c.scoreCommand(),
		c.generateCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "leadflow", version)
			},
		},
	)
	return root
}

// setup loads configuration and initializes logging.
func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(ctx, config.WithFile(c.configPath))
	if err != nil {
		return codeError(exitInput, err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logger.Init(logger.WithWriter(c.stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		return codeError(exitInput, err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return codeError(exitInput, err)
	}

	c.cfg = cfg
	c.log = logger.Get()
	return nil
}

func (c *cli) scoringOptions() []scoring.Option {
	return []scoring.Option{
		scoring.WithSourcePoints(c.cfg.SourcePoints),
		scoring.WithTimelinePoints(c.cfg.TimelinePoints),
		scoring.WithEngagementPoints(c.cfg.EngagementPoints),
	}
}

func (c *cli) newService() *app.Service {
	return app.New(
		app.WithLogger(c.log),
		app.WithWorkerCount(c.cfg.ImportWorkers),
		app.WithQueueSize(c.cfg.ImportQueueSize),
		app.WithMaxImportBytes(c.cfg.MaxImportBytes),
		app.WithRowRate(c.cfg.RowsPerSecond),
		app.WithPhoneRegion(c.cfg.PhoneRegion),
		app.WithDateFormat(c.cfg.DateFormat),
		app.WithTopConvertingLimit(c.cfg.TopConvertingLimit),
		app.WithScoringOptions(c.scoringOptions()...),
	)
}

// withService starts a service, runs fn and stops it again.
func (c *cli) withService(ctx context.Context, fn func(*app.Service) error) error {
	svc := c.newService()
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			c.log.Error(ctx, "service shutdown failed", logger.Error(err))
		}
	}()
	return fn(svc)
}

func (c *cli) shellCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *app.Service) error {
				fmt.Fprintln(c.stdout, `leadflow shell. Type "help" for commands, "exit" to leave.`)
				sess := shell.New(svc,
					shell.WithOutput(c.stdout),
					shell.WithFormat(format),
					shell.WithTopLimit(c.cfg.TopConvertingLimit),
					shell.WithLogger(c.log.Named("shell")),
				)
				err := sess.Run(cmd.Context(), c.stdin)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", render.FormatTable, "Default output format: table, json, md or csv")
	return cmd
}

func (c *cli) reportCommand() *cobra.Command {
	var (
		format string
		filter string
		top    int
	)
	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Import a lead file and print leads, statistics and top converting leads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scoreFilter, err := model.ParseScoreFilter(filter)
			if err != nil {
				return codeError(exitInput, err)
			}
			r, err := render.NewRenderer(format)
			if err != nil {
				return codeError(exitInput, err)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return codeError(exitInput, err)
			}
			defer f.Close()

			return c.withService(cmd.Context(), func(svc *app.Service) error {
				ctx := cmd.Context()
				info, err := svc.Import(ctx, filepath.Base(args[0]), f, nil)
				if err != nil {
					if errors.Is(err, model.ErrParse) {
						return codeError(exitInput, err)
					}
					return err
				}
				c.log.Info(ctx, "import finished",
					logger.String("source", info.Source),
					logger.Int("admitted", info.Admitted),
					logger.Int("skipped", info.Progress.Skipped),
				)

				stats := svc.Stats(ctx)
				topLeads, err := svc.TopConverting(ctx, top)
				if err != nil {
					return codeError(exitInput, err)
				}
				report := &render.Report{
					Title: "Lead Report: " + info.Source,
					Leads: svc.Leads(ctx, repository.Query{Filter: scoreFilter}),
					Stats: &stats,
					Top:   topLeads,
				}
				out, err := r.Render(report)
				if err != nil {
					return err
				}
				_, err = c.stdout.Write(out)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", render.FormatTable, "Output format: table, json, md or csv")
	cmd.Flags().StringVar(&filter, "filter", "all", "Score band of the listed leads: all, high, medium or low")
	cmd.Flags().IntVarP(&top, "top", "n", 0, "Number of top converting leads (0 uses the configured limit)")
	return cmd
}

func (c *cli) scoreCommand() *cobra.Command {
	values := make(map[model.Field]*string, len(model.Fields))
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one lead given on the command line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var attrs model.Attributes
			for _, f := range model.Fields {
				attrs.Set(f, *values[f])
			}

			svc := c.newService()
			lead, err := svc.AddLead(cmd.Context(), attrs)
			if app.IsValidation(err) {
				return codeError(exitValidation, err)
			}
			if err != nil {
				return err
			}
			breakdown := scoring.NewRuleScorer(c.scoringOptions()...).Compute(attrs).Breakdown

			if asJSON {
				r, _ := render.NewRenderer(render.FormatJSON)
				out, err := r.Render(&render.Report{Leads: []model.Lead{lead}})
				if err != nil {
					return err
				}
				_, err = c.stdout.Write(out)
				return err
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Lead\t%s <%s>\n", lead.Name, lead.Email)
			fmt.Fprintf(tw, "Score\t%d\n", lead.Score)
			fmt.Fprintf(tw, "Conversion Probability\t%s\n", lead.ConversionProbability)
			fmt.Fprintf(tw, "  Source\t%d\n", breakdown.Source)
			fmt.Fprintf(tw, "  Budget\t%d\n", breakdown.Budget)
			fmt.Fprintf(tw, "  Timeline\t%d\n", breakdown.Timeline)
			fmt.Fprintf(tw, "  Engagement\t%d\n", breakdown.Engagement)
			if lead.PhoneE164 != "" {
				fmt.Fprintf(tw, "Phone\t%s\n", lead.PhoneE164)
			}
			return tw.Flush()
		},
	}
	for _, f := range model.Fields {
		values[f] = cmd.Flags().String(string(f), "", "Lead "+string(f))
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the scored lead as JSON")
	return cmd
}

func (c *cli) generateCommand() *cobra.Command {
	cfg := sampledata.DefaultConfig()
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic lead CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := c.stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return codeError(exitInput, err)
				}
				defer f.Close()
				w = f
			}
			stats, err := sampledata.Write(cmd.Context(), w, cfg)
			if errors.Is(err, sampledata.ErrInvalidConfig) {
				return codeError(exitInput, err)
			}
			if err != nil {
				return err
			}
			c.log.Info(cmd.Context(), "sample leads written",
				logger.Int("rows", stats.Rows),
				logger.Int("invalid", stats.Invalid),
				logger.String("out", out),
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Rows, "rows", cfg.Rows, "Number of data rows")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent generators")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed; equal seeds give equal files")
	f.Float64Var(&cfg.InvalidRate, "invalid-rate", cfg.InvalidRate, "Share of rows missing the name or email")
	f.StringVar(&out, "out", "", "Write to file instead of stdout")
	return cmd
}
