package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/leadflow/internal/adapters/repository"
	"github.com/okian/leadflow/internal/domain/ingest"
	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/internal/render"
	"github.com/okian/leadflow/pkg/metrics"
)

// queryFlags holds the flags shared by list and export.
type queryFlags struct {
	filter string
	search string
	format string
}

func (f *queryFlags) register(cmd *cobra.Command, defaultFormat string) {
	fl := cmd.Flags()
	fl.StringVar(&f.filter, "filter", "all", "Score band: all, high, medium or low")
	fl.StringVar(&f.search, "search", "", "Case-insensitive match on name, email or company")
	fl.StringVar(&f.format, "format", defaultFormat, "Output format: table, json, md or csv")
}

func (f *queryFlags) query() (repository.Query, error) {
	filter, err := model.ParseScoreFilter(f.filter)
	if err != nil {
		return repository.Query{}, err
	}
	return repository.Query{Search: f.search, Filter: filter}, nil
}

// rootCommand builds a fresh command tree so no flag value leaks from one
// line to the next.
func (s *Session) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadflow",
		Short:         "Lead scoring session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(s.out)
	root.SetErr(s.out)

	root.AddCommand(
		s.addCommand(),
		s.importCommand(),
		s.submitCommand(),
		s.jobsCommand(),
		s.waitCommand(),
		s.cancelCommand(),
		s.listCommand(),
		s.removeCommand(),
		s.statsCommand(),
		s.topCommand(),
		s.exportCommand(),
		s.metricsCommand(),
		&cobra.Command{
			Use:     "exit",
			Aliases: []string{"quit"},
			Short:   "End the session",
			Args:    cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return ErrExit
			},
		},
	)
	return root
}

func (s *Session) addCommand() *cobra.Command {
	values := make(map[model.Field]*string, len(model.Fields))
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Score and store one lead; --name and --email are required",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var attrs model.Attributes
			for _, f := range model.Fields {
				attrs.Set(f, *values[f])
			}
			lead, err := s.svc.AddLead(cmd.Context(), attrs)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Added lead %s: score %d, %s\n", lead.ID, lead.Score, lead.ConversionProbability)
			return nil
		},
	}
	for _, f := range model.Fields {
		values[f] = cmd.Flags().String(string(f), "", "Lead "+string(f))
	}
	return cmd
}

func (s *Session) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a lead file and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			name := filepath.Base(args[0])
			last := -1
			info, err := s.svc.Import(cmd.Context(), name, f, func(p ingest.Progress) {
				if pct := int(p.Percent); pct != last {
					last = pct
					fmt.Fprintf(s.out, "Importing %s: %d%% (%d/%d)\n", name, pct, p.Processed, p.Total)
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Imported %d leads from %s (%d skipped, %d blank)\n",
				info.Admitted, name, info.Progress.Skipped, info.Progress.Blank)
			return nil
		},
	}
}

func (s *Session) submitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file>",
		Short: "Queue a lead file for a background import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			id, err := s.svc.SubmitImport(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			s.track(id)
			fmt.Fprintf(s.out, "Submitted import %s\n", id)
			return nil
		},
	}
}

func (s *Session) jobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs := s.svc.Imports(cmd.Context())
			if len(jobs) == 0 {
				fmt.Fprintln(s.out, "No imports.")
				return nil
			}
			tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE\tSTATUS\tPROGRESS\tADMITTED")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d (%d%%)\t%d\n",
					j.ID, j.Source, j.Status, j.Progress.Processed, j.Progress.Total, int(j.Progress.Percent), j.Admitted)
			}
			return tw.Flush()
		},
	}
}

func (s *Session) waitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Wait for an import to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := s.svc.WaitImport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s.untrack(info.ID)
			fmt.Fprintf(s.out, "Import %s %s: %d leads admitted\n", info.ID, info.Status, info.Admitted)
			if info.Err != nil {
				fmt.Fprintf(s.out, "Reason: %v\n", info.Err)
			}
			return nil
		},
	}
}

func (s *Session) cancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.svc.CancelImport(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Cancelling import %s\n", args[0])
			return nil
		},
	}
}

func (s *Session) listCommand() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			return s.render(flags.format, &render.Report{Leads: s.svc.Leads(cmd.Context(), q)})
		},
	}
	flags.register(cmd, s.format)
	return cmd
}

func (s *Session) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <lead-id>",
		Short: "Delete a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !s.svc.RemoveLead(cmd.Context(), args[0]) {
				return fmt.Errorf("%w: %s", repository.ErrNotFound, args[0])
			}
			fmt.Fprintf(s.out, "Removed lead %s\n", args[0])
			return nil
		},
	}
}

func (s *Session) statsCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := s.svc.Stats(cmd.Context())
			return s.render(format, &render.Report{Stats: &stats})
		},
	}
	cmd.Flags().StringVar(&format, "format", s.format, "Output format: table, json or md")
	return cmd
}

func (s *Session) topCommand() *cobra.Command {
	var (
		n      int
		format string
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the leads most likely to convert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			leads, err := s.svc.TopConverting(cmd.Context(), n)
			if err != nil {
				return err
			}
			return s.render(format, &render.Report{Top: leads})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", s.topLimit, "Number of leads")
	cmd.Flags().StringVar(&format, "format", s.format, "Output format: table, json, md or csv")
	return cmd
}

func (s *Session) exportCommand() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write leads to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			r, err := render.NewRenderer(flags.format)
			if err != nil {
				return err
			}
			leads := s.svc.Leads(cmd.Context(), q)
			out, err := r.Render(&render.Report{Leads: leads})
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], out, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Exported %d leads to %s\n", len(leads), args[0])
			return nil
		},
	}
	flags.register(cmd, render.FormatCSV)
	return cmd
}

func (s *Session) metricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print runtime metrics",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return metrics.WriteText(s.out)
		},
	}
}

func (s *Session) render(format string, report *render.Report) error {
	r, err := render.NewRenderer(format)
	if err != nil {
		return err
	}
	out, err := r.Render(report)
	if err != nil {
		return err
	}
	_, err = s.out.Write(out)
	return err
}
