package render

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/leadflow/internal/domain/model"
)

type tableRenderer struct{}

func (r *tableRenderer) Render(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	if report.Title != "" {
		fmt.Fprintf(&buf, "%s\n\n", report.Title)
	}
	if report.Leads != nil {
		writeLeadTable(&buf, report.Leads, false)
	}
	if s := report.Stats; s != nil {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Total Leads\t%d\n", s.Total)
		fmt.Fprintf(tw, "High Score (70+)\t%d\n", s.High)
		fmt.Fprintf(tw, "Medium Score (40-69)\t%d\n", s.Medium)
		fmt.Fprintf(tw, "Low Score (<40)\t%d\n", s.Low)
		fmt.Fprintf(tw, "Average Score\t%d\n", s.AverageScore)
		if err := tw.Flush(); err != nil {
			return nil, err
		}
	}
	if report.Top != nil {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString("Top Converting Leads\n")
		writeLeadTable(&buf, report.Top, true)
	}
	return buf.Bytes(), nil
}

func writeLeadTable(w io.Writer, leads []model.Lead, ranked bool) {
	if len(leads) == 0 {
		fmt.Fprintln(w, "No leads.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if ranked {
		fmt.Fprint(tw, "#\t")
	}
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCOMPANY\tSOURCE\tSCORE\tPROBABILITY\tADDED")
	for i, l := range leads {
		if ranked {
			fmt.Fprintf(tw, "%d\t", i+1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ID, l.Name, l.Email, dash(l.Company), dash(l.Source), l.Score, l.ConversionProbability, l.DateAdded)
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
