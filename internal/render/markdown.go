package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var mdFuncs = template.FuncMap{ //nolint:gochecknoglobals // template helpers
	"cell": func(s string) string {
		if s == "" {
			return "-"
		}
		return strings.ReplaceAll(s, "|", `\|`)
	},
	"inc": func(i int) int { return i + 1 },
}

var mdTemplate = template.Must(template.New("report").Funcs(mdFuncs).Parse(`# {{ if .Title }}{{ .Title }}{{ else }}Lead Report{{ end }}
{{ if .Leads }}
## Leads

| Name | Email | Company | Source | Score | Probability | Added |
|---|---|---|---|---:|---|---|
{{ range .Leads }}| {{ cell .Name }} | {{ cell .Email }} | {{ cell .Company }} | {{ cell .Source }} | {{ .Score }} | {{ .ConversionProbability }} | {{ .DateAdded }} |
{{ end }}{{ end }}{{ with .Stats }}
## Statistics

- **Total Leads:** {{ .Total }}
- **High Score (70+):** {{ .High }}
- **Medium Score (40-69):** {{ .Medium }}
- **Low Score (<40):** {{ .Low }}
- **Average Score:** {{ .AverageScore }}
{{ end }}{{ if .Top }}
## Top Converting Leads
{{ range $i, $l := .Top }}
{{ inc $i }}. **{{ cell $l.Name }}** ({{ cell $l.Company }}): {{ $l.Score }}, {{ $l.ConversionProbability }}{{ end }}
{{ end }}`))

type markdownRenderer struct{}

func (r *markdownRenderer) Render(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}
