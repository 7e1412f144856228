// Package render formats leads, collection statistics and top converting
// leads for output.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/leadflow/internal/adapters/repository"
	"github.com/okian/leadflow/internal/domain/model"
)

// Supported output formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatCSV      = "csv"
)

// ErrUnknownFormat is returned by NewRenderer for an unsupported format.
var ErrUnknownFormat = errors.New("unknown format")

// Report is what gets rendered. Nil sections are left out.
type Report struct {
	Title string            `json:"title,omitempty"`
	Leads []model.Lead      `json:"leads,omitempty"`
	Stats *repository.Stats `json:"stats,omitempty"`
	Top   []model.Lead      `json:"top_converting,omitempty"`
}

// Renderer formats a Report into bytes for output.
type Renderer interface {
	Render(report *Report) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "table" (default), "json", "md", "csv".
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return &tableRenderer{}, nil
	case FormatJSON:
		return &jsonRenderer{}, nil
	case FormatMarkdown, "markdown":
		return &markdownRenderer{}, nil
	case FormatCSV:
		return &csvRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w %q: supported formats are table, json, md, csv", ErrUnknownFormat, format)
	}
}
