// Package mapping maps free-form tabular column headers onto the lead schema.
//
// A header is claimed by the first rule, in schema order, whose substring it
// contains. Matching is tried on the header as written and on its compact
// form with every non-alphanumeric character removed, so "E-mail" is an email
// column. A few common abbreviations are matched exactly. Headers that match
// no rule are ignored.
package mapping

import (
	"slices"
	"strings"
	"unicode"

	"github.com/okian/leadflow/internal/domain/model"
)

type rule struct {
	field    model.Field
	contains []string
	exact    []string
}

// rules are evaluated in order; the first match claims the header.
var rules = []rule{ //nolint:gochecknoglobals // fixed rule table
	{field: model.FieldName, contains: []string{"name"}},
	{field: model.FieldEmail, contains: []string{"email"}},
	{field: model.FieldCompany, contains: []string{"company", "organization", "organisation"}, exact: []string{"co", "org"}},
	{field: model.FieldPhone, contains: []string{"phone"}},
	{field: model.FieldSource, contains: []string{"source"}},
	{field: model.FieldIndustry, contains: []string{"industry"}},
	{field: model.FieldBudget, contains: []string{"budget"}},
	{field: model.FieldTimeline, contains: []string{"timeline"}},
	{field: model.FieldEngagement, contains: []string{"engagement"}},
}

// NormalizeHeaders splits a header line on commas and lowercases and trims
// every column name.
func NormalizeHeaders(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts
}

// SplitRow splits a data line on commas and trims every value.
// Quoted fields are not supported.
func SplitRow(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// FieldFor returns the schema field claimed by a normalized header.
func FieldFor(header string) (model.Field, bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, header)
	for _, r := range rules {
		if slices.Contains(r.exact, compact) {
			return r.field, true
		}
		for _, s := range r.contains {
			if strings.Contains(header, s) || strings.Contains(compact, s) {
				return r.field, true
			}
		}
	}
	return "", false
}

// Column pairs a header with the field it maps to. Field is empty for
// ignored columns.
type Column struct {
	Header string
	Field  model.Field
}

// Mapper converts data rows into lead attributes for one header row.
type Mapper struct {
	columns []Column
}

// New resolves every header once.
func New(headers []string) *Mapper {
	cols := make([]Column, len(headers))
	for i, h := range headers {
		f, _ := FieldFor(h)
		cols[i] = Column{Header: h, Field: f}
	}
	return &Mapper{columns: cols}
}

// Columns returns the resolved header mapping in column order.
func (m *Mapper) Columns() []Column {
	return slices.Clone(m.columns)
}

// Map builds attributes from one row of values. Rows shorter than the header
// are padded with empty values. When several columns map to the same field
// the rightmost column wins, even when its value is empty. Extra values
// beyond the header are ignored.
func (m *Mapper) Map(values []string) model.Attributes {
	var a model.Attributes
	for i, col := range m.columns {
		if col.Field == "" {
			continue
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		a.Set(col.Field, v)
	}
	return a
}
