package render

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/okian/leadflow/internal/domain/model"
)

// csvRenderer writes the leads section only, with the attribute columns
// first so an export can be imported again.
type csvRenderer struct{}

func (r *csvRenderer) Render(report *Report) ([]byte, error) {
	leads := report.Leads
	if leads == nil {
		leads = report.Top
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(model.Fields)+3)
	for _, f := range model.Fields {
		header = append(header, string(f))
	}
	header = append(header, "score", "conversion_probability", "date_added")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, l := range leads {
		row := make([]string, 0, len(header))
		for _, f := range model.Fields {
			row = append(row, l.Get(f))
		}
		row = append(row, strconv.Itoa(l.Score), l.ConversionProbability, l.DateAdded)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
