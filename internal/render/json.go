package render

import (
	"encoding/json"
)

type jsonRenderer struct{}

func (r *jsonRenderer) Render(report *Report) ([]byte, error) {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
