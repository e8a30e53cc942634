package storage

import (
	"encoding/json"
	"io"

	"gonum.org/v1/gonum/mat"
)

type ExportData struct {
	Meta    RunMetadata `json:"meta"`
	Times   []float64   `json:"times"`
	States  [][]float64 `json:"states"`
	Defects [][]float64 `json:"defects,omitempty"`
}

// rows returns m's columns as rows.
func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	_, c := m.Dims()
	out := make([][]float64, c)
	for j := range out {
		out[j] = mat.Col(nil, j, m)
	}
	return out
}

// ExportJSON writes a run as indented JSON, one state per node.
func ExportJSON(w io.Writer, meta RunMetadata, times []float64, states, defects *mat.Dense) error {
	data := ExportData{
		Meta:    meta,
		Times:   times,
		States:  rows(states),
		Defects: rows(defects),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
