package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Cycles []Cycle     `json:"cycles"`
}

func ExportJSON(w io.Writer, meta *RunMetadata, cycles []Cycle) error {
	data := ExportData{Run: *meta, Cycles: cycles}
	if data.Cycles == nil {
		data.Cycles = []Cycle{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Export writes a stored run as JSON.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	cycles, err := s.LoadCycles(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, meta, cycles)
}
