package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/physloop/internal/sim"
)

func sampleCycles() []Cycle {
	return FromReports([]sim.CycleReport{
		{Cycle: 1, Budget: 0.07, Consumed: 0.04, StepDts: []float32{0.02, 0.02}, Bodies: 3, Contacts: 1, Added: 3, Duration: 1500 * time.Microsecond},
		{Cycle: 2, Budget: 0.03, Consumed: 0.03, StepDts: []float32{0.02, 0.01}, Bodies: 3, Err: errors.New("scene 1: step stage (cycle 2): boom")},
		{Cycle: 3, Budget: 0.02, Consumed: 0.02, Disabled: true, Bodies: 2, Removed: 1},
	})
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := RunMetadata{
		Scenario:    "drop",
		Mode:        "sync",
		Integrator:  "symplectic",
		Seed:        42,
		FixedStep:   0.02,
		MaxSubSteps: 2,
		Metrics:     map[string]float64{"saturation": 0.5},
	}
	runID, err := st.Save(meta, sampleCycles())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.ID != runID {
		t.Errorf("expected id %s, got %s", runID, loaded.ID)
	}
	if loaded.Scenario != "drop" {
		t.Errorf("expected scenario 'drop', got '%s'", loaded.Scenario)
	}
	if loaded.Seed != 42 {
		t.Errorf("expected seed 42, got %d", loaded.Seed)
	}
	if loaded.Metrics["saturation"] != 0.5 {
		t.Errorf("expected saturation 0.5, got %f", loaded.Metrics["saturation"])
	}
	if loaded.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	cycles, err := st.LoadCycles(runID)
	if err != nil {
		t.Fatalf("load cycles failed: %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("expected 3 cycles, got %d", len(cycles))
	}
	if cycles[0].Substeps != 2 || cycles[0].Contacts != 1 || cycles[0].Added != 3 {
		t.Errorf("unexpected first cycle: %+v", cycles[0])
	}
	if cycles[0].LatencyMs != 1.5 {
		t.Errorf("expected latency 1.5ms, got %f", cycles[0].LatencyMs)
	}
	if cycles[1].Err == "" {
		t.Error("expected cycle error to round-trip")
	}
	if !cycles[2].Disabled || cycles[2].Removed != 1 || cycles[2].Substeps != 0 {
		t.Errorf("unexpected third cycle: %+v", cycles[2])
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, err := st.Save(RunMetadata{Scenario: "drop"}, nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	second, err := st.Save(RunMetadata{Scenario: "drop"}, nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct run ids, got %s twice", first)
	}

	// stray files and broken runs are skipped
	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(tmpDir, "broken"), 0755)

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Timestamp.After(runs[1].Timestamp) {
		t.Error("expected runs sorted oldest first")
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{Scenario: "rain"}, sampleCycles())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	if _, err := os.Stat(filepath.Join(runDir, "metadata.json")); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}
	if _, err := os.Stat(filepath.Join(runDir, "cycles.csv")); os.IsNotExist(err) {
		t.Error("cycles.csv not created")
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	runID, err := st.Save(RunMetadata{Scenario: "stack", Frames: 3}, sampleCycles())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var buf bytes.Buffer
	if err := st.Export(runID, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("export is not valid json: %v", err)
	}
	if data.Run.ID != runID || data.Run.Frames != 3 {
		t.Errorf("unexpected run metadata: %+v", data.Run)
	}
	if len(data.Cycles) != 3 {
		t.Errorf("expected 3 cycles, got %d", len(data.Cycles))
	}

	if err := st.Export("missing", &buf); err == nil {
		t.Error("expected error exporting a missing run")
	}
}

func TestExportEmptyCycles(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, &RunMetadata{ID: "x"}, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"cycles": []`)) {
		t.Errorf("expected empty cycles array, got %s", buf.String())
	}
}
