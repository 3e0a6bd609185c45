package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/physloop/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Scenario    string             `json:"scenario"`
	Mode        string             `json:"mode"`
	Integrator  string             `json:"integrator"`
	Preset      string             `json:"preset,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	FixedStep   float64            `json:"fixed_step"`
	MaxSubSteps int                `json:"max_sub_steps"`
	Scenes      int                `json:"scenes"`
	Bodies      int                `json:"bodies"`
	Frames      int                `json:"frames"`
	WallSeconds float64            `json:"wall_seconds"`
	Events      int64              `json:"contact_events"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Cycle is one row of cycles.csv.
type Cycle struct {
	Cycle     uint64  `json:"cycle"`
	Budget    float64 `json:"budget"`
	Consumed  float64 `json:"consumed"`
	Substeps  int     `json:"substeps"`
	Disabled  bool    `json:"disabled"`
	Bodies    int     `json:"bodies"`
	Contacts  int     `json:"contacts"`
	Added     int     `json:"added"`
	Removed   int     `json:"removed"`
	LatencyMs float64 `json:"latency_ms"`
	Err       string  `json:"error,omitempty"`
}

func FromReport(r sim.CycleReport) Cycle {
	c := Cycle{
		Cycle:     r.Cycle,
		Budget:    float64(r.Budget),
		Consumed:  float64(r.Consumed),
		Substeps:  r.Substeps(),
		Disabled:  r.Disabled,
		Bodies:    r.Bodies,
		Contacts:  r.Contacts,
		Added:     r.Added,
		Removed:   r.Removed,
		LatencyMs: float64(r.Duration.Microseconds()) / 1000,
	}
	if r.Err != nil {
		c.Err = r.Err.Error()
	}
	return c
}

func FromReports(rs []sim.CycleReport) []Cycle {
	out := make([]Cycle, len(rs))
	for i, r := range rs {
		out[i] = FromReport(r)
	}
	return out
}

var cycleHeader = []string{"cycle", "budget", "consumed", "substeps", "disabled", "bodies", "contacts", "added", "removed", "latency_ms", "error"}

// Save writes metadata.json and cycles.csv under a new run directory and
// returns the run id. meta.ID and meta.Timestamp are filled in.
func (s *Store) Save(meta RunMetadata, cycles []Cycle) (string, error) {
	now := time.Now()
	base := fmt.Sprintf("%s_%d", meta.Scenario, now.Unix())
	runID := base
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(s.baseDir, runID)); errors.Is(err, os.ErrNotExist) {
			break
		}
		runID = fmt.Sprintf("%s_%d", base, i)
	}
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "cycles.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(cycleHeader); err != nil {
		return "", err
	}
	for _, c := range cycles {
		row := []string{
			strconv.FormatUint(c.Cycle, 10),
			strconv.FormatFloat(c.Budget, 'f', 6, 64),
			strconv.FormatFloat(c.Consumed, 'f', 6, 64),
			strconv.Itoa(c.Substeps),
			strconv.FormatBool(c.Disabled),
			strconv.Itoa(c.Bodies),
			strconv.Itoa(c.Contacts),
			strconv.Itoa(c.Added),
			strconv.Itoa(c.Removed),
			strconv.FormatFloat(c.LatencyMs, 'f', 3, 64),
			c.Err,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadCycles(runID string) ([]Cycle, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "cycles.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Cycle{}, nil
	}

	cycles := make([]Cycle, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < len(cycleHeader)-1 {
			continue
		}
		var c Cycle
		var perr error
		parse := func(v string, fn func(string) error) {
			if perr == nil {
				perr = fn(v)
			}
		}
		parse(record[0], func(v string) (err error) { c.Cycle, err = strconv.ParseUint(v, 10, 64); return })
		parse(record[1], func(v string) (err error) { c.Budget, err = strconv.ParseFloat(v, 64); return })
		parse(record[2], func(v string) (err error) { c.Consumed, err = strconv.ParseFloat(v, 64); return })
		parse(record[3], func(v string) (err error) { c.Substeps, err = strconv.Atoi(v); return })
		parse(record[4], func(v string) (err error) { c.Disabled, err = strconv.ParseBool(v); return })
		parse(record[5], func(v string) (err error) { c.Bodies, err = strconv.Atoi(v); return })
		parse(record[6], func(v string) (err error) { c.Contacts, err = strconv.Atoi(v); return })
		parse(record[7], func(v string) (err error) { c.Added, err = strconv.Atoi(v); return })
		parse(record[8], func(v string) (err error) { c.Removed, err = strconv.Atoi(v); return })
		parse(record[9], func(v string) (err error) { c.LatencyMs, err = strconv.ParseFloat(v, 64); return })
		if perr != nil {
			continue
		}
		if len(record) > 10 {
			c.Err = record[10]
		}
		cycles = append(cycles, c)
	}
	return cycles, nil
}
