package metrics

import (
	"sort"
	"sync"

	"github.com/san-kum/physloop/internal/sim"
)

// Metric folds cycle reports into one number. Implementations are not safe
// for concurrent use; wrap them in a Set.
type Metric interface {
	Name() string
	Observe(r sim.CycleReport)
	Value() float64
	Reset()
}

// Set fans cycle reports out to its metrics. It implements sim.Observer and
// may be read from any goroutine while the stepping goroutine writes.
type Set struct {
	mu      sync.Mutex
	metrics []Metric
	cycles  int
}

func NewSet(ms ...Metric) *Set {
	return &Set{metrics: ms}
}

// Standard returns the metrics reported for every run.
func Standard(fixedStep float32, maxSubSteps int) *Set {
	return NewSet(
		NewSubsteps(),
		NewSaturation(maxSubSteps),
		NewSimulatedTime(),
		NewCycleLatency(),
		NewDroppedTime(fixedStep*float32(maxSubSteps)),
		NewContactLoad(),
	)
}

func (s *Set) Add(m Metric) {
	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
}

func (s *Set) OnCycle(r sim.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	for _, m := range s.metrics {
		m.Observe(r)
	}
}

func (s *Set) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

func (s *Set) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Value(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		if m.Name() == name {
			return m.Value(), true
		}
	}
	return 0, false
}

func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.metrics))
	for _, m := range s.metrics {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = 0
	for _, m := range s.metrics {
		m.Reset()
	}
}
