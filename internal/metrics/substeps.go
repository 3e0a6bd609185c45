package metrics

import "github.com/san-kum/physloop/internal/sim"

// Substeps is the mean number of sub-steps per cycle.
type Substeps struct {
	name    string
	total   int
	samples int
}

func NewSubsteps() *Substeps {
	return &Substeps{name: "substeps_per_cycle"}
}

func (s *Substeps) Name() string { return s.name }

func (s *Substeps) Observe(r sim.CycleReport) {
	if r.Disabled {
		return
	}
	s.total += r.Substeps()
	s.samples++
}

func (s *Substeps) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.total) / float64(s.samples)
}

func (s *Substeps) Reset() {
	s.total = 0
	s.samples = 0
}

// Saturation is the fraction of cycles that hit the sub-step cap, i.e. the
// frame loop fell behind real time.
type Saturation struct {
	name      string
	cap       int
	saturated int
	samples   int
}

func NewSaturation(maxSubSteps int) *Saturation {
	return &Saturation{name: "saturation", cap: maxSubSteps}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(r sim.CycleReport) {
	if r.Disabled {
		return
	}
	if r.Substeps() >= s.cap {
		s.saturated++
	}
	s.samples++
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}
