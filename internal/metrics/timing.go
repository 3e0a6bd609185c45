package metrics

import (
	"math"

	"github.com/san-kum/physloop/internal/sim"
)

// SimulatedTime is the world time advanced across all cycles.
type SimulatedTime struct {
	name  string
	total float64
}

func NewSimulatedTime() *SimulatedTime {
	return &SimulatedTime{name: "simulated_time"}
}

func (s *SimulatedTime) Name() string { return s.name }

func (s *SimulatedTime) Observe(r sim.CycleReport) {
	s.total += float64(r.Simulated())
}

func (s *SimulatedTime) Value() float64 { return s.total }

func (s *SimulatedTime) Reset() { s.total = 0 }

// DroppedTime estimates the backlog the accumulator will discard: any carry
// beyond one cycle's limit is clamped away on the next update.
type DroppedTime struct {
	name    string
	limit   float32
	dropped float64
}

func NewDroppedTime(limit float32) *DroppedTime {
	return &DroppedTime{name: "dropped_time", limit: limit}
}

func (d *DroppedTime) Name() string { return d.name }

func (d *DroppedTime) Observe(r sim.CycleReport) {
	if over := r.Carry() - d.limit; over > 0 {
		d.dropped += float64(over)
	}
}

func (d *DroppedTime) Value() float64 { return d.dropped }

func (d *DroppedTime) Reset() { d.dropped = 0 }

// CycleLatency is the mean wall-clock duration of a cycle in milliseconds.
type CycleLatency struct {
	name    string
	total   float64
	max     float64
	samples int
}

func NewCycleLatency() *CycleLatency {
	return &CycleLatency{name: "cycle_latency_ms"}
}

func (c *CycleLatency) Name() string { return c.name }

func (c *CycleLatency) Observe(r sim.CycleReport) {
	ms := float64(r.Duration.Microseconds()) / 1000
	c.total += ms
	c.max = math.Max(c.max, ms)
	c.samples++
}

func (c *CycleLatency) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.total / float64(c.samples)
}

func (c *CycleLatency) Max() float64 { return c.max }

func (c *CycleLatency) Reset() {
	c.total = 0
	c.max = 0
	c.samples = 0
}

// ContactLoad is the mean number of published contacts per cycle.
type ContactLoad struct {
	name    string
	total   int
	samples int
}

func NewContactLoad() *ContactLoad {
	return &ContactLoad{name: "contacts_per_cycle"}
}

func (c *ContactLoad) Name() string { return c.name }

func (c *ContactLoad) Observe(r sim.CycleReport) {
	c.total += r.Contacts
	c.samples++
}

func (c *ContactLoad) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.total) / float64(c.samples)
}

func (c *ContactLoad) Reset() {
	c.total = 0
	c.samples = 0
}
