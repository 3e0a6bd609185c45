package metrics

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/physloop/internal/sim"
)

func report(steps []float32, budget, consumed float32) sim.CycleReport {
	return sim.CycleReport{StepDts: steps, Budget: budget, Consumed: consumed}
}

func TestSubsteps(t *testing.T) {
	m := NewSubsteps()
	m.Observe(report([]float32{0.02, 0.02}, 0.04, 0.04))
	m.Observe(report(nil, 0, 0))
	m.Observe(sim.CycleReport{Disabled: true})

	if v := m.Value(); math.Abs(v-1) > 1e-9 {
		t.Errorf("expected 1 sub-step per cycle, got %f", v)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected 0 after reset, got %f", m.Value())
	}
}

func TestSaturation(t *testing.T) {
	m := NewSaturation(2)
	m.Observe(report([]float32{0.02, 0.02}, 0.07, 0.04))
	m.Observe(report([]float32{0.02}, 0.02, 0.02))
	m.Observe(report([]float32{0.02, 0.02}, 0.04, 0.04))
	m.Observe(report(nil, 0, 0))

	if v := m.Value(); math.Abs(v-0.5) > 1e-9 {
		t.Errorf("expected saturation 0.5, got %f", v)
	}
}

func TestSimulatedTime(t *testing.T) {
	m := NewSimulatedTime()
	m.Observe(report([]float32{0.02, 0.01}, 0.03, 0.03))
	m.Observe(report([]float32{0.02}, 0.02, 0.02))

	if v := m.Value(); math.Abs(v-0.05) > 1e-6 {
		t.Errorf("expected 0.05 s simulated, got %f", v)
	}
}

func TestDroppedTime(t *testing.T) {
	m := NewDroppedTime(0.04)
	m.Observe(report([]float32{0.02, 0.02}, 0.07, 0.04))
	if m.Value() != 0 {
		t.Errorf("carry within limit should not count, got %f", m.Value())
	}

	m.Observe(report([]float32{0.02, 0.02}, 1, 0.04))
	if v := m.Value(); math.Abs(v-0.92) > 1e-5 {
		t.Errorf("expected 0.92 s dropped, got %f", v)
	}
}

func TestCycleLatency(t *testing.T) {
	m := NewCycleLatency()
	m.Observe(sim.CycleReport{Duration: 2 * time.Millisecond})
	m.Observe(sim.CycleReport{Duration: 4 * time.Millisecond})

	if v := m.Value(); math.Abs(v-3) > 1e-9 {
		t.Errorf("expected mean 3 ms, got %f", v)
	}
	if m.Max() != 4 {
		t.Errorf("expected max 4 ms, got %f", m.Max())
	}
}

func TestContactLoad(t *testing.T) {
	m := NewContactLoad()
	m.Observe(sim.CycleReport{Contacts: 3})
	m.Observe(sim.CycleReport{Contacts: 1})
	if m.Value() != 2 {
		t.Errorf("expected 2 contacts per cycle, got %f", m.Value())
	}
}

func TestSetConcurrentReads(t *testing.T) {
	set := Standard(0.02, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			set.OnCycle(report([]float32{0.02}, 0.02, 0.02))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = set.Values()
		}
	}()
	wg.Wait()

	if set.Cycles() != 500 {
		t.Errorf("expected 500 cycles, got %d", set.Cycles())
	}
	v, ok := set.Value("simulated_time")
	if !ok || math.Abs(v-10) > 1e-3 {
		t.Errorf("expected 10 s simulated, got %f (found=%v)", v, ok)
	}
	if _, ok := set.Value("missing"); ok {
		t.Error("unknown metric reported as present")
	}

	want := []string{"contacts_per_cycle", "cycle_latency_ms", "dropped_time", "saturation", "simulated_time", "substeps_per_cycle"}
	names := set.Names()
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	set.Reset()
	if set.Cycles() != 0 || set.Values()["simulated_time"] != 0 {
		t.Error("reset did not clear metrics")
	}
}

func TestSetImplementsObserver(t *testing.T) {
	var _ sim.Observer = NewSet()
}
