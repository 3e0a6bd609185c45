package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/config"
	"github.com/san-kum/physloop/internal/dynamo"
	"github.com/san-kum/physloop/internal/metrics"
	"github.com/san-kum/physloop/internal/physics"
	"github.com/san-kum/physloop/internal/sim"
)

type Result struct {
	Scenario   string
	Integrator string
	Mode       string
	Frames     int
	Cycles     []sim.CycleReport
	Metrics    map[string]float64
	Events     int64
	Transforms int64
	Bodies     int
	// Checksum sums final body positions; equal seeds give equal sums in sync mode.
	Checksum float64
	Dropped  float64
	Wall     time.Duration
}

// sceneProcessor is the scene-graph side of one experiment scene.
type sceneProcessor struct {
	dynamo.NopProcessor
	index      int
	transforms atomic.Int64
}

func (p *sceneProcessor) SyncTransform(*dynamo.Body) {
	p.transforms.Add(1)
}

type sceneState struct {
	proc   *sceneProcessor
	scene  *sim.Scene
	bodies []*dynamo.Body
}

type recorder struct {
	mu      sync.Mutex
	reports []sim.CycleReport
}

func (r *recorder) OnCycle(rep sim.CycleReport) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

func (r *recorder) all() []sim.CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sim.CycleReport, len(r.reports))
	copy(out, r.reports)
	return out
}

func (r *recorder) tail(n int) []sim.CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.reports) {
		n = len(r.reports)
	}
	out := make([]sim.CycleReport, n)
	copy(out, r.reports[len(r.reports)-n:])
	return out
}

type Experiment struct {
	cfg      config.Config
	scenario Scenario
	registry *Registry
	rng      *rand.Rand
	ids      dynamo.IDSource
	metrics  *metrics.Set
	rec      *recorder
	events   atomic.Int64
	log      *logrus.Entry

	system *sim.System
	scenes []*sceneState
}

func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	c := *cfg
	c.Normalize()

	scenario, err := reg.GetScenario(c.Run.Scenario)
	if err != nil {
		return nil, err
	}
	return &Experiment{
		cfg:      c,
		scenario: scenario,
		registry: reg,
		rng:      rand.New(rand.NewSource(c.Run.Seed)),
		metrics:  metrics.Standard(c.Physics.FixedStep, c.Physics.MaxSubSteps),
		rec:      &recorder{},
		log:      logrus.WithField("component", "experiment"),
	}, nil
}

func (e *Experiment) Config() config.Config { return e.cfg }

func (e *Experiment) Metrics() *metrics.Set { return e.metrics }

// Setup builds the physics system and populates every scene.
func (e *Experiment) Setup() error {
	if e.system != nil {
		return errors.New("experiment already set up")
	}
	newInteg, err := e.registry.IntegratorFactory(e.cfg.Run.Integrator)
	if err != nil {
		return err
	}

	factory := physics.Factory(newInteg, func(dynamo.ContactEvent) { e.events.Add(1) })
	sys, err := sim.New(e.cfg.Physics, factory, sim.WithObserver(e.metrics), sim.WithObserver(e.rec))
	if err != nil {
		return err
	}
	e.system = sys

	for i := 0; i < e.cfg.Run.Scenes; i++ {
		proc := &sceneProcessor{index: i}
		sc, err := sys.Create(proc, e.scenario.Flags)
		if err != nil {
			return errors.Join(err, sys.Close())
		}
		st := &sceneState{proc: proc, scene: sc}
		for j := 0; j < e.cfg.Run.Bodies; j++ {
			if err := st.spawn(e, j); err != nil {
				return errors.Join(err, sys.Close())
			}
		}
		e.scenes = append(e.scenes, st)
	}
	return nil
}

func (st *sceneState) spawn(e *Experiment, i int) error {
	b := e.scenario.Spawn(e.rng, e.ids.Next(), i, e.cfg.Run.Bodies)
	if err := st.scene.AddBody(b); err != nil {
		return err
	}
	st.bodies = append(st.bodies, b)
	return nil
}

func (st *sceneState) churn(e *Experiment) error {
	n := e.scenario.ChurnCount
	if n > len(st.bodies) {
		n = len(st.bodies)
	}
	for _, b := range st.bodies[:n] {
		if err := st.scene.RemoveBody(b); err != nil {
			return err
		}
	}
	st.bodies = append(st.bodies[:0], st.bodies[n:]...)
	for i := 0; i < n; i++ {
		if err := st.spawn(e, i); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the frame loop to completion and shuts the system down.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.system == nil {
		if err := e.Setup(); err != nil {
			return nil, err
		}
	}
	sys := e.system
	clock := NewFrameClock(e.cfg.Run, e.rng)
	start := time.Now()

	e.log.WithFields(logrus.Fields{
		"scenario": e.scenario.Name,
		"mode":     sys.Mode(),
		"scenes":   len(e.scenes),
		"frames":   e.cfg.Run.Frames,
	}).Info("run started")

	var runErr error
	frame := 0
	for ; frame < e.cfg.Run.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if e.scenario.ChurnEvery > 0 && frame > 0 && frame%e.scenario.ChurnEvery == 0 {
			for _, st := range e.scenes {
				if err := st.churn(e); err != nil {
					runErr = err
					break
				}
			}
		}
		if runErr != nil {
			break
		}

		dt := clock.Next()
		frameStart := time.Now()
		done := e.metrics.Cycles()
		if err := sys.Update(ctx, dt); err != nil {
			runErr = fmt.Errorf("frame %d: %w", frame, err)
			break
		}
		if e.cfg.Physics.Multithreaded {
			e.awaitCycle(done)
		}
		if e.cfg.Run.Realtime {
			if rest := time.Duration(float64(dt)*float64(time.Second)) - time.Since(frameStart); rest > 0 {
				time.Sleep(rest)
			}
		}
	}

	if e.cfg.Physics.Multithreaded && runErr == nil {
		// surface errors from the final cycle
		runErr = sys.Update(ctx, 0)
	}

	res := &Result{
		Scenario:   e.scenario.Name,
		Integrator: e.cfg.Run.Integrator,
		Mode:       sys.Mode(),
		Frames:     frame,
		Dropped:    sys.Dropped(),
	}
	for _, st := range e.scenes {
		for _, b := range st.scene.Bodies() {
			p := b.Motion().Position
			res.Checksum += p.X() + p.Y() + p.Z()
			res.Bodies++
		}
	}

	closeErr := sys.Close()
	res.Wall = time.Since(start)
	res.Cycles = e.rec.all()
	res.Metrics = e.metrics.Values()
	res.Events = e.events.Load()
	for _, st := range e.scenes {
		res.Transforms += st.proc.transforms.Load()
	}

	e.log.WithFields(logrus.Fields{
		"cycles": len(res.Cycles),
		"wall":   res.Wall.Round(time.Millisecond),
	}).Info("run finished")

	return res, errors.Join(runErr, closeErr)
}

// awaitCycle waits for the worker to finish the cycle woken by the last
// update, so headless runs stay in lockstep with their frame clock.
func (e *Experiment) awaitCycle(done int) {
	deadline := time.Now().Add(e.cfg.Physics.JoinTimeout)
	for e.metrics.Cycles() <= done && time.Now().Before(deadline) {
		time.Sleep(50 * time.Microsecond)
	}
}

// System exposes the running system for live views.
func (e *Experiment) System() *sim.System { return e.system }

// Recent returns up to n of the latest cycle reports, oldest first.
func (e *Experiment) Recent(n int) []sim.CycleReport { return e.rec.tail(n) }

// Events returns the number of contact events delivered so far.
func (e *Experiment) Events() int64 { return e.events.Load() }

// Scenes returns the scenes created by Setup in stepping order.
func (e *Experiment) Scenes() []*sim.Scene {
	out := make([]*sim.Scene, len(e.scenes))
	for i, st := range e.scenes {
		out[i] = st.scene
	}
	return out
}

// Spawn adds one scenario body to scene i.
func (e *Experiment) Spawn(i int) error {
	if i < 0 || i >= len(e.scenes) {
		return fmt.Errorf("no scene %d", i)
	}
	st := e.scenes[i]
	return st.spawn(e, len(st.bodies))
}

// Despawn removes the oldest body of scene i.
func (e *Experiment) Despawn(i int) error {
	if i < 0 || i >= len(e.scenes) {
		return fmt.Errorf("no scene %d", i)
	}
	st := e.scenes[i]
	if len(st.bodies) == 0 {
		return nil
	}
	b := st.bodies[0]
	st.bodies = st.bodies[1:]
	return st.scene.RemoveBody(b)
}

// Reset clears scene i and repopulates it.
func (e *Experiment) Reset(i int) error {
	if i < 0 || i >= len(e.scenes) {
		return fmt.Errorf("no scene %d", i)
	}
	st := e.scenes[i]
	if err := st.scene.Clear(false); err != nil {
		return err
	}
	st.bodies = nil
	for j := 0; j < e.cfg.Run.Bodies; j++ {
		if err := st.spawn(e, j); err != nil {
			return err
		}
	}
	return nil
}
