package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/config"
	"github.com/san-kum/physloop/internal/dynamo"
)

// planEpsilon is the smallest budget worth a sub-step; anything below counts as consumed.
const planEpsilon = 1e-6

// Scheduler runs one cycle at a time over every registered scene. It is not
// safe for concurrent RunCycle calls; exactly one goroutine steps.
type Scheduler struct {
	registry *Registry
	cfg      config.Physics
	log      *logrus.Entry

	obsMu     sync.RWMutex
	observers []Observer

	pool   *bodyListPool
	cycles atomic.Uint64

	// deferTransforms queues post-step transforms in each scene's outbox
	// instead of calling the processor's sink on the stepping goroutine.
	deferTransforms bool
}

func NewScheduler(reg *Registry, cfg config.Physics) *Scheduler {
	cfg.Normalize()
	return &Scheduler{
		registry: reg,
		cfg:      cfg,
		log:      logrus.WithField("component", "scheduler"),
		pool:     newBodyListPool(),
	}
}

func (s *Scheduler) AddObserver(o Observer) {
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

func (s *Scheduler) Cycles() uint64 { return s.cycles.Load() }

// Plan splits total into sub-step durations, each at most the fixed step,
// capped at MaxSubSteps entries.
func (s *Scheduler) Plan(total float32) []float32 {
	var plan []float32
	for total > planEpsilon && len(plan) < s.cfg.MaxSubSteps {
		dt := s.cfg.FixedStep
		if total < dt {
			dt = total
		}
		plan = append(plan, dt)
		total -= dt
	}
	return plan
}

// RunCycle advances every scene by the plan for c.Elapsed. The returned
// report's Consumed is the exact amount the caller must take from its budget.
func (s *Scheduler) RunCycle(ctx context.Context, c Cycle) (CycleReport, error) {
	start := time.Now()
	plan := s.Plan(c.Elapsed)

	var consumed float32
	for _, dt := range plan {
		consumed += dt
	}
	if rest := c.Elapsed - consumed; rest > 0 && rest <= planEpsilon {
		consumed = c.Elapsed
	}

	rep := CycleReport{
		Cycle:    s.cycles.Add(1),
		Budget:   c.Elapsed,
		Consumed: consumed,
		Disabled: c.Disabled,
	}
	steps := plan
	if c.Disabled {
		steps = nil
	}
	rep.StepDts = steps

	var errs []error
	for _, sc := range s.registry.Scenes() {
		if sc.Released() {
			continue
		}
		rep.Scenes++
		if err := s.runScene(ctx, sc, steps, consumed, &rep); err != nil {
			s.log.WithFields(logrus.Fields{
				"scene": sc.id,
				"cycle": rep.Cycle,
			}).WithError(err).Warn("scene cycle aborted")
			errs = append(errs, err)
		}
	}

	rep.Duration = time.Since(start)
	rep.Err = errors.Join(errs...)

	s.obsMu.RLock()
	for _, o := range s.observers {
		o.OnCycle(rep)
	}
	s.obsMu.RUnlock()

	return rep, rep.Err
}

func (s *Scheduler) runScene(ctx context.Context, sc *Scene, steps []float32, dt float32, rep *CycleReport) error {
	fail := func(stage Stage, err error) error {
		return &StageError{Scene: sc.id, Stage: stage, Cycle: rep.Cycle, Err: err}
	}

	sc.runBefore()

	sc.processor.UpdateRemovals()
	st, err := sc.gate.drain(sc.sim, sc)
	rep.Added += st.added
	rep.Removed += st.removed
	if err != nil {
		return fail(StageAdditions, err)
	}

	if !rep.Disabled {
		if err := ctx.Err(); err != nil {
			return fail(StageStep, err)
		}

		sc.processor.UpdateBones()
		// an empty plan leaves the contact bracket closed, so the last
		// step's pairs stay touching
		if len(steps) > 0 {
			sc.sim.BeginContactTesting()
			for _, h := range steps {
				if err := sc.sim.Simulate(h); err != nil {
					sc.sim.EndContactTesting()
					return fail(StageStep, err)
				}
			}
			sc.sim.EndContactTesting()
		}

		bodies, contacts, err := s.postStep(sc, dt, len(steps) > 0)
		rep.Bodies += bodies
		rep.Contacts += contacts
		if err != nil {
			return fail(StagePostStep, err)
		}

		sc.processor.UpdateCharacters()
		sc.processor.UpdateContacts()
		sc.sim.SendEvents()
	} else {
		rep.Bodies += sc.gate.Len()
	}

	sc.runAfter()
	return nil
}

// postStep refreshes every live body. Contact buffers only flip when the
// cycle actually stepped, so an empty cycle keeps the last published contacts.
func (s *Scheduler) postStep(sc *Scene, dt float32, stepped bool) (int, int, error) {
	list := s.pool.Get()
	defer s.pool.Put(list)
	sc.gate.snapshot(list)
	bodies := *list

	sink, hasSink := sc.processor.(dynamo.TransformSink)
	inline := hasSink && !s.deferTransforms
	var contacts atomic.Int64

	work := func(b *dynamo.Body) {
		if stepped {
			b.SwapContacts()
		}
		if m, ok := sc.sim.Motion(b); ok {
			b.Publish(m)
		}
		contacts.Add(int64(len(b.Contacts())))
		if b.OnTick != nil {
			b.OnTick(b, dt)
		}
		if inline {
			sink.SyncTransform(b)
		}
	}

	if s.cfg.ParallelBodies {
		err := dynamo.ParallelFor(len(bodies), s.cfg.BodyChunk, s.cfg.BodyWorkers, func(lo, hi int) error {
			for _, b := range bodies[lo:hi] {
				work(b)
			}
			return nil
		})
		if err != nil {
			return len(bodies), int(contacts.Load()), err
		}
	} else {
		for _, b := range bodies {
			work(b)
		}
	}

	if hasSink && s.deferTransforms {
		sc.queueTransforms(bodies)
	}
	return len(bodies), int(contacts.Load()), nil
}
