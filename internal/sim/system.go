package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/config"
	"github.com/san-kum/physloop/internal/dynamo"
)

// System is the physics system driven by a frame loop: it owns the scenes,
// the time budget and, in multithreaded mode, the worker goroutine.
type System struct {
	cfg      config.Physics
	factory  dynamo.Factory
	log      *logrus.Entry
	acc      *Accumulator
	registry *Registry
	sched    *Scheduler
	worker   *Worker

	// mu serialises registry mutation, Close and synchronous cycles.
	mu       sync.Mutex
	nextID   int
	closed   atomic.Bool
	disabled atomic.Bool

	dropMu  sync.Mutex
	dropped float64

	// fatal is the join timeout that left the worker down. It is sticky.
	fatalMu sync.Mutex
	fatal   error
}

type Option func(*System)

func WithObserver(o Observer) Option {
	return func(s *System) { s.sched.AddObserver(o) }
}

// New builds a system. In multithreaded mode the worker starts immediately
// and waits for the first Update.
func New(cfg config.Physics, factory dynamo.Factory, opts ...Option) (*System, error) {
	if factory == nil {
		return nil, errors.New("sim: nil simulation factory")
	}
	cfg.Normalize()

	reg := NewRegistry()
	s := &System{
		cfg:      cfg,
		factory:  factory,
		log:      logrus.WithField("component", "system"),
		acc:      NewAccumulator(cfg.FixedStep, cfg.MaxSubSteps),
		registry: reg,
		sched:    NewScheduler(reg, cfg),
	}
	s.disabled.Store(cfg.Disabled)
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Multithreaded {
		s.sched.deferTransforms = cfg.ExclusiveSceneUpdate
		s.worker = NewWorker(s.sched, s.acc, s.disabled.Load, cfg.WaitTimeout, cfg.JoinTimeout)
		if err := s.worker.Start(); err != nil {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"mode":          s.Mode(),
		"fixed_step":    cfg.FixedStep,
		"max_sub_steps": cfg.MaxSubSteps,
	}).Info("physics system ready")
	return s, nil
}

func (s *System) Config() config.Physics { return s.cfg }

func (s *System) Mode() string {
	switch {
	case s.worker == nil:
		return "sync"
	case s.cfg.ExclusiveSceneUpdate:
		return "async-exclusive"
	default:
		return "async"
	}
}

func (s *System) SetDisabled(v bool) { s.disabled.Store(v) }
func (s *System) Disabled() bool     { return s.disabled.Load() }

// Budget is the carried backlog plus the latest delta. The carry is capped
// when the next delta arrives, so at rest Budget may exceed the cap.
func (s *System) Budget() float32 { return s.acc.Peek() }

// Err returns the join timeout that stopped the worker, if any. Once set,
// Update and Close return it.
func (s *System) Err() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatal
}

func (s *System) fail(err error) {
	s.fatalMu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.fatalMu.Unlock()
	s.log.WithError(err).Error("physics worker is down")
}

// Dropped is the total backlog discarded by the accumulator cap.
func (s *System) Dropped() float64 {
	s.dropMu.Lock()
	defer s.dropMu.Unlock()
	return s.dropped
}

func (s *System) Cycles() uint64 { return s.sched.Cycles() }

func (s *System) WorkerState() WorkerState {
	if s.worker == nil {
		return WorkerStopped
	}
	return s.worker.State()
}

func (s *System) Scenes() []*Scene { return s.registry.Scenes() }

func (s *System) Scene(p dynamo.Processor) (*Scene, bool) { return s.registry.Find(p) }

// Create builds a simulation for p and registers its scene at the end of the
// stepping order.
func (s *System) Create(p dynamo.Processor, flags dynamo.Flags) (*Scene, error) {
	if p == nil {
		return nil, errors.New("sim: nil processor")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, dynamo.ErrClosed
	}
	if _, ok := s.registry.Find(p); ok {
		return nil, dynamo.ErrDuplicateScene
	}

	world, err := s.factory(flags)
	if err != nil {
		return nil, fmt.Errorf("create simulation: %w", err)
	}
	if world == nil {
		return nil, dynamo.ErrNilSimulation
	}

	s.nextID++
	scene := newScene(s.nextID, p, world, flags)

	err = s.halted(func() error {
		return s.registry.Add(scene)
	})
	if err != nil {
		world.Close()
		return nil, err
	}

	s.log.WithField("scene", scene.id).Debug("scene created")
	return scene, nil
}

// Release unregisters p's scene and disposes its simulation. In multithreaded
// mode it blocks until any in-flight cycle has finished.
func (s *System) Release(p dynamo.Processor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registry.Find(p); !ok {
		return dynamo.ErrUnknownScene
	}

	var scene *Scene
	err := s.halted(func() error {
		var err error
		scene, err = s.registry.Remove(p)
		return err
	})
	if err != nil {
		return err
	}

	s.log.WithField("scene", scene.id).Debug("scene released")
	if err := scene.dispose(); err != nil {
		return fmt.Errorf("dispose scene %d: %w", scene.id, err)
	}
	return nil
}

// halted runs fn with the worker stopped. A join timeout leaves the registry
// untouched and the worker down.
func (s *System) halted(fn func() error) error {
	if s.worker == nil {
		return fn()
	}
	if err := s.Err(); err != nil {
		return err
	}
	if err := s.worker.Stop(); err != nil {
		s.fail(err)
		return err
	}
	err := fn()
	if s.closed.Load() {
		return err
	}
	if serr := s.worker.Start(); serr != nil {
		s.fail(serr)
		return errors.Join(err, serr)
	}
	return err
}

// Update credits elapsed seconds of wall time. In sync mode it runs one cycle
// on the calling goroutine; in multithreaded mode it wakes the worker and
// returns errors from cycles that finished since the previous call.
func (s *System) Update(ctx context.Context, elapsed float32) error {
	if s.closed.Load() {
		return dynamo.ErrClosed
	}
	if err := s.Err(); err != nil {
		return err
	}

	dropped, err := s.acc.Add(elapsed)
	if err != nil {
		s.log.WithField("elapsed", elapsed).Warn("ignoring invalid elapsed time")
	}
	if dropped > 0 {
		s.dropMu.Lock()
		s.dropped += float64(dropped)
		s.dropMu.Unlock()
	}

	if s.worker != nil {
		s.worker.Signal()
		if s.cfg.ExclusiveSceneUpdate {
			for _, sc := range s.registry.Scenes() {
				sc.FlushTransforms()
			}
		}
		return s.worker.TakeErr()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return dynamo.ErrClosed
	}

	budget := s.acc.Peek()
	rep, cycleErr := s.sched.RunCycle(ctx, Cycle{Elapsed: budget, Disabled: s.disabled.Load()})
	s.acc.Consume(rep.Consumed)
	return cycleErr
}

// Close stops the worker, disposes every scene and discards the remaining
// budget. A join timeout is returned without disposing anything.
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.Err(); err != nil {
		return err
	}
	if s.worker != nil {
		if err := s.worker.Stop(); err != nil {
			s.fail(err)
			return err
		}
	}

	var errs []error
	for _, sc := range s.registry.Scenes() {
		if _, err := s.registry.Remove(sc.processor); err != nil {
			continue
		}
		if err := sc.dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose scene %d: %w", sc.id, err))
		}
	}

	left := s.acc.TakeAll()
	s.log.WithFields(logrus.Fields{
		"cycles":    s.sched.Cycles(),
		"discarded": math.Round(float64(left)*1e6) / 1e6,
	}).Info("physics system closed")
	return errors.Join(errs...)
}
