package sim

import (
	"sync"
	"sync/atomic"

	"github.com/san-kum/physloop/internal/dynamo"
)

// Scene pairs a processor with the simulation it drives.
type Scene struct {
	id        int
	processor dynamo.Processor
	sim       dynamo.Simulation
	flags     dynamo.Flags
	gate      *Gate

	cbMu   sync.Mutex
	before []func()
	after  []func()

	outMu  sync.Mutex
	outbox []*dynamo.Body
	queued map[dynamo.BodyID]struct{}

	released atomic.Bool
}

func newScene(id int, p dynamo.Processor, s dynamo.Simulation, flags dynamo.Flags) *Scene {
	return &Scene{
		id:        id,
		processor: p,
		sim:       s,
		flags:     flags,
		gate:      NewGate(),
		queued:    make(map[dynamo.BodyID]struct{}),
	}
}

func (s *Scene) ID() int                     { return s.id }
func (s *Scene) Processor() dynamo.Processor { return s.processor }
func (s *Scene) Flags() dynamo.Flags         { return s.flags }
func (s *Scene) Released() bool              { return s.released.Load() }

// Simulation returns the backing world. Only the stepping goroutine may call
// its stepping methods.
func (s *Scene) Simulation() dynamo.Simulation { return s.sim }

// AddBody queues b for insertion at the start of the next cycle.
func (s *Scene) AddBody(b *dynamo.Body) error {
	if s.released.Load() {
		return dynamo.ErrReleased
	}
	s.gate.Add(b)
	return nil
}

// RemoveBody queues b for removal. Removing a body that is not live is a no-op.
func (s *Scene) RemoveBody(b *dynamo.Body) error {
	if s.released.Load() {
		return dynamo.ErrReleased
	}
	s.gate.Remove(b)
	return nil
}

// Clear empties the scene on the next cycle. Every live body is invalidated
// and must be re-added by its owner.
func (s *Scene) Clear(dispose bool) error {
	if s.released.Load() {
		return dynamo.ErrReleased
	}
	req := ClearKeep
	if dispose {
		req = ClearDispose
	}
	s.gate.RequestClear(req)
	return nil
}

func (s *Scene) Contains(id dynamo.BodyID) bool { return s.gate.Contains(id) }

func (s *Scene) Lookup(id dynamo.BodyID) (*dynamo.Body, bool) { return s.gate.Lookup(id) }

func (s *Scene) Bodies() []*dynamo.Body { return s.gate.Bodies() }

func (s *Scene) Len() int { return s.gate.Len() }

func (s *Scene) Pending() (adds, removes int, clear ClearRequest) { return s.gate.Pending() }

// BeforeStep defers fn to the start of the next cycle, ahead of removals.
func (s *Scene) BeforeStep(fn func()) error {
	if s.released.Load() {
		return dynamo.ErrReleased
	}
	s.cbMu.Lock()
	s.before = append(s.before, fn)
	s.cbMu.Unlock()
	return nil
}

// AfterStep defers fn to the end of the next cycle.
func (s *Scene) AfterStep(fn func()) error {
	if s.released.Load() {
		return dynamo.ErrReleased
	}
	s.cbMu.Lock()
	s.after = append(s.after, fn)
	s.cbMu.Unlock()
	return nil
}

func (s *Scene) runBefore() {
	s.cbMu.Lock()
	fns := s.before
	s.before = nil
	s.cbMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Scene) runAfter() {
	s.cbMu.Lock()
	fns := s.after
	s.after = nil
	s.cbMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Scene) queueTransforms(bodies []*dynamo.Body) {
	s.outMu.Lock()
	for _, b := range bodies {
		if _, ok := s.queued[b.ID]; ok {
			continue
		}
		s.queued[b.ID] = struct{}{}
		s.outbox = append(s.outbox, b)
	}
	s.outMu.Unlock()
}

// FlushTransforms hands queued bodies to the processor's TransformSink on the
// calling goroutine. Bodies removed since they were queued are skipped.
func (s *Scene) FlushTransforms() int {
	sink, ok := s.processor.(dynamo.TransformSink)
	if !ok {
		return 0
	}
	s.outMu.Lock()
	pending := s.outbox
	s.outbox = nil
	clear(s.queued)
	s.outMu.Unlock()

	n := 0
	for _, b := range pending {
		if b.Owner() != s {
			continue
		}
		sink.SyncTransform(b)
		n++
	}
	return n
}

func (s *Scene) dispose() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	s.sim.Clear(true)
	s.gate.release()
	s.outMu.Lock()
	s.outbox = nil
	clear(s.queued)
	s.outMu.Unlock()
	s.cbMu.Lock()
	s.before, s.after = nil, nil
	s.cbMu.Unlock()
	return s.sim.Close()
}
