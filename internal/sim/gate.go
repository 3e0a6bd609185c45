package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/physloop/internal/dynamo"
)

type ClearRequest int

const (
	ClearNone ClearRequest = iota
	ClearKeep
	ClearDispose
)

func (c ClearRequest) String() string {
	switch c {
	case ClearKeep:
		return "keep"
	case ClearDispose:
		return "dispose"
	default:
		return "none"
	}
}

// Gate serialises body lifecycle changes for one scene. Producers enqueue from
// any goroutine; the stepping goroutine applies the queues in drain, so the
// live set is only ever mutated between steps.
type Gate struct {
	mu sync.Mutex

	adds    []*dynamo.Body
	addSet  map[dynamo.BodyID]struct{}
	removes []*dynamo.Body
	remSet  map[dynamo.BodyID]struct{}
	clear   ClearRequest

	live  map[dynamo.BodyID]*dynamo.Body
	order []*dynamo.Body
}

func NewGate() *Gate {
	return &Gate{
		addSet: make(map[dynamo.BodyID]struct{}),
		remSet: make(map[dynamo.BodyID]struct{}),
		live:   make(map[dynamo.BodyID]*dynamo.Body),
	}
}

// Add queues b for insertion. Queuing the same body twice is a no-op.
func (g *Gate) Add(b *dynamo.Body) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.addSet[b.ID]; ok {
		return
	}
	g.addSet[b.ID] = struct{}{}
	g.adds = append(g.adds, b)
}

// Remove queues b for removal and cancels any pending add of it.
func (g *Gate) Remove(b *dynamo.Body) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.addSet[b.ID]; ok {
		delete(g.addSet, b.ID)
		for i, p := range g.adds {
			if p.ID == b.ID {
				g.adds = append(g.adds[:i], g.adds[i+1:]...)
				break
			}
		}
	}
	if _, ok := g.remSet[b.ID]; ok {
		return
	}
	g.remSet[b.ID] = struct{}{}
	g.removes = append(g.removes, b)
}

// RequestClear asks for the live set to be emptied on the next drain.
// A dispose request is never downgraded to keep.
func (g *Gate) RequestClear(req ClearRequest) {
	g.mu.Lock()
	if req > g.clear {
		g.clear = req
	}
	g.mu.Unlock()
}

func (g *Gate) Contains(id dynamo.BodyID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.live[id]
	return ok
}

func (g *Gate) Lookup(id dynamo.BodyID) (*dynamo.Body, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.live[id]
	return b, ok
}

func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// Pending reports queued additions, removals and the pending clear request.
func (g *Gate) Pending() (adds, removes int, clear ClearRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.adds), len(g.removes), g.clear
}

// Bodies returns the live set in insertion order.
func (g *Gate) Bodies() []*dynamo.Body {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*dynamo.Body, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Gate) snapshot(dst *[]*dynamo.Body) {
	g.mu.Lock()
	*dst = append((*dst)[:0], g.order...)
	g.mu.Unlock()
}

type drainStats struct {
	added   int
	removed int
	cleared ClearRequest
}

// drain applies removals, then a pending clear, then additions. Bodies whose
// insertion fails are dropped and reported in the returned error.
func (g *Gate) drain(s dynamo.Simulation, owner any) (drainStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var st drainStats

	for _, b := range g.removes {
		if _, ok := g.live[b.ID]; !ok {
			continue
		}
		s.Remove(b)
		b.Detach()
		delete(g.live, b.ID)
		st.removed++
	}
	if st.removed > 0 {
		kept := g.order[:0]
		for _, b := range g.order {
			if _, ok := g.live[b.ID]; ok {
				kept = append(kept, b)
			}
		}
		clear(g.order[len(kept):])
		g.order = kept
	}
	clear(g.removes)
	g.removes = g.removes[:0]
	clear(g.remSet)

	if g.clear != ClearNone {
		s.Clear(g.clear == ClearDispose)
		for _, b := range g.order {
			b.Detach()
		}
		st.removed += len(g.order)
		clear(g.live)
		clear(g.order)
		g.order = g.order[:0]
		st.cleared = g.clear
		g.clear = ClearNone
	}

	var errs []error
	for _, b := range g.adds {
		if _, ok := g.live[b.ID]; ok {
			continue
		}
		if err := s.Insert(b); err != nil {
			errs = append(errs, fmt.Errorf("insert body %d: %w", b.ID, err))
			continue
		}
		b.Attach(owner)
		g.live[b.ID] = b
		g.order = append(g.order, b)
		st.added++
	}
	clear(g.adds)
	g.adds = g.adds[:0]
	clear(g.addSet)

	return st, errors.Join(errs...)
}

// release detaches every live body and drops all queues.
func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.order {
		b.Detach()
	}
	clear(g.live)
	g.order = nil
	g.adds = nil
	g.removes = nil
	clear(g.addSet)
	clear(g.remSet)
	g.clear = ClearNone
}
