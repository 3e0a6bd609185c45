package physics

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/physloop/internal/dynamo"
)

// pairKey orders ids so each touching pair has one key; ground is GroundID.
type pairKey struct {
	a, b dynamo.BodyID
}

func makePair(x, y dynamo.BodyID) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// touch is the latest contact seen for a pair; normal points from a to b.
type touch struct {
	point  mgl64.Vec3
	normal mgl64.Vec3
	depth  float64
}

func (w *World) BeginContactTesting() {
	w.testing = true
	w.stepped = false
	clear(w.current)
}

// EndContactTesting publishes the pairs seen since BeginContactTesting to
// their bodies and queues begin/end events against the previous bracket.
// A bracket with no Simulate in between leaves the touching set as it was.
func (w *World) EndContactTesting() {
	if !w.testing {
		return
	}
	w.testing = false
	if !w.stepped {
		clear(w.current)
		return
	}

	keys := make([]pairKey, 0, len(w.current))
	for k := range w.current {
		keys = append(keys, k)
	}
	sortPairs(keys)

	for _, k := range keys {
		t := w.current[k]
		if ra, ok := w.bodies[k.a]; ok {
			ra.body.RecordContact(dynamo.Contact{Other: k.b, Point: t.point, Normal: t.normal, Depth: t.depth})
		}
		if rb, ok := w.bodies[k.b]; ok {
			rb.body.RecordContact(dynamo.Contact{Other: k.a, Point: t.point, Normal: t.normal.Mul(-1), Depth: t.depth})
		}
		if _, ok := w.touching[k]; !ok && w.events {
			w.pending = append(w.pending, dynamo.ContactEvent{A: k.a, B: k.b, Phase: dynamo.ContactBegin, Point: t.point})
		}
	}

	if w.events {
		ended := make([]pairKey, 0)
		for k := range w.touching {
			if _, ok := w.current[k]; !ok {
				ended = append(ended, k)
			}
		}
		sortPairs(ended)
		for _, k := range ended {
			w.pending = append(w.pending, dynamo.ContactEvent{A: k.a, B: k.b, Phase: dynamo.ContactEnd, Point: w.touching[k].point})
		}
	}

	w.touching, w.current = w.current, w.touching
	clear(w.current)
}

// SendEvents delivers queued contact events in the order they were produced.
func (w *World) SendEvents() {
	if len(w.pending) == 0 {
		return
	}
	events := w.pending
	w.pending = nil
	for _, ev := range events {
		for _, fn := range w.listen {
			fn(ev)
		}
	}
}

func (w *World) note(k pairKey, t touch) {
	if w.testing {
		w.current[k] = t
	}
}

func (w *World) collideGround() {
	if !w.ground {
		return
	}
	up := mgl64.Vec3{0, 1, 0}
	for _, r := range w.order {
		if r.static {
			continue
		}
		depth := r.radius - r.state.Pos.Y()
		if depth <= 0 {
			continue
		}
		r.state.Pos[1] = r.radius
		if vy := r.state.Vel.Y(); vy < 0 {
			rebound := -vy * r.bounce
			if rebound < restingSpeed {
				rebound = 0
			}
			r.state.Vel[1] = rebound
		}
		point := mgl64.Vec3{r.state.Pos.X(), 0, r.state.Pos.Z()}
		// normal from ground to body
		w.note(makePair(dynamo.GroundID, r.body.ID), touch{point: point, normal: up, depth: depth})
	}
}

func (w *World) collidePairs() {
	n := len(w.order)
	for i := 0; i < n; i++ {
		a := w.order[i]
		for j := i + 1; j < n; j++ {
			b := w.order[j]
			if a.static && b.static {
				continue
			}
			w.resolve(a, b)
		}
	}
}

func (w *World) resolve(a, b *rigid) {
	d := b.state.Pos.Sub(a.state.Pos)
	reach := a.radius + b.radius
	dist2 := d.Dot(d)
	if dist2 >= reach*reach {
		return
	}

	dist := math.Sqrt(dist2)
	normal := mgl64.Vec3{0, 1, 0}
	if dist > 1e-12 {
		normal = d.Mul(1 / dist)
	}
	depth := reach - dist
	invSum := a.invMass + b.invMass

	a.state.Pos = a.state.Pos.Sub(normal.Mul(depth * a.invMass / invSum))
	b.state.Pos = b.state.Pos.Add(normal.Mul(depth * b.invMass / invSum))

	vn := b.state.Vel.Sub(a.state.Vel).Dot(normal)
	if vn < 0 {
		e := math.Min(a.bounce, b.bounce)
		j := -(1 + e) * vn / invSum
		a.state.Vel = a.state.Vel.Sub(normal.Mul(j * a.invMass))
		b.state.Vel = b.state.Vel.Add(normal.Mul(j * b.invMass))
	}

	point := a.state.Pos.Add(normal.Mul(a.radius))
	k := makePair(a.body.ID, b.body.ID)
	if k.a != a.body.ID {
		normal = normal.Mul(-1)
	}
	w.note(k, touch{point: point, normal: normal, depth: depth})
}

func sortPairs(keys []pairKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})
}
