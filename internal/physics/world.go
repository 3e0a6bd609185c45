package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/dynamo"
	"github.com/san-kum/physloop/internal/integrators"
)

const (
	StandardGravity = 9.81

	// restingSpeed is the rebound speed below which a ground contact stops the body.
	restingSpeed = 0.1
)

var (
	ErrInvalidBody   = errors.New("physics: invalid body description")
	ErrDuplicateBody = errors.New("physics: body already in world")
	ErrInvalidStep   = errors.New("physics: step must be positive and finite")
	ErrWorldClosed   = errors.New("physics: world closed")
)

type rigid struct {
	body    *dynamo.Body
	state   integrators.State
	orient  mgl64.Quat
	omega   mgl64.Vec3
	invMass float64
	radius  float64
	bounce  float64
	static  bool
}

func (r *rigid) motion() dynamo.Motion {
	return dynamo.Motion{
		Position:    r.state.Pos,
		Orientation: r.orient,
		Linear:      r.state.Vel,
		Angular:     r.omega,
	}
}

type World struct {
	gravity mgl64.Vec3
	ground  bool
	events  bool
	integ   integrators.Integrator
	log     *logrus.Entry

	bodies map[dynamo.BodyID]*rigid
	order  []*rigid

	testing  bool
	stepped  bool
	current  map[pairKey]touch
	touching map[pairKey]touch
	pending  []dynamo.ContactEvent
	listen   []func(dynamo.ContactEvent)

	time   float64
	steps  uint64
	closed bool
}

// New builds an empty world. FlagNoGravity, FlagGroundPlane and
// FlagContactEvents are honoured; a nil integrator selects semi-implicit Euler.
func New(flags dynamo.Flags, integ integrators.Integrator) *World {
	if integ == nil {
		integ = integrators.NewSymplectic()
	}
	w := &World{
		gravity:  mgl64.Vec3{0, -StandardGravity, 0},
		ground:   flags.Has(dynamo.FlagGroundPlane),
		events:   flags.Has(dynamo.FlagContactEvents),
		integ:    integ,
		log:      logrus.WithField("component", "world"),
		bodies:   make(map[dynamo.BodyID]*rigid),
		current:  make(map[pairKey]touch),
		touching: make(map[pairKey]touch),
	}
	if flags.Has(dynamo.FlagNoGravity) {
		w.gravity = mgl64.Vec3{}
	}
	return w
}

// Factory returns a dynamo.Factory building worlds with a fresh integrator
// and the given contact listeners.
func Factory(newIntegrator func() integrators.Integrator, listeners ...func(dynamo.ContactEvent)) dynamo.Factory {
	return func(flags dynamo.Flags) (dynamo.Simulation, error) {
		var integ integrators.Integrator
		if newIntegrator != nil {
			integ = newIntegrator()
		}
		w := New(flags, integ)
		for _, l := range listeners {
			w.OnContact(l)
		}
		return w, nil
	}
}

// OnContact registers a listener for contact events. Listeners run inside
// SendEvents on the stepping goroutine.
func (w *World) OnContact(fn func(dynamo.ContactEvent)) {
	w.listen = append(w.listen, fn)
}

func (w *World) SetGravity(g mgl64.Vec3) { w.gravity = g }

func (w *World) Integrator() integrators.Integrator { return w.integ }

func (w *World) Len() int { return len(w.order) }

// Time is the total simulated time.
func (w *World) Time() float64 { return w.time }

func (w *World) Steps() uint64 { return w.steps }

func (w *World) Insert(b *dynamo.Body) error {
	if w.closed {
		return ErrWorldClosed
	}
	if _, ok := w.bodies[b.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateBody, b.ID)
	}
	d := b.Desc
	if d.Radius <= 0 || (!d.Static && d.Mass <= 0) || math.IsNaN(d.Mass) {
		return fmt.Errorf("%w: body %d mass=%v radius=%v", ErrInvalidBody, b.ID, d.Mass, d.Radius)
	}

	m := b.Motion()
	r := &rigid{
		body:   b,
		state:  integrators.State{Pos: m.Position, Vel: m.Linear},
		orient: m.Orientation,
		omega:  m.Angular,
		radius: d.Radius,
		bounce: d.Restitution,
		static: d.Static,
	}
	if !d.Static {
		r.invMass = 1 / d.Mass
	} else {
		r.state.Vel = mgl64.Vec3{}
		r.omega = mgl64.Vec3{}
	}
	if r.orient.Len() == 0 {
		r.orient = mgl64.QuatIdent()
	}

	w.bodies[b.ID] = r
	w.order = append(w.order, r)
	b.SetHandle(r)
	return nil
}

func (w *World) Remove(b *dynamo.Body) {
	r, ok := w.bodies[b.ID]
	if !ok {
		return
	}
	delete(w.bodies, b.ID)
	for i, o := range w.order {
		if o == r {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for k := range w.touching {
		if k.a == b.ID || k.b == b.ID {
			delete(w.touching, k)
		}
	}
	for k := range w.current {
		if k.a == b.ID || k.b == b.ID {
			delete(w.current, k)
		}
	}
}

func (w *World) Clear(dispose bool) {
	if dispose {
		w.bodies = make(map[dynamo.BodyID]*rigid)
		w.order = nil
		w.current = make(map[pairKey]touch)
		w.touching = make(map[pairKey]touch)
		w.pending = nil
		return
	}
	clear(w.bodies)
	clear(w.order)
	w.order = w.order[:0]
	clear(w.current)
	clear(w.touching)
	w.pending = w.pending[:0]
}

// Motion reads the body's current state. It does not mutate the world and may
// be called from several goroutines between steps.
func (w *World) Motion(b *dynamo.Body) (dynamo.Motion, bool) {
	r, ok := w.bodies[b.ID]
	if !ok {
		return dynamo.Motion{}, false
	}
	return r.motion(), true
}

func (w *World) Simulate(dt float32) error {
	if w.closed {
		return ErrWorldClosed
	}
	h := float64(dt)
	if !(h > 0) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidStep, dt)
	}

	accel := integrators.Constant(w.gravity)
	for _, r := range w.order {
		if r.static {
			continue
		}
		r.state = w.integ.Step(r.state, accel, h)
		r.orient = integrators.Orientation(r.orient, r.omega, h)
	}

	w.collideGround()
	w.collidePairs()

	w.time += h
	w.steps++
	w.stepped = true
	return nil
}

// KineticEnergy sums translational kinetic energy over dynamic bodies.
func (w *World) KineticEnergy() float64 {
	ke := 0.0
	for _, r := range w.order {
		if r.static {
			continue
		}
		v := r.state.Vel
		ke += 0.5 * v.Dot(v) / r.invMass
	}
	return ke
}

// Momentum is the total linear momentum of dynamic bodies.
func (w *World) Momentum() mgl64.Vec3 {
	var p mgl64.Vec3
	for _, r := range w.order {
		if r.static {
			continue
		}
		p = p.Add(r.state.Vel.Mul(1 / r.invMass))
	}
	return p
}

func (w *World) Close() error {
	if w.closed {
		return nil
	}
	w.log.WithFields(logrus.Fields{
		"bodies": len(w.order),
		"steps":  w.steps,
	}).Debug("world closed")
	w.Clear(true)
	w.listen = nil
	w.closed = true
	return nil
}
