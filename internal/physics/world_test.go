package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/physloop/internal/dynamo"
	"github.com/san-kum/physloop/internal/integrators"
)

const dt = float32(1.0 / 60)

func sphere(id dynamo.BodyID, pos, vel mgl64.Vec3, bounce float64) *dynamo.Body {
	m := dynamo.RestMotion(pos)
	m.Linear = vel
	return dynamo.NewBody(id, dynamo.BodyDesc{Mass: 1, Radius: 0.5, Restitution: bounce, Motion: m})
}

func mustInsert(t *testing.T, w *World, bodies ...*dynamo.Body) {
	t.Helper()
	for _, b := range bodies {
		if err := w.Insert(b); err != nil {
			t.Fatalf("insert %d: %v", b.ID, err)
		}
	}
}

func step(t *testing.T, w *World, n int) {
	t.Helper()
	w.BeginContactTesting()
	for i := 0; i < n; i++ {
		if err := w.Simulate(dt); err != nil {
			t.Fatalf("simulate: %v", err)
		}
	}
	w.EndContactTesting()
}

func motion(t *testing.T, w *World, b *dynamo.Body) dynamo.Motion {
	t.Helper()
	m, ok := w.Motion(b)
	if !ok {
		t.Fatalf("body %d not in world", b.ID)
	}
	return m
}

func TestFreeFall(t *testing.T) {
	w := New(0, integrators.NewVerlet())
	b := sphere(1, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{}, 0)
	mustInsert(t, w, b)

	step(t, w, 60)

	m := motion(t, w, b)
	want := 10 - 0.5*StandardGravity
	if math.Abs(m.Position.Y()-want) > 1e-6 {
		t.Errorf("y = %.6f, want %.6f", m.Position.Y(), want)
	}
	if math.Abs(w.Time()-1) > 1e-6 {
		t.Errorf("time = %.6f, want 1", w.Time())
	}
	if w.Steps() != 60 {
		t.Errorf("steps = %d, want 60", w.Steps())
	}
}

func TestNoGravity(t *testing.T) {
	w := New(dynamo.FlagNoGravity, nil)
	b := sphere(1, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 0}, 0)
	mustInsert(t, w, b)

	step(t, w, 60)

	m := motion(t, w, b)
	if math.Abs(m.Position.Y()-1) > 1e-9 || math.Abs(m.Position.X()-1) > 1e-6 {
		t.Errorf("position = %v, want (1, 1, 0)", m.Position)
	}
}

func TestGroundRest(t *testing.T) {
	w := New(dynamo.FlagGroundPlane, nil)
	b := sphere(1, mgl64.Vec3{0, 2, 0}, mgl64.Vec3{}, 0.5)
	mustInsert(t, w, b)

	for i := 0; i < 240; i++ {
		step(t, w, 1)
		if y := motion(t, w, b).Position.Y(); y < 0.5-1e-9 {
			t.Fatalf("step %d: sphere sank to y=%.4f", i, y)
		}
	}

	m := motion(t, w, b)
	if m.Position.Y() > 0.51 {
		t.Errorf("sphere still bouncing at y=%.4f", m.Position.Y())
	}
	if w.KineticEnergy() > 0.1 {
		t.Errorf("kinetic energy %.4f, want near rest", w.KineticEnergy())
	}
}

func TestElasticCollisionSwapsVelocities(t *testing.T) {
	w := New(dynamo.FlagNoGravity, nil)
	a := sphere(1, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{2, 0, 0}, 1)
	b := sphere(2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-2, 0, 0}, 1)
	mustInsert(t, w, a, b)

	before := w.Momentum()
	step(t, w, 60)

	va := motion(t, w, a).Linear
	vb := motion(t, w, b).Linear
	if math.Abs(va.X()+2) > 1e-9 || math.Abs(vb.X()-2) > 1e-9 {
		t.Errorf("velocities after collision: a=%v b=%v", va, vb)
	}
	if !w.Momentum().ApproxEqualThreshold(before, 1e-9) {
		t.Errorf("momentum changed: %v -> %v", before, w.Momentum())
	}
}

func TestStaticBodyDoesNotMove(t *testing.T) {
	w := New(dynamo.FlagNoGravity, nil)
	wall := dynamo.NewBody(1, dynamo.BodyDesc{Radius: 1, Static: true, Restitution: 1, Motion: dynamo.RestMotion(mgl64.Vec3{})})
	ball := sphere(2, mgl64.Vec3{3, 0, 0}, mgl64.Vec3{-3, 0, 0}, 1)
	mustInsert(t, w, wall, ball)

	step(t, w, 60)

	if p := motion(t, w, wall).Position; p != (mgl64.Vec3{}) {
		t.Errorf("static body moved to %v", p)
	}
	if vx := motion(t, w, ball).Linear.X(); vx <= 0 {
		t.Errorf("ball did not rebound, vx = %.4f", vx)
	}
}

func TestContactsOnlyInsideBracket(t *testing.T) {
	w := New(dynamo.FlagGroundPlane, nil)
	b := sphere(1, mgl64.Vec3{0, 0.4, 0}, mgl64.Vec3{}, 0)
	mustInsert(t, w, b)

	if err := w.Simulate(dt); err != nil {
		t.Fatal(err)
	}
	w.EndContactTesting()
	b.SwapContacts()
	if n := len(b.Contacts()); n != 0 {
		t.Errorf("contacts recorded outside bracket: %d", n)
	}

	// resting on the ground, gravity keeps it in contact
	step(t, w, 1)
	b.SwapContacts()
	contacts := b.Contacts()
	if len(contacts) != 1 {
		t.Fatalf("contacts = %v, want one", contacts)
	}
	c := contacts[0]
	if c.Other != dynamo.GroundID {
		t.Errorf("contact other = %d, want ground", c.Other)
	}
	if c.Normal.Y() >= 0 {
		t.Errorf("normal %v should point from the body toward the ground", c.Normal)
	}
}

func TestContactEvents(t *testing.T) {
	var events []dynamo.ContactEvent
	build := Factory(func() integrators.Integrator { return integrators.NewSymplectic() },
		func(ev dynamo.ContactEvent) { events = append(events, ev) })
	s, err := build(dynamo.FlagGroundPlane | dynamo.FlagContactEvents)
	if err != nil {
		t.Fatal(err)
	}
	w := s.(*World)

	b := sphere(7, mgl64.Vec3{0, 0.4, 0}, mgl64.Vec3{0, 5, 0}, 0)
	mustInsert(t, w, b)

	step(t, w, 1)
	if len(events) != 0 {
		t.Fatalf("events delivered before SendEvents: %v", events)
	}
	w.SendEvents()
	if len(events) != 1 || events[0].Phase != dynamo.ContactBegin || events[0].A != dynamo.GroundID || events[0].B != 7 {
		t.Fatalf("first bracket events = %v, want one ground begin", events)
	}

	step(t, w, 1)
	w.SendEvents()
	if len(events) != 2 || events[1].Phase != dynamo.ContactEnd {
		t.Fatalf("second bracket events = %v, want an end event", events)
	}

	step(t, w, 1)
	w.SendEvents()
	if len(events) != 2 {
		t.Errorf("unexpected events with no contacts: %v", events[2:])
	}
}

func TestEmptyBracketKeepsTouching(t *testing.T) {
	var events []dynamo.ContactEvent
	w := New(dynamo.FlagGroundPlane|dynamo.FlagContactEvents, nil)
	w.OnContact(func(ev dynamo.ContactEvent) { events = append(events, ev) })
	mustInsert(t, w, sphere(3, mgl64.Vec3{0, 0.4, 0}, mgl64.Vec3{}, 0))

	step(t, w, 1)
	w.SendEvents()
	if len(events) != 1 || events[0].Phase != dynamo.ContactBegin {
		t.Fatalf("events = %v, want one begin", events)
	}

	w.BeginContactTesting()
	w.EndContactTesting()
	w.SendEvents()
	if len(events) != 1 {
		t.Fatalf("bracket without a step emitted %v", events[1:])
	}

	step(t, w, 1)
	w.SendEvents()
	if len(events) != 1 {
		t.Errorf("resting body flapped: %v", events[1:])
	}
}

func TestEventsDisabledWithoutFlag(t *testing.T) {
	w := New(dynamo.FlagGroundPlane, nil)
	calls := 0
	w.OnContact(func(dynamo.ContactEvent) { calls++ })
	mustInsert(t, w, sphere(1, mgl64.Vec3{0, 0.4, 0}, mgl64.Vec3{}, 0))

	step(t, w, 1)
	w.SendEvents()
	if calls != 0 {
		t.Errorf("listener called %d times without FlagContactEvents", calls)
	}
}

func TestInsertValidation(t *testing.T) {
	w := New(0, nil)
	tests := []struct {
		name string
		desc dynamo.BodyDesc
	}{
		{"zero radius", dynamo.BodyDesc{Mass: 1}},
		{"zero mass", dynamo.BodyDesc{Radius: 1}},
		{"nan mass", dynamo.BodyDesc{Mass: math.NaN(), Radius: 1}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Insert(dynamo.NewBody(dynamo.BodyID(i+1), tt.desc))
			if !errors.Is(err, ErrInvalidBody) {
				t.Errorf("err = %v, want ErrInvalidBody", err)
			}
		})
	}

	b := sphere(10, mgl64.Vec3{}, mgl64.Vec3{}, 0)
	mustInsert(t, w, b)
	if err := w.Insert(b); !errors.Is(err, ErrDuplicateBody) {
		t.Errorf("duplicate insert err = %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("len = %d, want 1", w.Len())
	}
}

func TestRemoveAndClear(t *testing.T) {
	w := New(0, nil)
	a := sphere(1, mgl64.Vec3{}, mgl64.Vec3{}, 0)
	b := sphere(2, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{}, 0)
	mustInsert(t, w, a, b)

	w.Remove(a)
	w.Remove(a)
	if _, ok := w.Motion(a); ok {
		t.Error("removed body still reports motion")
	}
	if w.Len() != 1 {
		t.Errorf("len = %d, want 1", w.Len())
	}

	w.Clear(false)
	if w.Len() != 0 {
		t.Errorf("len after clear = %d", w.Len())
	}
	mustInsert(t, w, a)
	w.Clear(true)
	if w.Len() != 0 {
		t.Errorf("len after dispose = %d", w.Len())
	}
}

func TestSimulateErrors(t *testing.T) {
	w := New(0, nil)
	for _, h := range []float32{0, -1, float32(math.NaN()), float32(math.Inf(1))} {
		if err := w.Simulate(h); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("Simulate(%v) err = %v", h, err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := w.Simulate(dt); !errors.Is(err, ErrWorldClosed) {
		t.Errorf("simulate after close err = %v", err)
	}
	if err := w.Insert(sphere(1, mgl64.Vec3{}, mgl64.Vec3{}, 0)); !errors.Is(err, ErrWorldClosed) {
		t.Errorf("insert after close err = %v", err)
	}
}

func TestAngularMotion(t *testing.T) {
	w := New(dynamo.FlagNoGravity, nil)
	m := dynamo.RestMotion(mgl64.Vec3{})
	m.Angular = mgl64.Vec3{0, math.Pi, 0}
	b := dynamo.NewBody(1, dynamo.BodyDesc{Mass: 1, Radius: 0.5, Motion: m})
	mustInsert(t, w, b)

	step(t, w, 30)

	q := motion(t, w, b).Orientation
	v := q.Rotate(mgl64.Vec3{1, 0, 0})
	if math.Abs(v.X()) > 0.05 {
		t.Errorf("quarter turn expected, rotated x = %.4f", v.X())
	}
}
