package integrators

// Verlet is velocity Verlet. The second acceleration sample uses the
// Euler-predicted velocity so velocity-dependent forces stay usable.
type Verlet struct{}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Name() string { return "verlet" }

func (v *Verlet) Step(s State, accel Accel, dt float64) State {
	a0 := accel(s.Pos, s.Vel)
	pos := s.Pos.Add(s.Vel.Mul(dt)).Add(a0.Mul(0.5 * dt * dt))
	a1 := accel(pos, s.Vel.Add(a0.Mul(dt)))
	return State{
		Pos: pos,
		Vel: s.Vel.Add(a0.Add(a1).Mul(0.5 * dt)),
	}
}
