package integrators

// Euler is the explicit forward Euler method. It gains energy on oscillating
// systems and is kept as a baseline.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(s State, accel Accel, dt float64) State {
	a := accel(s.Pos, s.Vel)
	return State{
		Pos: s.Pos.Add(s.Vel.Mul(dt)),
		Vel: s.Vel.Add(a.Mul(dt)),
	}
}

// Symplectic is semi-implicit Euler: velocity first, then position with the
// new velocity.
type Symplectic struct{}

func NewSymplectic() *Symplectic {
	return &Symplectic{}
}

func (e *Symplectic) Name() string { return "symplectic" }

func (e *Symplectic) Step(s State, accel Accel, dt float64) State {
	vel := s.Vel.Add(accel(s.Pos, s.Vel).Mul(dt))
	return State{
		Pos: s.Pos.Add(vel.Mul(dt)),
		Vel: vel,
	}
}
