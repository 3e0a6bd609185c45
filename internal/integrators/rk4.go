package integrators

import "github.com/go-gl/mathgl/mgl64"

type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Step(s State, accel Accel, dt float64) State {
	half := 0.5 * dt

	k1x, k1v := s.Vel, accel(s.Pos, s.Vel)

	p2, v2 := s.Pos.Add(k1x.Mul(half)), s.Vel.Add(k1v.Mul(half))
	k2x, k2v := v2, accel(p2, v2)

	p3, v3 := s.Pos.Add(k2x.Mul(half)), s.Vel.Add(k2v.Mul(half))
	k3x, k3v := v3, accel(p3, v3)

	p4, v4 := s.Pos.Add(k3x.Mul(dt)), s.Vel.Add(k3v.Mul(dt))
	k4x, k4v := v4, accel(p4, v4)

	dt6 := dt / 6.0
	return State{
		Pos: s.Pos.Add(weighted(k1x, k2x, k3x, k4x).Mul(dt6)),
		Vel: s.Vel.Add(weighted(k1v, k2v, k3v, k4v).Mul(dt6)),
	}
}

func weighted(k1, k2, k3, k4 mgl64.Vec3) mgl64.Vec3 {
	return k1.Add(k2.Mul(2)).Add(k3.Mul(2)).Add(k4)
}
