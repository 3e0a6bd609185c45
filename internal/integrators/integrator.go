package integrators

import "github.com/go-gl/mathgl/mgl64"

// State is the translational state of one body.
type State struct {
	Pos mgl64.Vec3
	Vel mgl64.Vec3
}

// Accel returns the acceleration of a body at the given position and velocity.
type Accel func(pos, vel mgl64.Vec3) mgl64.Vec3

type Integrator interface {
	Name() string
	Step(s State, accel Accel, dt float64) State
}

// Constant returns an Accel that ignores state, e.g. uniform gravity.
func Constant(a mgl64.Vec3) Accel {
	return func(mgl64.Vec3, mgl64.Vec3) mgl64.Vec3 { return a }
}

// Orientation advances q by angular velocity omega (world frame, rad/s) over dt.
func Orientation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	if omega.ApproxEqual(mgl64.Vec3{}) {
		return q
	}
	spin := mgl64.Quat{W: 0, V: omega}.Mul(q).Scale(0.5 * dt)
	return q.Add(spin).Normalize()
}
