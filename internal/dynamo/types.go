package dynamo

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

type BodyID uint64

// GroundID is the Contact.Other value for contacts against static world geometry.
const GroundID BodyID = 0

// IDSource hands out unique body ids. The zero value is ready to use.
type IDSource struct {
	n atomic.Uint64
}

func (s *IDSource) Next() BodyID {
	return BodyID(s.n.Add(1))
}

// Motion is the pose and velocity of a body at the end of a step.
type Motion struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Linear      mgl64.Vec3
	Angular     mgl64.Vec3
}

// RestMotion returns an unrotated, motionless pose at pos.
func RestMotion(pos mgl64.Vec3) Motion {
	return Motion{Position: pos, Orientation: mgl64.QuatIdent()}
}

type Contact struct {
	Other  BodyID
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	Depth  float64
}

type ContactPhase int

const (
	ContactBegin ContactPhase = iota
	ContactEnd
)

func (p ContactPhase) String() string {
	if p == ContactBegin {
		return "begin"
	}
	return "end"
}

type ContactEvent struct {
	A, B  BodyID
	Phase ContactPhase
	Point mgl64.Vec3
}

// BodyDesc describes a rigid sphere for the simulation backend.
type BodyDesc struct {
	Mass        float64
	Radius      float64
	Restitution float64
	Static      bool
	Motion      Motion
}

// Simulation is the opaque stepping capability of one physics world.
// All methods except Close are called from the stepping goroutine only.
type Simulation interface {
	// Simulate advances the world by exactly dt seconds.
	Simulate(dt float32) error
	BeginContactTesting()
	EndContactTesting()
	// SendEvents dispatches contact notifications gathered during the step.
	SendEvents()

	Insert(b *Body) error
	// Remove is a no-op for bodies the world does not hold.
	Remove(b *Body)
	// Clear drops every body; dispose also releases pooled storage.
	Clear(dispose bool)
	Motion(b *Body) (Motion, bool)

	Close() error
}

// Processor is the scene-graph collaborator owning a scene.
type Processor interface {
	UpdateRemovals()
	UpdateBones()
	UpdateCharacters()
	UpdateContacts()
}

// TransformSink receives the refreshed motion of each live body after a step.
// Processors that implement it are called once per body per cycle.
type TransformSink interface {
	SyncTransform(b *Body)
}

// NopProcessor implements Processor with empty hooks, for embedding.
type NopProcessor struct{}

func (NopProcessor) UpdateRemovals()   {}
func (NopProcessor) UpdateBones()      {}
func (NopProcessor) UpdateCharacters() {}
func (NopProcessor) UpdateContacts()   {}

// Flags select optional simulation features at scene creation.
type Flags uint32

const (
	FlagContactEvents Flags = 1 << iota
	FlagGroundPlane
	FlagNoGravity
)

func (f Flags) Has(o Flags) bool { return f&o == o }

// Factory builds the simulation backing a new scene.
type Factory func(flags Flags) (Simulation, error)
