// Package dynamo provides the core primitives shared by the physics scheduler
// and the simulation backends it drives.
//
// The package defines the contract between the scheduling core and its
// collaborators:
//
//   - [Body]: per-body state (motion snapshot, double-buffered contacts)
//   - [Simulation]: opaque stepping capability of one physics world
//   - [Processor]: scene-graph collaborator hooks run around each step
//   - [TransformSink]: optional receiver of post-step body transforms
//   - [Factory]: builds a [Simulation] for a newly created scene
//
// # Thread Safety
//
// A Body is written by exactly one stepping goroutine. Readers on any other
// goroutine must go through [Body.Motion] and [Body.Contacts], which return
// published snapshots and never block the stepping goroutine.
package dynamo
