// Package physics provides the reference rigid-body backend.
//
// [World] implements [dynamo.Simulation] for spheres under uniform gravity,
// optionally over a ground plane at y=0. Bodies are advanced by a pluggable
// [integrators.Integrator]; overlaps are resolved with positional correction
// and a restitution impulse along the contact normal.
//
// # Contact Testing
//
// Contacts are only recorded between BeginContactTesting and
// EndContactTesting. At the end of the bracket each touching pair is written
// to both bodies and compared with the previous bracket to produce begin and
// end [dynamo.ContactEvent] values, which SendEvents hands to listeners:
//
//	w := physics.New(dynamo.FlagGroundPlane|dynamo.FlagContactEvents, integrators.NewSymplectic())
//	w.OnContact(func(ev dynamo.ContactEvent) { ... })
package physics
