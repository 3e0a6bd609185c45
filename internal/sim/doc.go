// Package sim schedules fixed-step physics over a set of scenes.
//
// A System accumulates elapsed frame time and turns it into sub-steps of at
// most the configured fixed step, bounded per cycle so a stalled frame never
// causes unbounded catch-up. Each cycle visits scenes in creation order and,
// for every scene, runs:
//
//	pre-step callbacks
//	removals, clear, additions        (Gate.drain)
//	bones, contact testing, sub-steps (skipped while disabled)
//	post-step body refresh, characters, contacts, events
//	post-step callbacks
//
// In synchronous mode Update runs the cycle on the caller's goroutine. In
// multithreaded mode a Worker goroutine is the only stepper; Update only adds
// time and signals it. Scene creation and release halt the worker first.
package sim
