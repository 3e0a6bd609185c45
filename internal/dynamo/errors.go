package dynamo

import "errors"

// Domain errors for scheduling operations.
var (
	// ErrNegativeElapsed indicates a negative or NaN elapsed time was reported.
	ErrNegativeElapsed = errors.New("dynamo: elapsed time must be non-negative")

	// ErrReleased indicates use of a scene whose simulation has been disposed.
	ErrReleased = errors.New("dynamo: simulation scene released")

	// ErrJoinTimeout indicates the worker goroutine did not exit within its grace period.
	ErrJoinTimeout = errors.New("dynamo: worker did not stop within join timeout")

	// ErrClosed indicates the physics system has been shut down.
	ErrClosed = errors.New("dynamo: physics system closed")

	// ErrUnknownScene indicates a processor with no registered scene.
	ErrUnknownScene = errors.New("dynamo: no scene registered for processor")

	// ErrDuplicateScene indicates a processor that already owns a scene.
	ErrDuplicateScene = errors.New("dynamo: processor already owns a scene")

	// ErrNilSimulation indicates a factory returned no simulation.
	ErrNilSimulation = errors.New("dynamo: factory returned nil simulation")
)
