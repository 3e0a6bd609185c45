// Package viz is the terminal live view of a running physics system.
//
// The [Model] is a Bubble Tea program that feeds its frame ticks to
// [sim.System.Update] as elapsed time, so the scheduler sees the same jittery
// frame clock a game loop would. The left pane is a braille [Canvas] showing
// the selected scene from the side; the right pane shows the worker state,
// the carried budget against its cap, and recent substep and latency history.
//
// # Key Bindings
//
//	Space     - Enable/disable stepping
//	A / D     - Spawn / despawn a body in the selected scene
//	C         - Clear and repopulate the selected scene
//	S         - Write the selected scene as an SVG snapshot
//	Tab       - Select the next scene
//	?         - Show help overlay
//	Q         - Quit
package viz
