package sim

import (
	"fmt"
	"time"
)

// Cycle is the input of one scheduling pass.
type Cycle struct {
	Elapsed  float32
	Disabled bool
}

// CycleReport summarises one pass over every registered scene.
type CycleReport struct {
	Cycle    uint64
	Budget   float32
	Consumed float32
	StepDts  []float32
	Disabled bool

	Scenes   int
	Bodies   int
	Contacts int
	Added    int
	Removed  int

	Duration time.Duration
	Err      error
}

func (r CycleReport) Substeps() int { return len(r.StepDts) }

// Carry is the budget left for the next cycle.
func (r CycleReport) Carry() float32 {
	if c := r.Budget - r.Consumed; c > 0 {
		return c
	}
	return 0
}

// Simulated is the world time advanced by the cycle.
func (r CycleReport) Simulated() float32 {
	var t float32
	for _, dt := range r.StepDts {
		t += dt
	}
	return t
}

// Observer receives a report after every cycle, on the stepping goroutine.
type Observer interface {
	OnCycle(r CycleReport)
}

type ObserverFunc func(r CycleReport)

func (f ObserverFunc) OnCycle(r CycleReport) { f(r) }

type Stage int

const (
	StagePreStep Stage = iota
	StageRemovals
	StageAdditions
	StageBones
	StageStep
	StagePostStep
	StageContacts
	StagePostCallbacks
)

var stageNames = [...]string{
	StagePreStep:       "pre-step",
	StageRemovals:      "removals",
	StageAdditions:     "additions",
	StageBones:         "bones",
	StageStep:          "step",
	StagePostStep:      "post-step",
	StageContacts:      "contacts",
	StagePostCallbacks: "post-callbacks",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError is a failure in one stage of one scene's cycle.
type StageError struct {
	Scene int
	Stage Stage
	Cycle uint64
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("scene %d: %s stage (cycle %d): %v", e.Scene, e.Stage, e.Cycle, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
