package sim

import (
	"math"
	"sync/atomic"

	"github.com/san-kum/physloop/internal/dynamo"
)

// Accumulator holds elapsed wall time not yet simulated. The producer adds
// time while the stepping goroutine consumes it; both sides use CAS loops so
// neither loses the other's update.
type Accumulator struct {
	bits  atomic.Uint32
	limit float32
}

func NewAccumulator(fixedStep float32, maxSubSteps int) *Accumulator {
	return &Accumulator{limit: fixedStep * float32(maxSubSteps)}
}

// Limit is the most time one cycle may consume.
func (a *Accumulator) Limit() float32 { return a.limit }

// Add credits dt seconds. The carried backlog is clamped to Limit before dt is
// added; the amount clamped away is returned.
func (a *Accumulator) Add(dt float32) (float32, error) {
	if dt < 0 || dt != dt {
		return 0, dynamo.ErrNegativeElapsed
	}
	if math.IsInf(float64(dt), 1) {
		dt = a.limit
	}
	for {
		old := a.bits.Load()
		carried := math.Float32frombits(old)
		var dropped float32
		if carried > a.limit {
			dropped = carried - a.limit
			carried = a.limit
		}
		next := carried + dt
		if a.bits.CompareAndSwap(old, math.Float32bits(next)) {
			return dropped, nil
		}
	}
}

func (a *Accumulator) Peek() float32 {
	return math.Float32frombits(a.bits.Load())
}

// Consume subtracts exactly amount, never going below zero.
func (a *Accumulator) Consume(amount float32) {
	if amount <= 0 {
		return
	}
	for {
		old := a.bits.Load()
		next := math.Float32frombits(old) - amount
		if next < 0 {
			next = 0
		}
		if a.bits.CompareAndSwap(old, math.Float32bits(next)) {
			return
		}
	}
}

// TakeAll zeroes the budget and returns what it held.
func (a *Accumulator) TakeAll() float32 {
	return math.Float32frombits(a.bits.Swap(0))
}
