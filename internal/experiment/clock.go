package experiment

import (
	"math/rand"

	"github.com/san-kum/physloop/internal/config"
)

// FrameClock produces the elapsed time of successive frames: a nominal frame
// interval with seeded jitter and a periodic hitch that stalls one frame.
type FrameClock struct {
	interval   float64
	jitter     float64
	hitchEvery int
	hitchScale float64
	rng        *rand.Rand
	frame      int
}

func NewFrameClock(run config.Run, rng *rand.Rand) *FrameClock {
	rate := run.FrameRate
	if rate <= 0 {
		rate = config.DefaultFrameRate
	}
	scale := run.HitchScale
	if scale < 1 {
		scale = 1
	}
	return &FrameClock{
		interval:   1 / float64(rate),
		jitter:     run.Jitter,
		hitchEvery: run.HitchEvery,
		hitchScale: scale,
		rng:        rng,
	}
}

func (c *FrameClock) Interval() float64 { return c.interval }

func (c *FrameClock) Next() float32 {
	c.frame++
	dt := c.interval
	if c.jitter > 0 {
		dt *= 1 + c.jitter*(2*c.rng.Float64()-1)
	}
	if c.hitchEvery > 0 && c.frame%c.hitchEvery == 0 {
		dt *= c.hitchScale
	}
	return float32(dt)
}
