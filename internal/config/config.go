package config

import (
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFixedStep   = float32(1.0 / 60.0)
	DefaultMaxSubSteps = 4
	DefaultJoinTimeout = 5 * time.Second
	DefaultWaitTimeout = 100 * time.Millisecond
	DefaultBodyChunk   = 64
	DefaultFrameRate   = 60
	DefaultFrames      = 600
	DefaultScenes      = 1
	DefaultBodies      = 32
	DefaultScenario    = "drop"
	DefaultIntegrator  = "symplectic"
	DefaultLogLevel    = "info"
)

type Config struct {
	Physics  Physics `yaml:"physics"`
	Run      Run     `yaml:"run"`
	LogLevel string  `yaml:"log_level"`
}

// Physics is the scheduling surface consumed by the physics system.
type Physics struct {
	Multithreaded        bool          `yaml:"multithreaded"`
	FixedStep            float32       `yaml:"fixed_step"`
	MaxSubSteps          int           `yaml:"max_sub_steps"`
	ExclusiveSceneUpdate bool          `yaml:"exclusive_scene_update"`
	Disabled             bool          `yaml:"disabled"`
	ParallelBodies       bool          `yaml:"parallel_bodies"`
	BodyWorkers          int           `yaml:"body_workers"`
	BodyChunk            int           `yaml:"body_chunk"`
	JoinTimeout          time.Duration `yaml:"join_timeout"`
	WaitTimeout          time.Duration `yaml:"wait_timeout"`
}

// Run configures headless experiment runs.
type Run struct {
	Scenario   string  `yaml:"scenario"`
	Integrator string  `yaml:"integrator"`
	Scenes     int     `yaml:"scenes"`
	Bodies     int     `yaml:"bodies"`
	Frames     int     `yaml:"frames"`
	FrameRate  int     `yaml:"frame_rate"`
	Jitter     float64 `yaml:"jitter"`
	HitchEvery int     `yaml:"hitch_every"`
	HitchScale float64 `yaml:"hitch_scale"`
	Seed       int64   `yaml:"seed"`
	// Realtime paces frames against the wall clock instead of running flat out.
	Realtime   bool    `yaml:"realtime"`
}

func DefaultPhysics() Physics {
	return Physics{
		FixedStep:   DefaultFixedStep,
		MaxSubSteps: DefaultMaxSubSteps,
		BodyChunk:   DefaultBodyChunk,
		JoinTimeout: DefaultJoinTimeout,
		WaitTimeout: DefaultWaitTimeout,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Physics: DefaultPhysics(),
		Run: Run{
			Scenario:   DefaultScenario,
			Integrator: DefaultIntegrator,
			Scenes:     DefaultScenes,
			Bodies:     DefaultBodies,
			Frames:     DefaultFrames,
			FrameRate:  DefaultFrameRate,
			Jitter:     0.1,
			HitchEvery: 120,
			HitchScale: 8,
		},
		LogLevel: DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Normalize replaces missing or invalid settings with the safe baseline.
// It returns the number of settings that were replaced.
func (c *Config) Normalize() int {
	n := c.Physics.Normalize()
	def := DefaultConfig()

	if c.Run.Scenario == "" {
		c.Run.Scenario = def.Run.Scenario
	}
	if c.Run.Integrator == "" {
		c.Run.Integrator = def.Run.Integrator
	}
	if c.Run.Scenes <= 0 {
		logrus.Warnf("config: run.scenes=%d invalid, using %d", c.Run.Scenes, def.Run.Scenes)
		c.Run.Scenes = def.Run.Scenes
		n++
	}
	if c.Run.Bodies < 0 {
		logrus.Warnf("config: run.bodies=%d invalid, using %d", c.Run.Bodies, def.Run.Bodies)
		c.Run.Bodies = def.Run.Bodies
		n++
	}
	if c.Run.Frames <= 0 {
		c.Run.Frames = def.Run.Frames
		n++
	}
	if c.Run.FrameRate <= 0 {
		c.Run.FrameRate = def.Run.FrameRate
		n++
	}
	if c.Run.Jitter < 0 || c.Run.Jitter >= 1 {
		logrus.Warnf("config: run.jitter=%.3f outside [0,1), disabling", c.Run.Jitter)
		c.Run.Jitter = 0
		n++
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	return n
}

func (p *Physics) Normalize() int {
	n := 0
	if p.FixedStep <= 0 || math.IsNaN(float64(p.FixedStep)) || math.IsInf(float64(p.FixedStep), 0) {
		logrus.Warnf("config: physics.fixed_step=%v invalid, using %v", p.FixedStep, DefaultFixedStep)
		p.FixedStep = DefaultFixedStep
		n++
	}
	if p.MaxSubSteps <= 0 {
		logrus.Warnf("config: physics.max_sub_steps=%d invalid, using %d", p.MaxSubSteps, DefaultMaxSubSteps)
		p.MaxSubSteps = DefaultMaxSubSteps
		n++
	}
	if p.JoinTimeout <= 0 {
		p.JoinTimeout = DefaultJoinTimeout
		n++
	}
	if p.WaitTimeout <= 0 {
		p.WaitTimeout = DefaultWaitTimeout
		n++
	}
	if p.BodyChunk <= 0 {
		p.BodyChunk = DefaultBodyChunk
		n++
	}
	if p.BodyWorkers < 0 {
		p.BodyWorkers = 0
		n++
	}
	return n
}

// MaxBacklog is the most simulated time a single cycle may consume.
func (p Physics) MaxBacklog() float32 {
	return p.FixedStep * float32(p.MaxSubSteps)
}
