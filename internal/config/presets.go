package config

import (
	"sort"
	"time"
)

var Presets = map[string]*Config{
	"lockstep": {
		Physics: Physics{FixedStep: 0.02, MaxSubSteps: 2},
		Run:     Run{Scenario: "drop", Scenes: 1, Bodies: 16, Frames: 300, FrameRate: 50},
	},
	"realtime": {
		Physics: Physics{FixedStep: 1.0 / 60.0, MaxSubSteps: 4},
		Run:     Run{Scenario: "stack", Scenes: 2, Bodies: 24, Frames: 600, FrameRate: 60, Jitter: 0.15, HitchEvery: 120, HitchScale: 8},
	},
	"async": {
		Physics: Physics{Multithreaded: true, FixedStep: 1.0 / 120.0, MaxSubSteps: 8, ParallelBodies: true, WaitTimeout: 50 * time.Millisecond},
		Run:     Run{Scenario: "rain", Scenes: 3, Bodies: 64, Frames: 600, FrameRate: 60, Jitter: 0.2, HitchEvery: 90, HitchScale: 10},
	},
	"exclusive": {
		Physics: Physics{Multithreaded: true, ExclusiveSceneUpdate: true, FixedStep: 1.0 / 60.0, MaxSubSteps: 4},
		Run:     Run{Scenario: "drop", Scenes: 2, Bodies: 32, Frames: 600, FrameRate: 60, Jitter: 0.1},
	},
	"mobile": {
		Physics: Physics{FixedStep: 1.0 / 30.0, MaxSubSteps: 2},
		Run:     Run{Scenario: "drop", Scenes: 1, Bodies: 12, Frames: 300, FrameRate: 30, Jitter: 0.3, HitchEvery: 45, HitchScale: 6},
	},
}

// GetPreset returns a normalized copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Normalize()
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
