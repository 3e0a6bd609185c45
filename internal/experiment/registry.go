package experiment

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/physloop/internal/dynamo"
	"github.com/san-kum/physloop/internal/integrators"
)

// Scenario describes how a scene is populated and churned during a run.
type Scenario struct {
	Name        string
	Description string
	Flags       dynamo.Flags
	// Spawn builds body i of n.
	Spawn func(rng *rand.Rand, id dynamo.BodyID, i, n int) *dynamo.Body
	// Every ChurnEvery frames the ChurnCount oldest bodies are replaced.
	ChurnEvery int
	ChurnCount int
}

type Registry struct {
	scenarios   map[string]Scenario
	integrators map[string]func() integrators.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		scenarios:   make(map[string]Scenario),
		integrators: make(map[string]func() integrators.Integrator),
	}

	r.scenarios["drop"] = Scenario{
		Name:        "drop",
		Description: "spheres dropped from random heights onto the ground",
		Flags:       dynamo.FlagGroundPlane | dynamo.FlagContactEvents,
		Spawn: func(rng *rand.Rand, id dynamo.BodyID, _, _ int) *dynamo.Body {
			pos := mgl64.Vec3{rng.Float64()*10 - 5, 2 + rng.Float64()*8, rng.Float64()*10 - 5}
			return ball(id, pos, mgl64.Vec3{}, 0.3+rng.Float64()*0.3, 0.4+rng.Float64()*0.4)
		},
	}
	r.scenarios["stack"] = Scenario{
		Name:        "stack",
		Description: "a column of spheres settling under gravity",
		Flags:       dynamo.FlagGroundPlane | dynamo.FlagContactEvents,
		Spawn: func(rng *rand.Rand, id dynamo.BodyID, i, _ int) *dynamo.Body {
			pos := mgl64.Vec3{(rng.Float64() - 0.5) * 0.05, 0.5 + float64(i)*1.01, 0}
			return ball(id, pos, mgl64.Vec3{}, 0.5, 0.1)
		},
	}
	r.scenarios["rain"] = Scenario{
		Name:        "rain",
		Description: "continuous spawn and despawn of falling spheres",
		Flags:       dynamo.FlagGroundPlane | dynamo.FlagContactEvents,
		Spawn: func(rng *rand.Rand, id dynamo.BodyID, _, _ int) *dynamo.Body {
			pos := mgl64.Vec3{rng.Float64()*20 - 10, 10 + rng.Float64()*5, rng.Float64()*20 - 10}
			vel := mgl64.Vec3{0, -2 - rng.Float64()*3, 0}
			return ball(id, pos, vel, 0.2+rng.Float64()*0.2, 0.6)
		},
		ChurnEvery: 10,
		ChurnCount: 4,
	}

	r.integrators["euler"] = func() integrators.Integrator { return integrators.NewEuler() }
	r.integrators["symplectic"] = func() integrators.Integrator { return integrators.NewSymplectic() }
	r.integrators["verlet"] = func() integrators.Integrator { return integrators.NewVerlet() }
	r.integrators["rk4"] = func() integrators.Integrator { return integrators.NewRK4() }

	return r
}

func ball(id dynamo.BodyID, pos, vel mgl64.Vec3, radius, bounce float64) *dynamo.Body {
	m := dynamo.RestMotion(pos)
	m.Linear = vel
	mass := 4.0 / 3.0 * 3.14159 * radius * radius * radius * 1000
	return dynamo.NewBody(id, dynamo.BodyDesc{Mass: mass, Radius: radius, Restitution: bounce, Motion: m})
}

func (r *Registry) GetScenario(name string) (Scenario, error) {
	s, ok := r.scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario: %s", name)
	}
	return s, nil
}

// IntegratorFactory returns the constructor for a named integrator; each
// world gets its own instance.
func (r *Registry) IntegratorFactory(name string) (func() integrators.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListScenarios() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
