package sim

import (
	"sync"

	"github.com/san-kum/physloop/internal/dynamo"
)

// Registry holds scenes in creation order, which is also stepping order.
// Processors must be comparable; pointer processors are the norm.
type Registry struct {
	mu     sync.RWMutex
	scenes []*Scene
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(s *Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.scenes {
		if existing.processor == s.processor {
			return dynamo.ErrDuplicateScene
		}
	}
	r.scenes = append(r.scenes, s)
	return nil
}

func (r *Registry) Remove(p dynamo.Processor) (*Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.scenes {
		if s.processor == p {
			r.scenes = append(r.scenes[:i], r.scenes[i+1:]...)
			return s, nil
		}
	}
	return nil, dynamo.ErrUnknownScene
}

func (r *Registry) Find(p dynamo.Processor) (*Scene, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.scenes {
		if s.processor == p {
			return s, true
		}
	}
	return nil, false
}

// Scenes returns a copy of the registry in stepping order.
func (r *Registry) Scenes() []*Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Scene, len(r.scenes))
	copy(out, r.scenes)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scenes)
}
