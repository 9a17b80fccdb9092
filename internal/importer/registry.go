package importer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Simplici0/tradedesk/internal/apperr"
)

// Registry keeps the import wizards that are in flight.
type Registry struct {
	deps Deps

	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry returns an empty registry whose pipelines share deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, pipelines: make(map[string]*Pipeline)}
}

// Create starts a new pipeline.
func (r *Registry) Create() *Pipeline {
	p := NewPipeline(uuid.NewString(), r.deps)
	r.mu.Lock()
	r.pipelines[p.ID] = p
	r.mu.Unlock()
	return p
}

// Get returns the pipeline with id.
func (r *Registry) Get(id string) (*Pipeline, error) {
	r.mu.RLock()
	p, ok := r.pipelines[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("import", id)
	}
	return p, nil
}

// Remove drops a pipeline. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.pipelines, id)
	r.mu.Unlock()
}
