package agents

import (
	"sync"

	"github.com/google/uuid"
)

// Maintainable is the subset of agent behavior the recovery probe needs.
type Maintainable interface {
	ID() string
	UserID() uuid.UUID
	State() State
	QuietPeriodMaintenance()
}

// Registry tracks live agent instances so background workers can reach them.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Maintainable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Maintainable)}
}

// Register adds an agent, replacing any previous instance with the same ID.
func (r *Registry) Register(a Maintainable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID()] = a
}

// Unregister removes an agent by ID.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// ForEach calls fn for every registered agent.
func (r *Registry) ForEach(fn func(Maintainable)) {
	r.mu.RLock()
	snapshot := make([]Maintainable, 0, len(r.agents))
	for _, a := range r.agents {
		snapshot = append(snapshot, a)
	}
	r.mu.RUnlock()

	for _, a := range snapshot {
		fn(a)
	}
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
