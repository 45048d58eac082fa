package power

import (
	"portal-minigame-server/session"
)

// Power defines the interface that all puzzle-hub powers must implement.
type Power interface {
	ID() string
	Name() string
	Description() string
	Apply(c *session.Context)
}

// Registry holds all registered powers indexed by their ID.
type Registry struct {
	powers map[string]Power
	order  []string // registration order for deterministic AllPowers()
}

// NewRegistry creates a new empty power registry.
func NewRegistry() *Registry {
	return &Registry{
		powers: make(map[string]Power),
	}
}

// Register adds a power to the registry, replacing one with the same ID.
func (r *Registry) Register(p Power) {
	id := p.ID()
	if _, exists := r.powers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.powers[id] = p
}

// GetPower returns the power definition for the session package.
// It satisfies the session.PowerProvider interface.
func (r *Registry) GetPower(id string) (session.PowerDef, bool) {
	p, ok := r.powers[id]
	if !ok {
		return session.PowerDef{}, false
	}
	return def(p), true
}

// AllPowers returns every registered power in registration order.
// It satisfies the session.PowerProvider interface.
func (r *Registry) AllPowers() []session.PowerDef {
	defs := make([]session.PowerDef, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, def(r.powers[id]))
	}
	return defs
}

func def(p Power) session.PowerDef {
	return session.PowerDef{
		ID:          p.ID(),
		Name:        p.Name(),
		Description: p.Description(),
		Apply:       p.Apply,
	}
}

// RegisterAll registers the built-in powers.
func RegisterAll(r *Registry) {
	r.Register(&ResetPower{Amount: 1})
	r.Register(&LifePower{Amount: 1})
}
