package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"budgetsync/internal/domain"
	"budgetsync/internal/models"
)

// Registry maps entity kinds to their remote API handlers. Handlers are
// registered once at startup; dispatch is a lookup, not a type switch.
type Registry struct {
	mu       gosync.RWMutex
	handlers map[string]domain.Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]domain.Handler)}
}

// Register binds a handler to an entity kind. Registering the same entity
// twice is a wiring bug and fails loudly.
func (r *Registry) Register(entity string, h domain.Handler) error {
	if entity == "" {
		return fmt.Errorf("sync: entity name is required")
	}
	if h == nil {
		return fmt.Errorf("sync: handler for %q is nil", entity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[entity]; exists {
		return fmt.Errorf("sync: handler for %q already registered", entity)
	}
	r.handlers[entity] = h
	return nil
}

// Entities lists the registered entity kinds.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for entity := range r.handlers {
		out = append(out, entity)
	}
	return out
}

// Execute dispatches one action to its entity handler.
func (r *Registry) Execute(ctx context.Context, action *models.Action) error {
	r.mu.RLock()
	h, ok := r.handlers[action.Entity]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, action.Entity)
	}
	return h.Execute(ctx, action)
}
