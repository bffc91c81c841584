package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudbill/backend/internal/domain/shared"
)

// CreatePayload describes a resource observed at billing start.
// Kind-specific fields not relevant to the kind stay zero.
type CreatePayload struct {
	ResourceID   string
	Name         string
	FlavorID     string
	VolumeTypeID string
	IPAddress    string
	SizeGB       int64
	StartDate    time.Time
}

// ComponentHandler knows how to open, finalize, and roll usage
// components of one resource kind.
//
// Create builds a component on an invoice; with fallbackPrice a
// missing price entry falls back to the handler's configured default
// rate instead of erroring. Roll clones an active component onto the
// successor invoice, re-resolving the rate and inheriting the
// predecessor's rate when the price entry has gone missing.
type ComponentHandler interface {
	Kind() ResourceKind
	Create(ctx context.Context, invoiceID uuid.UUID, p CreatePayload, fallbackPrice bool) (*UsageComponent, error)
	Close(c *UsageComponent, at time.Time) error
	Roll(ctx context.Context, c *UsageComponent, invoiceID uuid.UUID, at time.Time) (*UsageComponent, error)
}

// Registry is the static table of component handlers. Kinds enumerate
// in registration order, which also fixes the processing order of
// billing sweeps and teardown.
type Registry struct {
	handlers map[ResourceKind]ComponentHandler
	order    []ResourceKind
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ResourceKind]ComponentHandler)}
}

// Register adds a handler; duplicate kinds are a wiring bug
func (r *Registry) Register(h ComponentHandler) error {
	kind := h.Kind()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("handler for %s already registered: %w", kind, shared.ErrAlreadyExists)
	}
	r.handlers[kind] = h
	r.order = append(r.order, kind)
	return nil
}

// MustRegister is Register for static wiring at startup
func (r *Registry) MustRegister(h ComponentHandler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// HandlerFor returns the handler for a kind
func (r *Registry) HandlerFor(kind ResourceKind) (ComponentHandler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no handler for resource kind %s: %w", kind, shared.ErrNotFound)
	}
	return h, nil
}

// AllKinds returns the registered kinds in registration order
func (r *Registry) AllKinds() []ResourceKind {
	kinds := make([]ResourceKind, len(r.order))
	copy(kinds, r.order)
	return kinds
}
