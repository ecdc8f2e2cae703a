// registry.go implements the model registry: logical entity name → entity
// type. Registration happens once during startup wiring; Resolve is the
// only lookup path the rest of the engine uses.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned when no entity type is registered under
	// the requested name.
	ErrModelNotFound = errors.New("model not found")
	// ErrStoreUnavailable is returned when a PerOwnerShard entity is
	// resolved while its backing store connection is not established.
	ErrStoreUnavailable = errors.New("shard store unavailable")
)

// Registry maps logical entity names to their registered types.
type Registry struct {
	types map[string]*EntityType
	order []string
	// shardProbe reports whether the per-owner shard store is reachable.
	// Resolution of PerOwnerShard types fails with ErrStoreUnavailable
	// (not ErrModelNotFound) while it returns false.
	shardProbe func() bool
}

// NewRegistry returns an empty registry. Shard resolution is unavailable
// until SetShardProbe is called.
func NewRegistry() *Registry {
	return &Registry{
		types:      make(map[string]*EntityType),
		shardProbe: func() bool { return false },
	}
}

// Register adds an entity type. Registering the same name twice is a
// wiring bug and returns an error.
func (r *Registry) Register(et *EntityType) error {
	if et.Name == "" {
		return fmt.Errorf("entity type with empty name")
	}
	if _, dup := r.types[et.Name]; dup {
		return fmt.Errorf("entity type %q already registered", et.Name)
	}
	if et.Strategy == Shared && et.Collection == "" {
		return fmt.Errorf("entity type %q: shared strategy requires a collection name", et.Name)
	}
	r.types[et.Name] = et
	r.order = append(r.order, et.Name)
	return nil
}

// SetShardProbe installs the connectivity probe for the per-owner shard store.
func (r *Registry) SetShardProbe(probe func() bool) {
	if probe != nil {
		r.shardProbe = probe
	}
}

// Resolve returns the entity type registered under name.
func (r *Registry) Resolve(name string) (*EntityType, error) {
	et, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	if et.Strategy == PerOwnerShard && !r.shardProbe() {
		return nil, fmt.Errorf("%w: entity %q", ErrStoreUnavailable, name)
	}
	return et, nil
}

// Types returns all registered entity types in registration order.
func (r *Registry) Types() []*EntityType {
	out := make([]*EntityType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}
