package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps game-type tags to factories. It is populated explicitly
// during process startup; nothing registers at import time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under its metadata type tag. Registering the same
// tag twice is rejected.
func (r *Registry) Register(f Factory) error {
	meta := f.Meta()
	if meta.Type == "" {
		return fmt.Errorf("game factory has empty type tag")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[meta.Type]; exists {
		return fmt.Errorf("game type %q already registered", meta.Type)
	}
	r.factories[meta.Type] = f
	return nil
}

// Factory returns the factory for a tag.
func (r *Registry) Factory(tag string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[tag]
	return f, ok
}

// Games enumerates registered game metadata, sorted by type tag for stable
// listings.
func (r *Registry) Games() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]Meta, 0, len(r.factories))
	for _, f := range r.factories {
		metas = append(metas, f.Meta())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Type < metas[j].Type })
	return metas
}
