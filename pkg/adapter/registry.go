package adapter

import (
	"sync"

	"github.com/meridiandb/hexad/pkg/types"
)

// Registry is the tag to Adapter lookup table. Dispatch is a plain map
// lookup, never reflection or duck-typing: an unrecognised adapter_type is
// a registry validation error, not a silent fallback.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty adapter Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds tag to impl. Intended to be called once per family at
// startup; a second call for the same tag overwrites the first.
func (r *Registry) Register(tag string, impl Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[tag] = impl
}

// Get returns the Adapter registered under tag.
func (r *Registry) Get(tag string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tag]
	return a, ok
}

// SupportedModalities implements registry.ModalityClipper: it resolves tag
// to a concrete Adapter and asks it which modalities it can serve for the
// given config/extensions, returning ok=false if tag is not registered at
// all.
func (r *Registry) SupportedModalities(tag string, config map[string]string, extensions []string) (types.ModalitySet, bool) {
	a, ok := r.Get(tag)
	if !ok {
		return nil, false
	}
	return a.SupportedModalities(config, extensions), true
}
