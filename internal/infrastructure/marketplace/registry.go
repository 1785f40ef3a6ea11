package marketplace

import (
	"fmt"
	"sync"

	"github.com/meschain/sync/internal/domain/integration"
)

// Registry is a thread-safe registry of marketplace adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[integration.MarketplaceCode]integration.Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[integration.MarketplaceCode]integration.Adapter),
	}
}

// Register adds an adapter. Registering the same marketplace twice replaces
// the earlier adapter.
func (r *Registry) Register(adapter integration.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.MarketplaceCode()] = adapter
}

// Get returns the adapter for the specified marketplace
func (r *Registry) Get(code integration.MarketplaceCode) (integration.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrAdapterNotRegistered, code)
	}
	return adapter, nil
}

// List returns all registered adapters
func (r *Registry) List() []integration.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]integration.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	return adapters
}

// Ensure Registry implements the AdapterRegistry interface
var _ integration.AdapterRegistry = (*Registry)(nil)
