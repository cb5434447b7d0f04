package walletService

import (
	"context"
	"fmt"
	"sync"
)

type RegistryEntry struct {
	Name    string
	Service WalletService
}

// Registry is an ordered set of named wallet services.
type Registry struct {
	mu      sync.RWMutex
	entries []RegistryEntry
	index   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds svc under name. Names must be unique and non-empty.
func (r *Registry) Register(name string, svc WalletService) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if svc == nil {
		return fmt.Errorf("service %s cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, RegistryEntry{Name: name, Service: svc})
	return nil
}

func (r *Registry) Get(name string) (WalletService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.entries[i].Service, true
}

// Entries returns a copy of the registered services in registration order.
func (r *Registry) Entries() []RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RegistryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// InitializeAll initializes every service in registration order and stops at the first failure.
func (r *Registry) InitializeAll(ctx context.Context) error {
	for _, entry := range r.Entries() {
		if err := entry.Service.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", entry.Name, err)
		}
	}
	return nil
}
