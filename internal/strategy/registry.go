// Package strategy maintains the catalog of loadable strategies: native Go
// strategies registered at build time and JavaScript modules loaded from
// disk.
package strategy

import (
	"sort"
	"strings"
	"sync"

	"github.com/cr0sh/grasshopper/internal/engine"
)

// Registry maps strategy names to entry functions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]engine.StrategyFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      sync.RWMutex{},
		entries: make(map[string]engine.StrategyFunc),
	}
}

// Register installs an entry function under a unique name. Later
// registrations replace earlier ones.
func (r *Registry) Register(name string, fn engine.StrategyFunc) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = fn
}

// Names lists registered strategies, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the entry function for a name.
func (r *Registry) Resolve(name string) (engine.StrategyFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]
	return fn, ok
}
