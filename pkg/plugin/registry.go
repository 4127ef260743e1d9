package plugin

import (
	"log/slog"
	"sync"
)

// Registry holds registered plugins keyed by id. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: map[string]Plugin{}}
}

// Register adds a plugin, replacing any previous registration with the
// same id.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	if _, exists := r.plugins[id]; !exists {
		r.order = append(r.order, id)
	}
	r.plugins[id] = p
	slog.Debug("Registered plugin", "plugin_id", id)
}

// Get returns the plugin with the given id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

// All returns every registered plugin in registration order.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

// IDs returns the registered plugin ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ApplyEnabled prunes the registry according to configuration. An empty map
// keeps every plugin; otherwise only plugins explicitly mapped to true
// survive.
func (r *Registry) ApplyEnabled(enabled map[string]bool) {
	if len(enabled) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, id := range r.order {
		if enabled[id] {
			kept = append(kept, id)
			continue
		}
		delete(r.plugins, id)
		slog.Info("Plugin disabled by configuration", "plugin_id", id)
	}
	r.order = kept
}

// defaultRegistry is populated by plugin packages at init time.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a plugin to the default registry.
func Register(p Plugin) {
	defaultRegistry.Register(p)
}
