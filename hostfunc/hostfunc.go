package hostfunc

import (
	"context"
	"sort"
	"sync"
)

// Func is a host function callable from scripts. Arguments arrive as keyword
// arguments converted to Go values.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry groups host functions into modules that scripts load by name.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]map[string]Func)}
}

func (r *Registry) Register(module, name string, fn Func) {
	r.mu.Lock()
	m, ok := r.modules[module]
	if !ok {
		m = make(map[string]Func)
		r.modules[module] = m
	}
	m[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(module, name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.modules[module][name]
	r.mu.RUnlock()
	return fn, ok
}

// Module returns a copy of the functions registered under module.
func (r *Registry) Module(module string) (map[string]Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[module]
	if !ok {
		return nil, false
	}
	out := make(map[string]Func, len(m))
	for name, fn := range m {
		out[name] = fn
	}
	return out, true
}

// Modules lists registered module names in sorted order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent registry with the same functions, so a single
// execution can add its own modules without touching the shared one.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for module, m := range r.modules {
		cm := make(map[string]Func, len(m))
		for name, fn := range m {
			cm[name] = fn
		}
		c.modules[module] = cm
	}
	return c
}
