package triggerflow

import (
	"fmt"
	"sync"
)

// Registry holds the modules an engine evaluates, keyed by event name.
// Registration order is preserved: detection results and reports always
// list events in the order their modules were registered.
type Registry[T any] struct {
	mu            sync.RWMutex
	order         []string
	modules       map[string]Module[T]
	allowOverride bool
}

// NewRegistry returns an empty registry. With allowOverride, registering
// a duplicate name replaces the module in place; otherwise it fails.
func NewRegistry[T any](allowOverride bool) *Registry[T] {
	return &Registry[T]{
		modules:       make(map[string]Module[T]),
		allowOverride: allowOverride,
	}
}

// Register adds a module built from its parts.
func (r *Registry[T]) Register(name string, detect Detector[T], handle Handler[T]) error {
	return r.RegisterModule(Module[T]{Name: name, Detect: detect, Handle: handle})
}

// RegisterModule adds one module.
func (r *Registry[T]) RegisterModule(m Module[T]) error {
	if err := m.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		if !r.allowOverride {
			return fmt.Errorf("register %q: %w", m.Name, ErrDuplicateEvent)
		}
		r.modules[m.Name] = m
		return nil
	}
	r.order = append(r.order, m.Name)
	r.modules[m.Name] = m
	return nil
}

// RegisterAll adds every module, stopping at the first failure.
func (r *Registry[T]) RegisterAll(modules ...Module[T]) error {
	for _, m := range modules {
		if err := r.RegisterModule(m); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a module by event name. Reports whether it existed.
func (r *Registry[T]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; !exists {
		return false
	}
	delete(r.modules, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every module.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = r.order[:0]
	r.modules = make(map[string]Module[T])
}

// Get returns the module registered under name.
func (r *Registry[T]) Get(name string) (Module[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Names returns the registered event names in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered modules.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// snapshot returns the modules in registration order. The returned slice
// is private to the caller, so an invocation in flight is unaffected by
// concurrent registry mutation.
func (r *Registry[T]) snapshot() []Module[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module[T], 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}
