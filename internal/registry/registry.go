// Package registry implements the process-wide name→instance map used to
// intern CircuitBreaker and RateLimiter instances.
//
// Grounded on itsneelabh/gomind's ai.ProviderRegistry (a map[string]T behind
// a sync.RWMutex with register/lookup-by-name), generalized with Go
// generics and extended with default-on-miss construction per spec.md §6's
// `Registry<T>.get(name, configSupplier)`.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry is a concurrent name→instance map that constructs a default
// instance on first access for a name it hasn't seen. It is acceptable as a
// long-lived, process-wide singleton per spec.md §9.
type Registry[T any] struct {
	mu        sync.RWMutex
	instances map[string]T
	log       logrus.FieldLogger
}

// New creates an empty Registry. log may be nil, in which case
// logrus.StandardLogger() is used for default-construction diagnostics.
func New[T any](log logrus.FieldLogger) *Registry[T] {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry[T]{
		instances: make(map[string]T),
		log:       log,
	}
}

// Get returns the instance registered under name, creating and registering
// one via supplier if none exists yet. Concurrent Get calls for the same
// unseen name serialize on the write lock's double-checked recheck, so
// supplier runs at most once per name even under contention.
func (r *Registry[T]) Get(name string, supplier func() T) T {
	r.mu.RLock()
	if inst, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return inst
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[name]; ok {
		return inst
	}

	inst := supplier()
	r.instances[name] = inst
	r.log.WithField("name", name).Debug("registry: constructed default instance")
	return inst
}

// Find returns the instance registered under name and whether it exists,
// without constructing one.
func (r *Registry[T]) Find(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Remove deletes the instance registered under name, if any.
func (r *Registry[T]) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
}

// Names returns all currently registered names.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instances))
	for name := range r.instances {
		out = append(out, name)
	}
	return out
}
