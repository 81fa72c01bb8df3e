package resilience

import "github.com/ridgeline-dev/resilience/internal/registry"

// Registry interns named instances of T, constructing a default one via
// the supplier passed to Get on first miss (C8). Typical use: one
// process-wide Registry[*CircuitBreaker] shared by every call site that
// wants "the breaker for this collaborator" without threading a
// reference through application layers.
type Registry[T any] struct {
	inner *registry.Registry[T]
}

// NewRegistry creates an empty Registry. log may be nil, in which case a
// standard logrus logger is used for default-construction diagnostics.
func NewRegistry[T any](log Logger) *Registry[T] {
	return &Registry[T]{inner: registry.New[T](log)}
}

// Get returns the instance registered under name, constructing and
// registering one via supplier if none exists yet. supplier runs at most
// once per name even under concurrent access.
func (r *Registry[T]) Get(name string, supplier func() T) T {
	return r.inner.Get(name, supplier)
}

// Find returns the instance registered under name and whether it exists,
// without constructing one.
func (r *Registry[T]) Find(name string) (T, bool) {
	return r.inner.Find(name)
}

// Remove deletes the instance registered under name, if any.
func (r *Registry[T]) Remove(name string) {
	r.inner.Remove(name)
}

// Names returns all currently registered names.
func (r *Registry[T]) Names() []string {
	return r.inner.Names()
}
