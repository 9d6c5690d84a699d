package collision

import "sync"

// Registry tracks names already taken during one batch run so that repeated
// collisions within the run resolve to distinct names. It is safe for
// concurrent use by the per-item import tasks of a batch; it carries no
// state across runs.
type Registry struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{taken: make(map[string]struct{})}
}

// MarkTaken records names observed to be in use on the remote.
func (r *Registry) MarkTaken(names ...string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.taken[name] = struct{}{}
	}
}

// Has reports whether a name is known to be taken.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.taken[name]
	return ok
}

// Reserve resolves desired against every name the registry knows, records
// both the desired name and the resolution as taken, and returns the
// resolution. Concurrent reservations of the same desired name receive
// distinct results.
func (r *Registry) Reserve(desired string) string {
	if r == nil {
		return desired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	final := Resolve(desired, func(name string) bool {
		_, ok := r.taken[name]
		return ok
	})
	r.taken[desired] = struct{}{}
	r.taken[final] = struct{}{}
	return final
}
