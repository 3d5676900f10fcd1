package doorbell

import (
	"slices"
	"strings"
	"sync"
)

// Registry holds the doorbells by name.
type Registry struct {
	mu        sync.RWMutex
	doorbells []*Doorbell
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers d.
func (r *Registry) Add(d *Doorbell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doorbells = append(r.doorbells, d)
}

// List returns the doorbells sorted by name.
func (r *Registry) List() []*Doorbell {
	r.mu.RLock()
	out := slices.Clone(r.doorbells)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Doorbell) int { return strings.Compare(a.name, b.name) })
	return out
}

// Dispatch triggers every doorbell called name and returns how many
// accepted the trigger and how many matched.
func (r *Registry) Dispatch(name string, source Source, kind Kind) (accepted, matched int) {
	r.mu.RLock()
	targets := make([]*Doorbell, 0, 1)
	for _, d := range r.doorbells {
		if d.name == name {
			targets = append(targets, d)
		}
	}
	r.mu.RUnlock()

	for _, d := range targets {
		if d.Trigger(source, kind, nil) {
			accepted++
		}
	}
	return accepted, len(targets)
}

// Close closes every doorbell.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.doorbells {
		d.Close()
	}
}
