// This module keeps the named ordered maps a fig server owns. An ordmap.Map is single-owner and carries no
// internal synchronization, so the registry is the mutual-exclusion boundary around every instance: each
// named map is paired with one exclusive lock, and all access goes through LockedMap.Do. The name table
// itself is striped, with the stripe picked by hashing the map name, so goroutines creating or resolving
// unrelated maps don't contend on a single registry lock.

package port

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/fig/pkg/ordmap"
	"github.com/nobletooth/fig/pkg/utils"
)

// LockedMap pairs an ordered map with its exclusive-access lock.
type LockedMap struct {
	mux sync.Mutex
	m   *ordmap.Map[string, string]
}

// Do runs fn with exclusive access to the underlying map and returns fn's error. The map must not escape
// fn; holding onto it past the call would bypass the lock.
func (lm *LockedMap) Do(fn func(m *ordmap.Map[string, string]) error) error {
	lm.mux.Lock()
	defer lm.mux.Unlock()
	return fn(lm.m)
}

// registryStripe is one bucket of the name table with its own lock.
type registryStripe struct {
	mux  sync.RWMutex
	maps map[string]*LockedMap
}

// Registry resolves map names to LockedMap instances, creating them on first write.
type Registry struct {
	stripes []*registryStripe
}

// NewRegistry builds a registry with the given number of name-table stripes.
func NewRegistry(stripeCount int) *Registry {
	// Ensure there is at least one stripe.
	if stripeCount <= 0 {
		utils.RaiseInvariant("registry", "negative_stripe_count",
			"Invalid stripe count has been given to the registry.", "stripeCount", stripeCount)
		stripeCount = 1
	}
	registry := &Registry{stripes: make([]*registryStripe, stripeCount)}
	for i := range stripeCount {
		registry.stripes[i] = &registryStripe{maps: make(map[string]*LockedMap)}
	}
	return registry
}

// getStripe picks the name-table stripe a map name belongs to by hashing the name.
func (r *Registry) getStripe(name string) *registryStripe {
	return r.stripes[xxhash.Sum64String(name)%uint64(len(r.stripes))]
}

// Lookup resolves name without creating it. Read-only commands use this so that probing a map that was
// never written doesn't allocate it.
func (r *Registry) Lookup(name string) (*LockedMap, bool) {
	stripe := r.getStripe(name)
	stripe.mux.RLock()
	defer stripe.mux.RUnlock()
	lm, exists := stripe.maps[name]
	return lm, exists
}

// Get resolves name, creating an empty map on first use.
func (r *Registry) Get(name string) *LockedMap {
	stripe := r.getStripe(name)
	stripe.mux.Lock()
	defer stripe.mux.Unlock()
	if lm, exists := stripe.maps[name]; exists {
		return lm
	}
	lm := &LockedMap{m: ordmap.New[string, string]()}
	stripe.maps[name] = lm
	return lm
}

// Drop removes name from the registry and reports whether it existed.
func (r *Registry) Drop(name string) bool {
	stripe := r.getStripe(name)
	stripe.mux.Lock()
	defer stripe.mux.Unlock()
	if _, exists := stripe.maps[name]; !exists {
		return false
	}
	delete(stripe.maps, name)
	return true
}

// Names returns the registered map names in sorted order. This aggregates across every stripe, so it is
// the one registry operation that is not O(1).
func (r *Registry) Names() []string {
	names := make([]string, 0)
	for _, stripe := range r.stripes {
		stripe.mux.RLock()
		for name := range stripe.maps {
			names = append(names, name)
		}
		stripe.mux.RUnlock()
	}
	slices.Sort(names)
	return names
}
