// A View is a read-only, dynamically filtered proxy of a Map: reads pass through to the source and entries
// the predicate rejects behave as absent. The view holds no state of its own, so changes to the source are
// visible through it immediately.

package ordmap

import "iter"

// Filter decides whether an entry is visible through a View.
type Filter[K comparable, V any] func(key K, value V) bool

// View is a filtered read-only view over a Map. It shares the source's single-owner contract: reading a
// view while another goroutine mutates the source is undefined behavior.
type View[K comparable, V any] struct {
	source *Map[K, V]
	keep   Filter[K, V]
}

// NewView wraps source in a view filtered by keep. A nil keep admits every entry.
func NewView[K comparable, V any](source *Map[K, V], keep Filter[K, V]) *View[K, V] {
	if keep == nil {
		keep = func(K, V) bool { return true }
	}
	return &View[K, V]{source: source, keep: keep}
}

// Get returns the value stored for key. Keys the filter rejects report ErrKeyNotFound, exactly like keys
// absent from the source.
func (v *View[K, V]) Get(key K) (V, error) {
	value, err := v.source.Get(key)
	if err != nil {
		return value, err
	}
	if !v.keep(key, value) {
		return *new(V), ErrKeyNotFound
	}
	return value, nil
}

// Contains reports whether key is visible through the view.
func (v *View[K, V]) Contains(key K) bool {
	_, err := v.Get(key)
	return err == nil
}

// Len counts the visible entries. Unlike Map.Len this is O(n): the filter has to be consulted per entry.
func (v *View[K, V]) Len() int {
	count := 0
	for key, value := range v.source.All() {
		if v.keep(key, value) {
			count++
		}
	}
	return count
}

// Keys returns the visible keys in the source's traversal order.
func (v *View[K, V]) Keys() []K {
	var keys []K
	for key, value := range v.source.All() {
		if v.keep(key, value) {
			keys = append(keys, key)
		}
	}
	return keys
}

// All iterates the visible entries in the source's traversal order. Live, like Map.All.
func (v *View[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for key, value := range v.source.All() {
			if v.keep(key, value) && !yield(key, value) {
				return
			}
		}
	}
}

// Copy materializes the visible entries, in order, into a fresh independent Map.
func (v *View[K, V]) Copy() *Map[K, V] {
	snapshot := New[K, V]()
	for key, value := range v.source.All() {
		if v.keep(key, value) {
			snapshot.Set(key, value)
		}
	}
	return snapshot
}
