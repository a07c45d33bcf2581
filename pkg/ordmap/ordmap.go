// This module implements the ordered linked map, the core data structure of fig.
// A Map is a hash map layered under a circular doubly linked list: the hash index gives O(1) lookup by key,
// and the list gives a total traversal order over the keys that callers can inspect and rearrange.
// Unlike an insertion-ordered map, entries can be moved (or inserted) immediately before or after any other
// entry in O(1), which is what fig exists to provide.
//
// The list is anchored by a keyless sentinel node (the root) that is always present. The root's next points
// to the first real node and its prev to the last one; walking next from the root visits every entry exactly
// once and ends back at the root. Using a sentinel removes every head/tail special case from link surgery.
//
// A Map is single-owner: no method synchronizes, blocks or does IO. Embedders that share an instance across
// goroutines must wrap it behind their own lock (see pkg/port for an example of such a boundary).

package ordmap

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/nobletooth/fig/pkg/utils"
)

var (
	// ErrKeyNotFound is returned when an operation references a key (or anchor key) absent from the map.
	ErrKeyNotFound = errors.New("key not found")
	// ErrEmpty is returned by positional queries (First / Last) on a map with no entries.
	ErrEmpty = errors.New("map is empty")
	// ErrNoNeighbor is returned by Neighbor when the requested slot is the order boundary,
	// i.e. asking for the entry after the last key or before the first one. The root never leaks to callers.
	ErrNoNeighbor = errors.New("no neighbor in that direction")
)

// Direction selects which side of an anchor a positional operation targets.
type Direction int

const (
	// After places (or reads) the entry immediately following the anchor in traversal order.
	After Direction = iota
	// Before places (or reads) the entry immediately preceding the anchor in traversal order.
	Before
)

// String returns the lowercase name of the direction, mainly for logs and errors.
func (d Direction) String() string {
	switch d {
	case After:
		return "after"
	case Before:
		return "before"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection converts a textual direction ("after" / "before", any case) to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "after":
		return After, nil
	case "before":
		return Before, nil
	default:
		return After, fmt.Errorf("unknown direction %q", s)
	}
}

// node is a single entry in the map. Nodes never escape the API; callers only see keys and values.
// The zero key/value of the root node is never observable since the root is skipped on every read path.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// Map is an ordered linked map from K to V. The zero value is not usable; construct instances with New.
type Map[K comparable, V any] struct {
	index map[K]*node[K, V] // Key to owning node, for O(1) lookup and link access.
	root  *node[K, V]       // The permanent keyless sentinel closing the circular list.
}

// New returns an empty Map ready for use.
func New[K comparable, V any]() *Map[K, V] {
	root := new(node[K, V])
	root.prev = root
	root.next = root
	return &Map[K, V]{index: make(map[K]*node[K, V]), root: root}
}

// Len returns the number of entries in the map. The root is not counted.
func (m *Map[K, V]) Len() int {
	return len(m.index)
}

// Contains reports whether key has an entry in the map.
func (m *Map[K, V]) Contains(key K) bool {
	_, exists := m.index[key]
	return exists
}

// Get returns the value stored for key, or ErrKeyNotFound.
func (m *Map[K, V]) Get(key K) (V, error) {
	entry, exists := m.index[key]
	if !exists {
		return *new(V), fmt.Errorf("get %v: %w", key, ErrKeyNotFound)
	}
	return entry.value, nil
}

// Set stores value under key. An existing key is updated in place and keeps its position in the order;
// a new key is appended at the end of the order (immediately before the root).
func (m *Map[K, V]) Set(key K, value V) {
	if entry, exists := m.index[key]; exists {
		entry.value = value
		return
	}
	entry := &node[K, V]{key: key, value: value}
	m.spliceAfter(entry, m.root.prev)
	m.index[key] = entry
}

// Delete removes key from the map and relinks its neighbors. Returns ErrKeyNotFound if key is absent,
// leaving the map untouched.
func (m *Map[K, V]) Delete(key K) error {
	entry, exists := m.index[key]
	if !exists {
		return fmt.Errorf("delete %v: %w", key, ErrKeyNotFound)
	}
	m.unlink(entry)
	delete(m.index, key)
	// Drop the removed node's links so a leaked alias can't walk the live list.
	entry.prev = nil
	entry.next = nil
	return nil
}

// First returns the first key in traversal order, or ErrEmpty when the map has no entries.
func (m *Map[K, V]) First() (K, error) {
	if len(m.index) == 0 {
		return *new(K), fmt.Errorf("first: %w", ErrEmpty)
	}
	return m.root.next.key, nil
}

// Last returns the last key in traversal order, or ErrEmpty when the map has no entries.
func (m *Map[K, V]) Last() (K, error) {
	if len(m.index) == 0 {
		return *new(K), fmt.Errorf("last: %w", ErrEmpty)
	}
	return m.root.prev.key, nil
}

// Neighbor returns the entry immediately after (or before) key in traversal order.
// It returns ErrKeyNotFound when key is absent, and ErrNoNeighbor when key is the boundary entry on the
// requested side; the order never wraps around the root.
func (m *Map[K, V]) Neighbor(key K, dir Direction) (K, V, error) {
	entry, exists := m.index[key]
	if !exists {
		return *new(K), *new(V), fmt.Errorf("neighbor of %v: %w", key, ErrKeyNotFound)
	}
	side := entry.next
	if dir == Before {
		side = entry.prev
	}
	if side == m.root {
		return *new(K), *new(V), fmt.Errorf("neighbor %s %v: %w", dir, key, ErrNoNeighbor)
	}
	return side.key, side.value, nil
}

// Relocate moves the existing entry for key so it sits immediately after (or before) the entry for anchor.
// Both keys must be present, otherwise ErrKeyNotFound is returned and the order is unchanged.
// Relocating a key onto itself, or to a slot it already occupies, is a valid no-op.
func (m *Map[K, V]) Relocate(key K, anchor K, dir Direction) error {
	entry, exists := m.index[key]
	if !exists {
		return fmt.Errorf("relocate %v: %w", key, ErrKeyNotFound)
	}
	ref, exists := m.index[anchor]
	if !exists {
		return fmt.Errorf("relocate anchor %v: %w", anchor, ErrKeyNotFound)
	}
	if entry == ref {
		return nil
	}
	vacatedPrev := entry.prev // Neighbor left behind at the vacated slot, re-checked after the move.
	m.unlink(entry)
	// The splice-side neighbor is read only after the unlink. When the moved entry was already adjacent to
	// the anchor, a neighbor captured before the unlink would alias the entry itself and corrupt the list.
	if dir == Before {
		m.spliceAfter(entry, ref.prev)
	} else {
		m.spliceAfter(entry, ref)
	}
	m.checkLinks(entry.prev, entry, entry.next, vacatedPrev)
	return nil
}

// InsertAt stores value under key positioned immediately after (or before) the entry for anchor.
// The anchor must already be present, otherwise ErrKeyNotFound is returned and the map is unchanged.
// If key already exists only its value is updated; the entry is deliberately NOT moved. Positional insert
// targets fresh keys; repositioning an existing key is what Relocate is for.
func (m *Map[K, V]) InsertAt(key K, value V, anchor K, dir Direction) error {
	ref, exists := m.index[anchor]
	if !exists {
		return fmt.Errorf("insert anchor %v: %w", anchor, ErrKeyNotFound)
	}
	if entry, exists := m.index[key]; exists {
		entry.value = value
		return nil
	}
	entry := &node[K, V]{key: key, value: value}
	if dir == Before {
		m.spliceAfter(entry, ref.prev)
	} else {
		m.spliceAfter(entry, ref)
	}
	m.index[key] = entry
	m.checkLinks(entry.prev, entry, entry.next)
	return nil
}

// Keys returns all keys in traversal order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, len(m.index))
	for entry := m.root.next; entry != m.root; entry = entry.next {
		keys = append(keys, entry.key)
	}
	return keys
}

// Entries returns all entries in traversal order.
func (m *Map[K, V]) Entries() []utils.Pair[K, V] {
	entries := make([]utils.Pair[K, V], 0, len(m.index))
	for entry := m.root.next; entry != m.root; entry = entry.next {
		entries = append(entries, utils.Pair[K, V]{Key: entry.key, Value: entry.value})
	}
	return entries
}

// All iterates the entries in traversal order. The walk is live: it follows the links as they are at each
// step, so mutations made by the owning goroutine between yields are reflected. Mutating the map from a
// second goroutine while iterating is undefined behavior the caller must avoid.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for entry := m.root.next; entry != m.root; entry = entry.next {
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}

// Backward iterates the entries in reverse traversal order. Live, with the same caveats as All.
func (m *Map[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for entry := m.root.prev; entry != m.root; entry = entry.prev {
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}

// Dump renders one line per entry in traversal order, naming each entry's key and the keys of its immediate
// neighbors; the root is reported as the literal string "root". Meant for test assertions and debugging,
// not for parsing in production.
func (m *Map[K, V]) Dump() string {
	var sb strings.Builder
	for entry := m.root.next; entry != m.root; entry = entry.next {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "key:%v, prev:%s, next:%s", entry.key, m.describe(entry.prev), m.describe(entry.next))
	}
	return sb.String()
}

// describe formats a node's key for Dump, mapping the root to its distinguished marker.
func (m *Map[K, V]) describe(entry *node[K, V]) string {
	if entry == m.root {
		return "root"
	}
	return fmt.Sprint(entry.key)
}

// unlink removes entry from the list by connecting its neighbors to each other.
// The entry's own links are left dangling; every caller either relinks it via spliceAfter or discards it.
func (m *Map[K, V]) unlink(entry *node[K, V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

// spliceAfter links entry into the slot immediately following ref. Inserting before a node X is expressed
// as spliceAfter(entry, X.prev), so this is the single piece of link surgery in the package.
func (m *Map[K, V]) spliceAfter(entry, ref *node[K, V]) {
	entry.prev = ref
	entry.next = ref.next
	ref.next.prev = entry
	ref.next = entry
}

// checkLinks verifies the doubly linked invariant (n.next.prev == n and n.prev.next == n) for every node a
// move touched. Link surgery bugs corrupt the list silently and only surface as lost or duplicated entries
// much later, so moves self-verify on every call.
func (m *Map[K, V]) checkLinks(affected ...*node[K, V]) {
	for _, n := range affected {
		if n.next.prev != n || n.prev.next != n {
			utils.RaiseInvariant("ordmap", "broken_links",
				"Link surgery left an inconsistent node.", "key", m.describe(n))
			return
		}
	}
}
