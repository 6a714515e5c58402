// Package robinhash implements an adaptive, DoS-resistant hash map: Robin
// Hood linear probing over a triple-parallel-array raw table, with a hash
// builder that starts in a fast, non-cryptographic mode for integral and
// pointer keys and switches permanently to a keyed SipHash PRF if an
// insertion's probe displacement ever suggests an adversarial key
// sequence while the table is less than 20% full (at higher load it grows
// the table instead).
//
// Map is not safe for concurrent use. Wrap it in a sync.Mutex, or use a
// different data structure, if more than one goroutine needs access.
package robinhash

import (
	"fmt"
	"strings"

	"github.com/robinhash/robinhash/internal/hashstate"
	"github.com/robinhash/robinhash/internal/rawtable"
)

// initialCapacity is the capacity a map lazily allocates on its first
// insertion. A freshly constructed Map holds capacity 0 and no allocation.
const initialCapacity = 8

// AllocationError is returned when growing, reserving, or lazily
// allocating a Map would overflow the arithmetic the raw table uses to
// size its backing arrays. The map is left unchanged.
type AllocationError struct {
	Requested uintptr
	err       error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("robinhash: cannot allocate capacity %d: %v", e.Requested, e.err)
}

func (e *AllocationError) Unwrap() error { return e.err }

// HashFn is a caller-supplied hash function for NewWithHasher. It must be
// deterministic for a given key across the life of the map.
type HashFn[K comparable] func(key K) uint64

// hashSource is the common shape of both the adaptive Builder and a fixed
// external HashFn, so the map façade doesn't need to know which one it
// holds outside of the safeguard, which only the adaptive path runs.
type hashSource[K comparable] interface {
	Hash(key K) hashstate.SafeHash
}

type fixedHasher[K comparable] struct {
	fn HashFn[K]
}

func (f fixedHasher[K]) Hash(key K) hashstate.SafeHash {
	return hashstate.MakeSafeHash(f.fn(key))
}

// Map is a Robin Hood hash map from K to V with adaptive hashing as its
// DoS safeguard (see safeguard.go). The zero value is not usable; build
// one with New, NewOneShot, NewWithSecretSource, NewWithHasher, or
// WithCapacity.
type Map[K comparable, V any] struct {
	table       *rawtable.RawTable[K, V]
	builder     *hashstate.Builder[K] // nil for a fixed external hasher
	hasher      hashSource[K]
	adaptive    bool
	remediating bool
}

// New creates an empty map with capacity 0. K's hashing mode is chosen by
// reflecting on its kind: integral and pointer keys start Fast, everything
// else starts Safe.
func New[K comparable, V any]() *Map[K, V] {
	return newAdaptiveMap[K, V](hashstate.NewAdaptive[K](hashstate.DefaultSecretSource))
}

// NewOneShot is like New, but K is checked at compile time to be one-shot
// eligible (an integer kind), so the map always starts in Fast mode
// without a runtime reflect check.
func NewOneShot[K hashstate.OneShotKey, V any]() *Map[K, V] {
	return newAdaptiveMap[K, V](hashstate.NewAdaptiveOneShot[K](hashstate.DefaultSecretSource))
}

// NewWithSecretSource is like New, but draws the Safe hasher's key
// material from source instead of crypto/rand. Intended for tests that
// need deterministic (k0, k1) pairs.
func NewWithSecretSource[K comparable, V any](source hashstate.SecretSource) *Map[K, V] {
	return newAdaptiveMap[K, V](hashstate.NewAdaptive[K](source))
}

// NewWithHasher creates a map that always hashes keys with fn. It never
// runs the adaptive safeguard: fn is assumed to already be whatever
// (fast or DoS-resistant) hash the caller wants, matching spec's "policy
// parameter with a branch" stand-in for trait specialization on
// non-adaptive hash-builders.
func NewWithHasher[K comparable, V any](fn HashFn[K]) *Map[K, V] {
	t, _ := rawtable.Allocate[K, V](0)
	return &Map[K, V]{table: t, hasher: fixedHasher[K]{fn: fn}, adaptive: false}
}

func newAdaptiveMap[K comparable, V any](b *hashstate.Builder[K]) *Map[K, V] {
	t, _ := rawtable.Allocate[K, V](0)
	return &Map[K, V]{table: t, builder: b, hasher: b, adaptive: true}
}

// WithCapacity creates an adaptively-hashed map pre-sized to hold at least
// n elements without reallocating.
func WithCapacity[K comparable, V any](n uintptr) (*Map[K, V], error) {
	m := New[K, V]()
	if err := m.Reserve(n); err != nil {
		return nil, err
	}
	return m, nil
}

// requiredCapacity returns the smallest power-of-two capacity whose usable
// portion (8/9, i.e. ~0.889) holds at least needed elements.
func requiredCapacity(needed uintptr) uintptr {
	if needed == 0 {
		return 0
	}
	cap := rawtable.NextPowerOf2(uint64(needed))
	for cap*8 < uint64(needed)*9 {
		cap *= 2
	}
	if cap < initialCapacity {
		cap = initialCapacity
	}
	return uintptr(cap)
}

// Reserve grows the map, if necessary, so that n further insertions (len()+n
// entries in total) fit without reallocation.
func (m *Map[K, V]) Reserve(n uintptr) error {
	target := requiredCapacity(m.table.Size() + n)
	if target <= m.table.Capacity() {
		return nil
	}
	return m.rebuild(target)
}

// ensureRoomForOne lazily allocates the initial table, or doubles
// capacity, so that one more insertion stays within the 8/9 usable-load
// bound.
func (m *Map[K, V]) ensureRoomForOne() error {
	capacity := m.table.Capacity()
	if capacity == 0 {
		return m.rebuild(initialCapacity)
	}
	if (m.table.Size()+1)*9 > capacity*8 {
		return m.rebuild(capacity * 2)
	}
	return nil
}

// rebuildWith allocates a fresh table of newCapacity and reinserts every
// current entry, hashing each key fresh with hasher. It does not mutate m;
// the caller commits the result only once it has succeeded, so a failed
// rebuild (OOM) never leaves the map in a partially-switched state.
func (m *Map[K, V]) rebuildWith(hasher hashSource[K], newCapacity uintptr) (*rawtable.RawTable[K, V], error) {
	newTable, err := rawtable.Allocate[K, V](newCapacity)
	if err != nil {
		return nil, &AllocationError{Requested: newCapacity, err: err}
	}
	m.table.Iter(func(_ hashstate.SafeHash, key K, value V) bool {
		placeFresh(newTable, hasher.Hash(key), key, value)
		return true
	})
	return newTable, nil
}

func (m *Map[K, V]) rebuild(newCapacity uintptr) error {
	newTable, err := m.rebuildWith(m.hasher, newCapacity)
	if err != nil {
		return err
	}
	m.table = newTable
	return nil
}

// placeFresh inserts a key known not to already be present into t. Used
// only by rebuild, where every key is by definition new to the fresh
// table; it does not run the safeguard, since rebuilds are themselves the
// safeguard's own remediation step.
func placeFresh[K comparable, V any](t *rawtable.RawTable[K, V], hash hashstate.SafeHash, key K, value V) {
	found := rawtable.SearchHashed[K, V](t, hash, func(k K) bool { return k == key })
	if found.Vacant.Kind == rawtable.VacantNoElem {
		found.Vacant.Empty.Put(hash, key, value)
	} else {
		rawtable.RobinHoodInsert[K, V](t, found.Vacant.Full, found.Vacant.Probe, hash, key, value)
	}
}

// Get returns the value stored for key, or false if there is no such
// value.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if m.table.Capacity() == 0 {
		var zero V
		return zero, false
	}
	found := rawtable.SearchHashed[K, V](m.table, m.hasher.Hash(key), func(k K) bool { return k == key })
	if found.Kind != rawtable.EntryOccupied {
		var zero V
		return zero, false
	}
	_, v := found.Occupied.Read()
	return v, true
}

// ContainsKey reports whether key has a stored value.
func (m *Map[K, V]) ContainsKey(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Insert maps key to value, growing the map if necessary. It returns the
// value key was previously mapped to, if any.
func (m *Map[K, V]) Insert(key K, value V) (V, bool, error) {
	entry, err := m.Entry(key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	switch e := entry.(type) {
	case *OccupiedEntry[K, V]:
		return e.Insert(value), true, nil
	case *VacantEntry[K, V]:
		if _, err := e.Insert(value); err != nil {
			var zero V
			return zero, false, err
		}
		var zero V
		return zero, false, nil
	default:
		var zero V
		return zero, false, nil
	}
}

// Remove deletes key from the map and returns its value, if present.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	if m.table.Capacity() == 0 {
		var zero V
		return zero, false
	}
	found := rawtable.SearchHashed[K, V](m.table, m.hasher.Hash(key), func(k K) bool { return k == key })
	if found.Kind != rawtable.EntryOccupied {
		var zero V
		return zero, false
	}
	_, _, value := rawtable.PopInternal[K, V](m.table, found.Occupied)
	return value, true
}

// Clear removes every entry, retaining the current allocation.
func (m *Map[K, V]) Clear() {
	m.table.Clear()
}

// Len returns the number of stored entries.
func (m *Map[K, V]) Len() int {
	return int(m.table.Size())
}

// Cap returns the usable capacity: the number of entries the map can hold
// before its next grow, at the 8/9 (~0.889) target load.
func (m *Map[K, V]) Cap() int {
	return int(m.table.Capacity() * 8 / 9)
}

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.table.Size() == 0
}

// Each calls fn for every entry in no particular order. If fn returns
// false, iteration stops early.
func (m *Map[K, V]) Each(fn func(key K, value V) bool) {
	m.table.Iter(func(_ hashstate.SafeHash, key K, value V) bool {
		return fn(key, value)
	})
}

// Keys returns every key currently stored, in no particular order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.table.Size())
	m.Each(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Values returns every value currently stored, in no particular order.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.table.Size())
	m.Each(func(_ K, v V) bool {
		values = append(values, v)
		return true
	})
	return values
}

// String renders the map for debugging. Entry order is unspecified.
func (m *Map[K, V]) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	m.Each(func(k K, v V) bool {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%v: %v", k, v)
		return true
	})
	b.WriteByte('}')
	return b.String()
}

// UsesSafeHashing reports whether this map's hash builder has switched to
// Safe mode, either at construction (non-one-shot keys) or later via the
// DoS safeguard. A map built with NewWithHasher always reports false,
// since it has no adaptive builder to switch.
func (m *Map[K, V]) UsesSafeHashing() bool {
	return m.builder != nil && m.builder.UsesSafeHashing()
}

// DisplacementStat is one histogram entry from Stats: the slot index of a
// full bucket, its current displacement from its ideal index, and the
// forward-shift of the Robin Hood cascade that most recently carried its
// key into that slot (0 if the key was placed directly into an empty
// bucket, never stolen into its slot by a later cascade).
type DisplacementStat struct {
	Index        int
	Displacement int
	ForwardShift int
}

// Stats appends one DisplacementStat per full bucket, in slot order, to
// out and returns the extended slice. Intended for tuning only; not part
// of the map's stable semantic contract and may change shape between
// releases.
func (m *Map[K, V]) Stats(out []DisplacementStat) []DisplacementStat {
	m.table.Displacements(func(index, displacement, forwardShift uintptr) bool {
		out = append(out, DisplacementStat{
			Index:        int(index),
			Displacement: int(displacement),
			ForwardShift: int(forwardShift),
		})
		return true
	})
	return out
}
