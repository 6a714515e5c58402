package rawtable

import "github.com/robinhash/robinhash/internal/hashstate"

// EmptyBucket is a cursor over a table slot known to be empty. Go has no
// borrow checker to enforce that statically, so the cursor re-validates
// its slot's emptiness on every call instead (debug builds only; see
// assert_debug.go) — the stand-in spec §9 calls for in languages without
// ownership types.
type EmptyBucket[K comparable, V any] struct {
	t     *RawTable[K, V]
	index uintptr
}

// Index returns the bucket index this cursor refers to.
func (e EmptyBucket[K, V]) Index() uintptr { return e.index }

// Put writes hash/key/value into this slot and returns a cursor over the
// now-full bucket. size is incremented.
func (e EmptyBucket[K, V]) Put(hash hashstate.SafeHash, key K, value V) FullBucket[K, V] {
	assert(!hash.IsZero(), "Put called with a zero (non-safe) hash")
	assert(!e.t.isFull(e.index), "Put called on a bucket that is no longer empty")

	e.t.hashes[e.index] = hash
	e.t.keys[e.index] = key
	e.t.values[e.index] = value
	e.t.forwardShifts[e.index] = 0 // placed directly, no cascade carried it here
	e.t.size++

	return FullBucket[K, V]{t: e.t, index: e.index}
}

// FullBucket is a cursor over a table slot known to be full. See
// EmptyBucket's note on re-validation.
type FullBucket[K comparable, V any] struct {
	t     *RawTable[K, V]
	index uintptr
}

// Index returns the bucket index this cursor refers to.
func (f FullBucket[K, V]) Index() uintptr { return f.index }

// Hash returns the bucket's stored hash.
func (f FullBucket[K, V]) Hash() hashstate.SafeHash {
	assert(f.t.isFull(f.index), "Hash called on a bucket that is no longer full")
	return f.t.hashes[f.index]
}

// Read returns copies of the bucket's key and value.
func (f FullBucket[K, V]) Read() (K, V) {
	assert(f.t.isFull(f.index), "Read called on a bucket that is no longer full")
	return f.t.keys[f.index], f.t.values[f.index]
}

// ReadPtr returns pointers into the bucket's key and value, valid until
// the next mutation of the table.
func (f FullBucket[K, V]) ReadPtr() (*K, *V) {
	assert(f.t.isFull(f.index), "ReadPtr called on a bucket that is no longer full")
	return &f.t.keys[f.index], &f.t.values[f.index]
}

// Take removes the triple stored at this bucket and returns it along with
// a cursor over the now-empty slot. size is decremented. The caller is
// responsible for the Robin Hood backward shift — see PopInternal, which
// wraps Take with that shift.
func (f FullBucket[K, V]) Take() (hash hashstate.SafeHash, key K, value V, empty EmptyBucket[K, V]) {
	assert(f.t.isFull(f.index), "Take called on a bucket that is no longer full")

	hash = f.t.hashes[f.index]
	key = f.t.keys[f.index]
	value = f.t.values[f.index]

	var zeroK K
	var zeroV V
	f.t.hashes[f.index] = hashstate.SafeHash(0)
	f.t.keys[f.index] = zeroK
	f.t.values[f.index] = zeroV
	f.t.forwardShifts[f.index] = 0
	f.t.size--

	return hash, key, value, EmptyBucket[K, V]{t: f.t, index: f.index}
}

// NextFullOrEmpty advances the cursor by one slot, modulo capacity, and
// reports which kind of bucket the new slot is. Go has no sum types, so
// exactly one of the two returned cursors is meaningful, selected by
// isFull.
func (f FullBucket[K, V]) NextFullOrEmpty() (full FullBucket[K, V], empty EmptyBucket[K, V], isFull bool) {
	next := (f.index + 1) & (f.t.capacity - 1)
	if f.t.isFull(next) {
		return FullBucket[K, V]{t: f.t, index: next}, EmptyBucket[K, V]{}, true
	}
	return FullBucket[K, V]{}, EmptyBucket[K, V]{t: f.t, index: next}, false
}
