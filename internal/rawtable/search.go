package rawtable

import "github.com/robinhash/robinhash/internal/hashstate"

// EntryKind tags the three possible outcomes of a search (spec §4.3).
type EntryKind uint8

const (
	EntryOccupied EntryKind = iota
	EntryVacant
	EntryTableEmpty
)

// VacantKind tags the two possible vacant-search outcomes.
type VacantKind uint8

const (
	// VacantNoElem is a genuinely empty bucket: nothing to steal from.
	VacantNoElem VacantKind = iota
	// VacantNeqElem is a full bucket whose displacement is less than the
	// probe count reached so far — it will be stolen from on insert.
	VacantNeqElem
)

// VacantEntryState is the site a vacant search landed on.
type VacantEntryState[K comparable, V any] struct {
	Kind  VacantKind
	Empty EmptyBucket[K, V] // valid when Kind == VacantNoElem
	Full  FullBucket[K, V]  // valid when Kind == VacantNeqElem
	// Probe is the probe count at the site. For a NeqElem site this
	// equals the displacement the incoming key will end up with, since
	// probe count and displacement from the incoming key's own ideal
	// index move in lockstep during the search.
	Probe uintptr
}

// Index returns the table index this vacant state refers to.
func (v VacantEntryState[K, V]) Index() uintptr {
	if v.Kind == VacantNoElem {
		return v.Empty.Index()
	}
	return v.Full.Index()
}

// InternalEntry is the three-way result of SearchHashed (spec §4.3/§4.5).
type InternalEntry[K comparable, V any] struct {
	Kind     EntryKind
	Occupied FullBucket[K, V]
	Vacant   VacantEntryState[K, V]
	Hash     hashstate.SafeHash
}

// SearchHashed walks the probe chain for hash starting at its ideal index,
// calling eq to test keys already known to collide on hash. It makes a
// single pass over the chain — the "at-most-one probe per logical
// operation" the entry API is built on top of.
//
// Per the Robin Hood invariant, displacements along a probe chain are
// non-decreasing until the first empty bucket; so the moment a bucket's
// displacement falls below the current probe count, the sought key cannot
// be further along the chain, and searching stops there.
func SearchHashed[K comparable, V any](t *RawTable[K, V], hash hashstate.SafeHash, eq func(K) bool) InternalEntry[K, V] {
	if t.capacity == 0 {
		return InternalEntry[K, V]{Kind: EntryTableEmpty, Hash: hash}
	}

	i := t.Ideal(hash)
	var p uintptr
	for ; t.isFull(i); p++ {
		d := t.Displacement(i, t.hashes[i])
		if d < p {
			return InternalEntry[K, V]{
				Kind: EntryVacant,
				Hash: hash,
				Vacant: VacantEntryState[K, V]{
					Kind:  VacantNeqElem,
					Full:  FullBucket[K, V]{t: t, index: i},
					Probe: p,
				},
			}
		}
		if t.hashes[i] == hash && eq(t.keys[i]) {
			return InternalEntry[K, V]{
				Kind:     EntryOccupied,
				Occupied: FullBucket[K, V]{t: t, index: i},
				Hash:     hash,
			}
		}
		i = (i + 1) & (t.capacity - 1)
	}

	return InternalEntry[K, V]{
		Kind: EntryVacant,
		Hash: hash,
		Vacant: VacantEntryState[K, V]{
			Kind:  VacantNoElem,
			Empty: EmptyBucket[K, V]{t: t, index: i},
			Probe: p,
		},
	}
}

// InsertResult reports the signals the safeguard (spec §4.4) needs out of
// a Robin Hood insertion: where the new key landed, how displaced it is,
// and how far a steal cascade pushed the chain it displaced.
type InsertResult struct {
	Index        uintptr
	Displacement uintptr
	ForwardShift uintptr
	Stole        bool
}

// RobinHoodInsert places (hash, key, value) at a NeqElem site, stealing
// the slot from the bucket currently there — "takes from the rich and
// gives to the poor": at each step, whichever of the carried triple and
// the resident triple has the larger displacement stays, and the other is
// carried onward — and cascading the displaced chain forward until an
// empty bucket is found.
func RobinHoodInsert[K comparable, V any](t *RawTable[K, V], at FullBucket[K, V], probe uintptr, hash hashstate.SafeHash, key K, value V) InsertResult {
	insertIndex := at.Index()

	curHash := hash
	curKey := key
	curValue := value
	curDisp := probe
	idx := insertIndex

	for {
		// shift is how far this cascade has carried whatever key ends up
		// written to idx this step, from the site the incoming key was
		// originally inserted at — recorded in forwardShifts for Stats
		// regardless of which branch below actually writes idx.
		shift := (idx - insertIndex) & (t.capacity - 1)

		if !t.isFull(idx) {
			t.hashes[idx] = curHash
			t.keys[idx] = curKey
			t.values[idx] = curValue
			t.forwardShifts[idx] = shift
			break
		}

		// Equal displacement does not trigger a steal: ties stay put.
		if curDisp > t.Displacement(idx, t.hashes[idx]) {
			t.hashes[idx], curHash = curHash, t.hashes[idx]
			t.keys[idx], curKey = curKey, t.keys[idx]
			t.values[idx], curValue = curValue, t.values[idx]
			t.forwardShifts[idx] = shift
			curDisp = t.Displacement(idx, curHash)
		}

		idx = (idx + 1) & (t.capacity - 1)
		curDisp++
	}

	t.size++

	return InsertResult{
		Index:        insertIndex,
		Displacement: probe,
		ForwardShift: (idx - insertIndex) & (t.capacity - 1),
		Stole:        true,
	}
}

// PopInternal removes the key/value at full bucket at, then performs the
// Robin Hood backward shift: successive buckets with positive displacement
// move back one slot until an empty bucket or a zero-displacement bucket
// is reached (spec §4.3's Remove procedure).
func PopInternal[K comparable, V any](t *RawTable[K, V], at FullBucket[K, V]) (hashstate.SafeHash, K, V) {
	hash, key, value, empty := at.Take()

	hole := empty.Index()
	for {
		next := (hole + 1) & (t.capacity - 1)
		if !t.isFull(next) || t.Displacement(next, t.hashes[next]) == 0 {
			break
		}
		t.hashes[hole] = t.hashes[next]
		t.keys[hole] = t.keys[next]
		t.values[hole] = t.values[next]
		t.forwardShifts[hole] = t.forwardShifts[next]
		hole = next
	}

	var zeroK K
	var zeroV V
	t.hashes[hole] = hashstate.SafeHash(0)
	t.keys[hole] = zeroK
	t.values[hole] = zeroV
	t.forwardShifts[hole] = 0

	return hash, key, value
}
