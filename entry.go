package robinhash

import (
	"github.com/robinhash/robinhash/internal/hashstate"
	"github.com/robinhash/robinhash/internal/rawtable"
)

// Entry is a cursor obtained from Map.Entry, letting a caller inspect and
// then decide how to mutate a single slot with at most one probe. The
// internal three-way search result (Occupied | Vacant | TableIsEmpty) is
// collapsed to the two cases below: Map.Entry allocates the initial table
// before it probes, even if the entry it returns is never inserted into,
// so callers never see the empty-table case.
type Entry[K comparable, V any] interface {
	// Key returns the key this entry was looked up with.
	Key() K

	isEntry()
}

// Entry performs a single probe for key and returns a cursor over
// whatever it finds, growing the table first if the map is close enough
// to its load limit that the coming insertion would need to.
func (m *Map[K, V]) Entry(key K) (Entry[K, V], error) {
	if err := m.ensureRoomForOne(); err != nil {
		return nil, err
	}

	hash := m.hasher.Hash(key)
	found := rawtable.SearchHashed[K, V](m.table, hash, func(k K) bool { return k == key })

	switch found.Kind {
	case rawtable.EntryOccupied:
		return &OccupiedEntry[K, V]{m: m, key: key, bucket: found.Occupied}, nil
	case rawtable.EntryTableEmpty:
		// ensureRoomForOne always leaves capacity > 0 beforehand; this
		// branch only guards SearchHashed's contract, it should not run.
		if err := m.rebuild(initialCapacity); err != nil {
			return nil, err
		}
		return m.Entry(key)
	default:
		return &VacantEntry[K, V]{m: m, key: key, hash: hash, state: found.Vacant}, nil
	}
}

// OccupiedEntry is an Entry whose key is already present in the map.
type OccupiedEntry[K comparable, V any] struct {
	m      *Map[K, V]
	key    K
	bucket rawtable.FullBucket[K, V]
}

func (*OccupiedEntry[K, V]) isEntry() {}

// Key returns the entry's key.
func (e *OccupiedEntry[K, V]) Key() K { return e.key }

// Get returns the entry's current value.
func (e *OccupiedEntry[K, V]) Get() V {
	_, v := e.bucket.Read()
	return v
}

// GetMut returns a pointer to the entry's value, valid until the next
// structural change to the map (grow, mode switch, or a remove of a
// different key that happens to shift this bucket during backward-shift).
func (e *OccupiedEntry[K, V]) GetMut() *V {
	_, vp := e.bucket.ReadPtr()
	return vp
}

// Insert overwrites the entry's value and returns the value it replaced.
func (e *OccupiedEntry[K, V]) Insert(value V) V {
	_, vp := e.bucket.ReadPtr()
	prev := *vp
	*vp = value
	return prev
}

// Remove deletes the entry from the map and returns its value.
func (e *OccupiedEntry[K, V]) Remove() V {
	_, _, value := rawtable.PopInternal[K, V](e.m.table, e.bucket)
	return value
}

// VacantEntry is an Entry whose key is absent from the map.
type VacantEntry[K comparable, V any] struct {
	m     *Map[K, V]
	key   K
	hash  hashstate.SafeHash
	state rawtable.VacantEntryState[K, V]
}

func (*VacantEntry[K, V]) isEntry() {}

// Key returns the key this entry would be inserted under.
func (e *VacantEntry[K, V]) Key() K { return e.key }

// Insert places value under this entry's key, possibly stealing a slot
// and cascading a Robin-Hood shift, runs the DoS safeguard check, and
// returns a pointer to the stored value. If the safeguard trips and its
// remediation rebuild then fails with an AllocationError, the key is
// removed again before the error is returned, so a failed Insert never
// leaves the map holding a key it reported an error for.
func (e *VacantEntry[K, V]) Insert(value V) (*V, error) {
	var res rawtable.InsertResult
	var bucket rawtable.FullBucket[K, V]

	if e.state.Kind == rawtable.VacantNoElem {
		bucket = e.state.Empty.Put(e.hash, e.key, value)
		res = rawtable.InsertResult{Index: bucket.Index(), Displacement: e.state.Probe}
	} else {
		// A key stolen into a NeqElem site always lands exactly at that
		// site: its probe count (and so its displacement) is strictly
		// greater than the resident's on the first step of the cascade,
		// so the very first swap places it there for good.
		res = rawtable.RobinHoodInsert[K, V](e.m.table, e.state.Full, e.state.Probe, e.hash, e.key, value)
		bucket = e.m.table.AtFull(res.Index)
	}

	rebuilt, err := e.m.checkSafeguard(res)
	if err != nil {
		// Remediation's rebuild failed with an AllocationError after the
		// physical insert above already happened: e.key is sitting in
		// e.m.table right now. Pop it back out so the caller's "no
		// partial insert" guarantee (spec §4.5/§7) holds — the map is
		// left exactly as if this Insert had never been called.
		e.m.rollbackInsert(e.key)
		return nil, err
	}
	if rebuilt {
		found := rawtable.SearchHashed[K, V](e.m.table, e.m.hasher.Hash(e.key), func(k K) bool { return k == e.key })
		bucket = found.Occupied
	}

	_, vp := bucket.ReadPtr()
	return vp, nil
}
