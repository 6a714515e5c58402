package robinhash

import "github.com/robinhash/robinhash/internal/rawtable"

// Safeguard thresholds (spec'd constants; see DESIGN.md for the choices
// made within the ranges the design leaves open).
const (
	// DisplacementThreshold flags an insertion whose final displacement
	// exceeds it. At load 0.625, Pr{displacement > 128} ≈ 2e-49 for a
	// well-distributed hash, so a trip is overwhelmingly likely adversarial.
	DisplacementThreshold = 128

	// ForwardShiftThreshold flags a Robin-Hood cascade whose total forward
	// travel exceeds it.
	ForwardShiftThreshold = 768

	// LoadFactorThreshold decides, on a safeguard trip, whether to grow
	// (load at or above this) or switch hashing mode (load below it).
	LoadFactorThreshold = 0.2
)

// checkSafeguard inspects the signals produced by a single insertion and,
// if either crosses its threshold, runs remediation. It reports whether
// remediation actually rebuilt the table, so callers holding a cursor into
// the old table know to re-probe instead of trusting a stale pointer.
//
// The safeguard only runs for adaptively-hashed maps (NewWithHasher opts
// out entirely) and never re-enters itself: a rebuild reinserts every key
// through placeFresh, not through Insert/Entry, so it cannot recursively
// trigger checkSafeguard.
func (m *Map[K, V]) checkSafeguard(res rawtable.InsertResult) (bool, error) {
	if !m.adaptive || m.remediating {
		return false, nil
	}
	if res.Displacement <= DisplacementThreshold && res.ForwardShift <= ForwardShiftThreshold {
		return false, nil
	}
	if err := m.remediate(); err != nil {
		return false, err
	}
	return true, nil
}

// remediate runs the procedure from spec §4.4: grow if the load justifies
// it, otherwise switch Fast→Safe and rebuild at the same capacity (or grow
// if already Safe). A Fast→Safe switch is only committed to m.builder once
// the rebuild it requires has actually succeeded — an OOM rebuild leaves
// the map hashing exactly as it did before the trip.
func (m *Map[K, V]) remediate() error {
	m.remediating = true
	defer func() { m.remediating = false }()

	capacity := m.table.Capacity()
	if capacity == 0 {
		return nil
	}
	load := float64(m.table.Size()) / float64(capacity)

	if load >= LoadFactorThreshold {
		return m.rebuild(capacity * 2)
	}

	if m.builder != nil && m.builder.CanSwitch() {
		trial := *m.builder
		trial.SwitchToSafe()
		newTable, err := m.rebuildWith(&trial, capacity)
		if err != nil {
			return err
		}
		*m.builder = trial
		m.table = newTable
		return nil
	}

	return m.rebuild(capacity * 2)
}

// rollbackInsert removes key from m's table. It exists solely for
// VacantEntry.Insert's failure path: remediate (via rebuild/rebuildWith)
// never mutates m.table or m.builder until the rebuild it requires has
// fully succeeded, so on an AllocationError m.table is still exactly the
// table the physical insert wrote key into a moment earlier. Popping key
// back out restores the map to the state it had before that Insert call,
// satisfying the "no partial insert" guarantee (spec §4.5/§7) that would
// otherwise be violated by a write-before-safeguard-check ordering.
func (m *Map[K, V]) rollbackInsert(key K) {
	found := rawtable.SearchHashed[K, V](m.table, m.hasher.Hash(key), func(k K) bool { return k == key })
	if found.Kind == rawtable.EntryOccupied {
		rawtable.PopInternal[K, V](m.table, found.Occupied)
	}
}
