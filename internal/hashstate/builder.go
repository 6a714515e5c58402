package hashstate

import "reflect"

type mode uint8

const (
	fastMode mode = iota
	safeMode
)

// Builder is the adaptive hash-builder state (spec §3's "hash-builder
// state"): a tagged union of Fast (stateless one-shot mix) and Safe (keyed
// SipHash PRF). It is created once per map, may transition Fast → Safe
// exactly once during the map's life, and never reverts (spec §8 property
// "mode monotonicity").
type Builder[K comparable] struct {
	md     mode
	safe   safeState
	source SecretSource
	oneShot bool // whether K is one-shot eligible at all, fixed for the Builder's life
}

// NewAdaptive constructs a Builder that starts in Fast mode when K is
// one-shot eligible (detected via reflect, mirroring the teacher's
// GetHasher dispatch) and in Safe mode otherwise.
func NewAdaptive[K comparable](source SecretSource) *Builder[K] {
	oneShot := isOneShotKind(keyKind[K]())
	b := &Builder[K]{oneShot: oneShot, source: source}
	if oneShot {
		b.md = fastMode
	} else {
		b.md = safeMode
		b.safe = newSafeState(source)
	}
	return b
}

// NewAdaptiveOneShot is the compile-time-checked constructor path: K is
// statically known to satisfy OneShotKey, so the Builder always starts in
// Fast mode without needing a runtime reflect check.
func NewAdaptiveOneShot[K OneShotKey](source SecretSource) *Builder[K] {
	return &Builder[K]{md: fastMode, source: source, oneShot: true}
}

// NewSafe constructs a Builder that is always in Safe mode and never
// switches — used for key types that are not one-shot eligible, or by
// callers who want to opt out of the adaptive safeguard entirely.
func NewSafe[K comparable](source SecretSource) *Builder[K] {
	return &Builder[K]{md: safeMode, source: source, safe: newSafeState(source)}
}

// UsesSafeHashing reports whether this Builder is in Safe mode, whether it
// started there or switched to it. Once true, it is true forever.
func (b *Builder[K]) UsesSafeHashing() bool {
	return b.md == safeMode
}

// CanSwitch reports whether this Builder is still eligible to switch to
// Safe mode (i.e. hasn't already).
func (b *Builder[K]) CanSwitch() bool {
	return b.md == fastMode
}

// SwitchToSafe transitions the Builder from Fast to Safe mode, drawing new
// key material from its secret source. It is a no-op if already in Safe
// mode — the transition happens at most once, idempotently.
func (b *Builder[K]) SwitchToSafe() {
	if b.md == safeMode {
		return
	}
	b.safe = newSafeState(b.source)
	b.md = safeMode
}

// Hash computes the SafeHash of key under the Builder's current mode.
func (b *Builder[K]) Hash(key K) SafeHash {
	var h hasher64
	if b.md == fastMode {
		h = newOneShotHasher()
	} else {
		h = b.safe.newHasher()
	}
	writeKey(h, key)
	return MakeSafeHash(h.Sum64())
}

// kindOf is exposed for tests that want to assert which dispatch path a
// given K takes without constructing a Builder.
func kindOf[K any]() reflect.Kind {
	return keyKind[K]()
}
