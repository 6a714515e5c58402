// Package hashstate implements the adaptive hash-builder that backs the
// robinhash map: a safe-hash wrapper that keeps the occupancy marker and
// the hash value in the same 64-bit word, a keyed (DoS-resistant) PRF
// hasher, a cheap one-shot hasher for integral/pointer keys, and the
// Fast/Safe union that transitions between them.
package hashstate

// SafeHash is a 64-bit hash with bit 63 forced to 1. Because the high bit
// is always set, a SafeHash can never equal zero, so the raw table can use
// zero as its empty-slot marker without a separate occupancy bit.
//
// The zero value of SafeHash is not a valid SafeHash; always construct one
// through MakeSafeHash.
type SafeHash uint64

const highBit = uint64(1) << 63

// MakeSafeHash sets the high bit of raw and returns the result. This is the
// only place a SafeHash should be constructed from a raw hash value.
func MakeSafeHash(raw uint64) SafeHash {
	return SafeHash(raw | highBit)
}

// IsZero reports whether h is the zero value, i.e. was never constructed
// through MakeSafeHash. The raw table uses it as its empty-slot test.
func (h SafeHash) IsZero() bool {
	return h == 0
}

// Index returns h's ideal index into a table of the given capacity, which
// must be a power of two.
func (h SafeHash) Index(capacity uintptr) uintptr {
	return uintptr(h) & (capacity - 1)
}

// Uint64 returns the raw 64-bit value, high bit included.
func (h SafeHash) Uint64() uint64 {
	return uint64(h)
}
