package hashstate

import "golang.org/x/exp/constraints"

// Primes used by XXH64's finalizer.
const (
	prime2 = uint64(14029467366897019727)
	prime3 = uint64(1609587929392839161)
)

// mix is XXH64's finalizer, applied to a single little-endian machine word.
// It is only valid to use on a hash whose Write call carries at most 8
// bytes in one shot; OneShotKey below is the compile-time capability that
// promises this, and isOneShotKind is the runtime fallback for callers that
// only know K is comparable.
func mix(data uint64) uint64 {
	h := data
	h ^= h >> 33
	h *= prime2
	h ^= h >> 29
	h *= prime3
	h ^= h >> 32
	return h
}

// OneShotKey is the compile-time capability marker from spec §6: key types
// whose hash invocation writes at most 8 bytes in a single call. It is
// deliberately restricted to integer kinds; it must NOT be extended to
// strings or slices; the oneShotHasher below assumes a single ≤8-byte
// write and panics on anything else.
type OneShotKey interface {
	constraints.Integer
}

// oneShotHasher is the fast-mode Hasher: a single little-endian word loaded
// from the incoming bytes, finalized with mix. It implements hash.Hash64's
// Write/Sum64 contract but panics if Write is called more than once or with
// more than 8 bytes, since that would violate the one-shot assumption.
type oneShotHasher struct {
	hash    uint64
	written bool
}

func newOneShotHasher() *oneShotHasher {
	return &oneShotHasher{}
}

func (h *oneShotHasher) Write(p []byte) (int, error) {
	if h.written {
		panic("hashstate: one-shot hasher written to more than once")
	}
	if len(p) > 8 {
		panic("hashstate: one-shot hasher given more than 8 bytes")
	}
	var word uint64
	for i := len(p) - 1; i >= 0; i-- {
		word = word<<8 | uint64(p[i])
	}
	h.hash = mix(word)
	h.written = true
	return len(p), nil
}

func (h *oneShotHasher) Sum64() uint64 {
	return h.hash
}

func (h *oneShotHasher) Reset() {
	h.hash = 0
	h.written = false
}
