package hashstate

import "github.com/dchest/siphash"

// safeState is the keyed PRF hash-builder state: a particular instance
// always builds hashers that behave identically to each other, but two
// different instances are (with overwhelming probability) never the same
// function, so an adversary who doesn't know k0/k1 cannot construct a
// colliding key sequence for this map.
type safeState struct {
	k0, k1 uint64
}

func newSafeState(source SecretSource) safeState {
	k0, k1 := source.Next()
	return safeState{k0: k0, k1: k1}
}

func (s safeState) newHasher() hasher64 {
	var key [16]byte
	putLE64(key[0:8], s.k0)
	putLE64(key[8:16], s.k1)
	return siphash.New(key[:])
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
