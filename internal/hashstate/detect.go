package hashstate

import (
	"reflect"
	"unsafe"
)

// hasher64 is the hash-builder contract from spec §6: write bytes, then
// read back a 64-bit digest. Both the Fast (one-shot) and Safe (SipHash)
// hashers implement it; it is the same shape as the standard library's
// hash.Hash64, deliberately, so a caller could swap in any hash.Hash64.
type hasher64 interface {
	Write(p []byte) (int, error)
	Sum64() uint64
}

// isOneShotKind reports whether a comparable key of this reflect.Kind is
// one-shot eligible: hashing it writes at most 8 bytes in a single call.
// Restricted to integral and pointer kinds per spec §6/§9 — never extend
// this to reflect.String, reflect.Struct, or any kind whose value is not
// entirely its own byte representation.
func isOneShotKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Uint, reflect.Uintptr,
		reflect.Int8, reflect.Uint8,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32,
		reflect.Int64, reflect.Uint64,
		reflect.Ptr:
		// all of these are <= 8 bytes on every platform this repo targets.
		return true
	default:
		return false
	}
}

// keyKind returns the reflect.Kind of K by inspecting a zero value, never
// a live key — this only runs once, at Builder construction.
func keyKind[K any]() reflect.Kind {
	var zero K
	return reflect.ValueOf(&zero).Elem().Kind()
}

// writeKey writes key's hashable bytes into h.
//
// reflect.String is special-cased to its actual byte content, because a
// string's in-memory representation (a pointer and a length) is not its
// value. Every other kind is written from its raw in-memory bytes, which
// is correct for scalars, pointers, and fixed-size structs/arrays built
// only from those — but not for a struct that itself embeds a string or an
// interface. This library targets the same key kinds the teacher's hasher
// dispatch does (see isOneShotKind); keys built from nested strings are
// out of scope, matching the teacher's reflect-dispatch panic on
// unsupported kinds.
func writeKey[K any](h hasher64, key K) {
	if s, ok := any(key).(string); ok {
		_, _ = h.Write([]byte(s))
		return
	}
	size := unsafe.Sizeof(key)
	_, _ = h.Write(unsafe.Slice((*byte)(unsafe.Pointer(&key)), int(size)))
}
