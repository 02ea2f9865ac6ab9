package tree

import (
	"reflect"
	"unsafe"
)

// ID returns the identity of an object or sequence node. Objects are
// identified by their map header, sequences by their backing array. Scalars,
// nil containers and sequences without capacity have no identity.
func ID(v any) (unsafe.Pointer, bool) {
	switch typed := v.(type) {
	case map[string]any:
		if typed == nil {
			return nil, false
		}
		return reflect.ValueOf(typed).UnsafePointer(), true
	case []any:
		if cap(typed) == 0 {
			return nil, false
		}
		return unsafe.Pointer(unsafe.SliceData(typed)), true
	}
	return nil, false
}

// Same reports whether a and b are the same node. Two sequences are the same
// node only when they share a backing array and have the same length.
func Same(a, b any) bool {
	idA, ok := ID(a)
	if !ok {
		return false
	}
	idB, ok := ID(b)
	if !ok || idA != idB {
		return false
	}
	seqA, aIsSeq := a.([]any)
	seqB, bIsSeq := b.([]any)
	if aIsSeq != bIsSeq {
		return false
	}
	return !aIsSeq || len(seqA) == len(seqB)
}

// IsObject reports whether v is a non-nil object node.
func IsObject(v any) bool {
	m, ok := v.(map[string]any)
	return ok && m != nil
}

// IsSequence reports whether v is a non-nil sequence node.
func IsSequence(v any) bool {
	s, ok := v.([]any)
	return ok && s != nil
}
