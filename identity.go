package assoc

import (
	"reflect"
	"weak"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// IdentityKey identifies an object by address rather than by value.
// Two keys are equal iff they were made from the same pointer.
// A key never keeps its referent alive; once the referent has been
// collected, [IdentityKey.Value] returns nil and no key made later
// will compare equal to it.
//
// Keys are plain values. A key built on the stack for a single lookup
// allocates nothing and holds no strong reference once the lookup returns.
//
// The runtime packs pointer-free objects smaller than 16 bytes,
// such as *int64, into shared blocks and frees them together.
// A key made from such an object may stay live long after the
// object itself is unreachable. Callers that need timely
// reclamation must key on types that hold a pointer or span
// at least 16 bytes.
type IdentityKey[T any] struct {
	ptr weak.Pointer[T]
}

// MakeIdentityKey returns the key for p.
// p must be non-nil and heap allocated.
func MakeIdentityKey[T any](p *T) (IdentityKey[T], error) {
	if p == nil {
		return IdentityKey[T]{}, nilKeyError("identity key")
	}
	return IdentityKey[T]{ptr: weak.Make(p)}, nil
}

// Value returns the referent, or nil if it has been collected.
func (k IdentityKey[T]) Value() *T { return k.ptr.Value() }

// Live reports whether the referent is still reachable.
func (k IdentityKey[T]) Live() bool { return k.ptr.Value() != nil }

// tinyKeySize is the runtime's tiny allocation limit.
const tinyKeySize = 16

// tinyAllocated reports whether objects of type t may share a block
// with unrelated objects, delaying their collection indefinitely.
func tinyAllocated(t reflect.Type) bool {
	return t.Size() < tinyKeySize && !hasPointers(t)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice,
		reflect.String, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

func warnTinyKeys(logger log.Logger, t reflect.Type) {
	if tinyAllocated(t) {
		level.Warn(logger).Log("msg", "key type is small and pointer-free, collected keys may never be reclaimed",
			"type", t, "min_size", tinyKeySize)
	}
}
