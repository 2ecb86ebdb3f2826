package assoc

import (
	"reflect"
	"unsafe"
	"weak"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// codec maps caller keys and values to their stored form.
// Weak keys are stored as identity keys and weak values as weak
// pointers; both are only possible for pointer types, whose values
// are reinterpreted as *byte so one backend type serves any T.
type codec[K comparable, V any] struct {
	keyKind              reflect.Kind
	weakKeys, weakValues bool
}

func newCodec[K comparable, V any](weakKeys, weakValues bool, logger log.Logger) codec[K, V] {
	var (
		keyType   = reflect.TypeFor[K]()
		valueType = reflect.TypeFor[V]()
	)
	if weakKeys && keyType.Kind() != reflect.Pointer {
		level.Warn(logger).Log("msg", "weak keys require a pointer key type, ignoring", "type", keyType)
		weakKeys = false
	}
	if weakKeys {
		warnTinyKeys(logger, keyType.Elem())
	}
	if weakValues && valueType.Kind() != reflect.Pointer {
		level.Warn(logger).Log("msg", "weak values require a pointer value type, ignoring", "type", valueType)
		weakValues = false
	}
	return codec[K, V]{
		keyKind:    keyType.Kind(),
		weakKeys:   weakKeys,
		weakValues: weakValues,
	}
}

// rawPointer reinterprets a pointer-shaped value.
// T must be a pointer, channel or unsafe.Pointer type.
func rawPointer[T any](v T) *byte {
	return (*byte)(*(*unsafe.Pointer)(unsafe.Pointer(&v)))
}

func fromRawPointer[T any](p *byte) (v T) {
	*(*unsafe.Pointer)(unsafe.Pointer(&v)) = unsafe.Pointer(p)
	return v
}

func (c codec[K, V]) isNil(key K) bool {
	switch c.keyKind {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return rawPointer(key) == nil
	case reflect.Interface:
		boxed := any(key)
		if boxed == nil {
			return true
		}
		switch value := reflect.ValueOf(boxed); value.Kind() {
		case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
			return value.IsNil()
		}
	}
	return false
}

func (c codec[K, V]) encodeKey(op string, key K) (any, error) {
	if c.isNil(key) {
		return nil, nilKeyError(op)
	}
	if c.weakKeys {
		return IdentityKey[byte]{ptr: weak.Make(rawPointer(key))}, nil
	}
	return key, nil
}

// encodeValue returns the stored form of value and,
// for weak values, the weak pointer it is stored as.
func (c codec[K, V]) encodeValue(value V) (any, *byte) {
	if !c.weakValues {
		return value, nil
	}
	p := rawPointer(value)
	if p == nil {
		return value, nil
	}
	return weak.Make(p), p
}

// decodeValue reports false if a weak value has been collected.
func (c codec[K, V]) decodeValue(stored any) (V, bool) {
	if c.weakValues {
		if ref, ok := stored.(weak.Pointer[byte]); ok {
			p := ref.Value()
			if p == nil {
				var zero V
				return zero, false
			}
			return fromRawPointer[V](p), true
		}
	}
	value, _ := stored.(V)
	return value, true
}
