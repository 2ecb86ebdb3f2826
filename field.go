package assoc

// Field attaches a typed value to objects of a type the caller
// does not own, as if T had an extra field of type V.
// An unset field reads as the zero value.
// T must hold a pointer or span at least 16 bytes
// for its fields to be dropped in a timely way; see [IdentityKey].
type Field[T, V any] struct {
	store *Store[T, V]
}

// NewField returns a field backed by its own [Store].
func NewField[T, V any](opts ...Option) *Field[T, V] {
	return &Field[T, V]{store: NewStore[T, V](opts...)}
}

// Get returns the field's value for obj.
func (f *Field[T, V]) Get(obj *T) (V, error) {
	value, _, err := f.store.Get(obj)
	return value, err
}

// Set stores value for obj.
func (f *Field[T, V]) Set(obj *T, value V) error {
	return f.store.Put(obj, value)
}

// Clear unsets the field for obj.
func (f *Field[T, V]) Clear(obj *T) error {
	return f.store.Remove(obj)
}

// ComputeIfNil returns the field's value for obj,
// initializing it with fn if it was never set.
func (f *Field[T, V]) ComputeIfNil(obj *T, fn func() V) (V, error) {
	return f.store.ComputeIfAbsent(obj, func(*T) (V, error) {
		return fn(), nil
	})
}

// Close stops the background worker of the underlying store.
func (f *Field[T, V]) Close() error { return f.store.Close() }
