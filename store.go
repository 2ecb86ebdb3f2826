package assoc

// Store is the get-or-create facade over a [WeakMap].
// Its ComputeIfAbsent takes no lock while fn runs, so racing
// callers may each call fn; exactly one result is kept and
// returned to all of them. fn should therefore be cheap and
// free of side effects.
//
// Keys are subject to the same size rule as [WeakMap] keys.
type Store[T, V any] struct {
	weak *WeakMap[T, V]
}

// NewStore returns an empty store.
func NewStore[T, V any](opts ...Option) *Store[T, V] {
	return &Store[T, V]{weak: NewWeakMap[T, V](opts...)}
}

// ComputeIfAbsent returns the value for key, computing it with fn
// if absent. Errors and panics from fn leave the store unchanged.
func (s *Store[T, V]) ComputeIfAbsent(key *T, fn func(*T) (V, error)) (V, error) {
	value, ok, err := s.weak.Get(key)
	if err != nil || ok {
		return value, err
	}
	if value, err = fn(key); err != nil {
		var zero V
		return zero, err
	}
	actual, _, err := s.weak.PutIfAbsent(key, value)
	return actual, err
}

// Get returns the value stored for key.
func (s *Store[T, V]) Get(key *T) (V, bool, error) { return s.weak.Get(key) }

// Put stores value for key, replacing any previous value.
func (s *Store[T, V]) Put(key *T, value V) error { return s.weak.Put(key, value) }

// Remove drops the value stored for key, if any.
func (s *Store[T, V]) Remove(key *T) error { return s.weak.Remove(key) }

// Size returns an approximate entry count for diagnostics.
func (s *Store[T, V]) Size() int { return s.weak.Len() }

// Cleanup drops the entries of collected keys now
// instead of waiting for the background worker.
func (s *Store[T, V]) Cleanup() { s.weak.Cleanup() }

// Close stops the background worker. See [WeakMap.Close].
func (s *Store[T, V]) Close() error { return s.weak.Close() }

// Map returns the underlying map.
func (s *Store[T, V]) Map() *WeakMap[T, V] { return s.weak }
