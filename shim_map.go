package assoc

import (
	"github.com/puzpuzpuz/xsync/v3"
)

type (
	// mapShim is the unbounded fallback for strong keys.
	mapShim struct {
		entries *xsync.MapOf[any, any]
	}
	// weakMapShim is the unbounded fallback for weak keys.
	// Keys arrive as identity keys and are reclaimed by the map itself.
	weakMapShim struct {
		weak *WeakMap[byte, any]
	}
)

func openMap(cfg shimConfig) (shim, error) {
	if cfg.weakKeys {
		return &weakMapShim{
			weak: NewWeakMap[byte, any](
				WithLogger(cfg.logger),
				WithName(cfg.name),
				withReclaimHook(cfg.reclaimed),
				withErasedKeys(),
			),
		}, nil
	}
	return &mapShim{entries: xsync.NewMapOf[any, any]()}, nil
}

func (s *mapShim) get(key any) (any, bool) { return s.entries.Load(key) }

func (s *mapShim) put(key, value any) { s.entries.Store(key, value) }

func (s *mapShim) remove(key any) bool {
	_, present := s.entries.LoadAndDelete(key)
	return present
}

func (s *mapShim) removeIf(key any, match func(any) bool) bool {
	var removed bool
	s.entries.Compute(key, func(old any, loaded bool) (any, bool) {
		removed = loaded && match(old)
		return old, !loaded || removed
	})
	return removed
}

// compute tolerates races: fn runs without a lock and
// the first value stored wins.
func (s *mapShim) compute(key any, fn func() (any, error)) (any, bool, error) {
	if value, ok := s.entries.Load(key); ok {
		return value, false, nil
	}
	value, err := fn()
	if err != nil {
		return nil, false, err
	}
	actual, loaded := s.entries.LoadOrStore(key, value)
	return actual, !loaded, nil
}

func (s *mapShim) size() int { return s.entries.Size() }

func (s *mapShim) cleanup() {}

func (s *mapShim) close() error { return nil }

func (s *weakMapShim) referent(key any) *byte {
	return key.(IdentityKey[byte]).Value()
}

func (s *weakMapShim) get(key any) (any, bool) {
	p := s.referent(key)
	if p == nil {
		return nil, false
	}
	value, ok, _ := s.weak.Get(p)
	return value, ok
}

func (s *weakMapShim) put(key, value any) {
	if p := s.referent(key); p != nil {
		_ = s.weak.Put(p, value)
	}
}

func (s *weakMapShim) remove(key any) bool {
	p := s.referent(key)
	if p == nil {
		return false
	}
	_, present, _ := s.weak.Get(p)
	_ = s.weak.Remove(p)
	return present
}

func (s *weakMapShim) removeIf(key any, match func(any) bool) bool {
	p := s.referent(key)
	if p == nil {
		return false
	}
	if value, ok, _ := s.weak.Get(p); ok && match(value) {
		_ = s.weak.Remove(p)
		return true
	}
	return false
}

func (s *weakMapShim) compute(key any, fn func() (any, error)) (any, bool, error) {
	p := s.referent(key)
	if p == nil { // Unreachable while the caller holds its key.
		value, err := fn()
		return value, false, err
	}
	if value, ok, _ := s.weak.Get(p); ok {
		return value, false, nil
	}
	value, err := fn()
	if err != nil {
		return nil, false, err
	}
	actual, loaded, _ := s.weak.PutIfAbsent(p, value)
	return actual, !loaded, nil
}

func (s *weakMapShim) size() int { return s.weak.Len() }

func (s *weakMapShim) cleanup() { s.weak.Cleanup() }

func (s *weakMapShim) close() error { return s.weak.Close() }
