package assoc

import (
	arc "github.com/hashicorp/golang-lru/arc/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"tailscale.com/util/singleflight"
)

type (
	lru2Shim struct {
		cache   *lru.Cache[any, any]
		flight  *singleflight.Group[any, any]
		evicted func()
	}
	// arcShim is selected in place of [lru2Shim] for adaptive caches.
	arcShim struct {
		cache   *arc.ARCCache[any, any]
		flight  *singleflight.Group[any, any]
		evicted func()
	}
)

func openLRU2(cfg shimConfig) (shim, error) {
	if cfg.adaptive {
		cache, err := arc.NewARC[any, any](cfg.maximumSize)
		if err != nil {
			return nil, err
		}
		return &arcShim{
			cache:   cache,
			flight:  new(singleflight.Group[any, any]),
			evicted: cfg.evicted,
		}, nil
	}
	cache, err := lru.New[any, any](cfg.maximumSize)
	if err != nil {
		return nil, err
	}
	return &lru2Shim{
		cache:   cache,
		flight:  new(singleflight.Group[any, any]),
		evicted: cfg.evicted,
	}, nil
}

func (s *lru2Shim) get(key any) (any, bool) { return s.cache.Get(key) }

func (s *lru2Shim) put(key, value any) { s.add(key, value) }

func (s *lru2Shim) add(key, value any) {
	if s.cache.Add(key, value) {
		s.evicted()
	}
}

func (s *lru2Shim) remove(key any) bool { return s.cache.Remove(key) }

func (s *lru2Shim) removeIf(key any, match func(any) bool) bool {
	if value, ok := s.cache.Peek(key); ok && match(value) {
		return s.cache.Remove(key)
	}
	return false
}

func (s *lru2Shim) compute(key any, fn func() (any, error)) (any, bool, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, false, nil
	}
	return computeOnce(s.flight, key, s.cache.Peek, s.add, fn)
}

func (s *lru2Shim) size() int { return s.cache.Len() }

func (s *lru2Shim) cleanup() {}

func (s *lru2Shim) close() error { return nil }

func (s *arcShim) get(key any) (any, bool) { return s.cache.Get(key) }

func (s *arcShim) put(key, value any) { s.add(key, value) }

// add reports evictions by watching the length,
// which is approximate under concurrent writers.
func (s *arcShim) add(key, value any) {
	var (
		existed = s.cache.Contains(key)
		before  = s.cache.Len()
	)
	s.cache.Add(key, value)
	if !existed && s.cache.Len() <= before {
		s.evicted()
	}
}

func (s *arcShim) remove(key any) bool {
	if !s.cache.Contains(key) {
		return false
	}
	s.cache.Remove(key)
	return true
}

func (s *arcShim) removeIf(key any, match func(any) bool) bool {
	if value, ok := s.cache.Peek(key); ok && match(value) {
		s.cache.Remove(key)
		return true
	}
	return false
}

func (s *arcShim) compute(key any, fn func() (any, error)) (any, bool, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, false, nil
	}
	return computeOnce(s.flight, key, s.cache.Peek, s.add, fn)
}

func (s *arcShim) size() int { return s.cache.Len() }

func (s *arcShim) cleanup() {}

func (s *arcShim) close() error { return nil }
