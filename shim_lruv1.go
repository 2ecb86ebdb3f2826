package assoc

import (
	lru1 "github.com/hashicorp/golang-lru"
	"tailscale.com/util/singleflight"
)

type lru1Shim struct {
	cache   *lru1.Cache
	flight  *singleflight.Group[any, any]
	evicted func()
}

func openLRU1(cfg shimConfig) (shim, error) {
	cache, err := lru1.New(cfg.maximumSize)
	if err != nil {
		return nil, err
	}
	return &lru1Shim{
		cache:   cache,
		flight:  new(singleflight.Group[any, any]),
		evicted: cfg.evicted,
	}, nil
}

func (s *lru1Shim) get(key any) (any, bool) { return s.cache.Get(key) }

func (s *lru1Shim) put(key, value any) { s.add(key, value) }

func (s *lru1Shim) add(key, value any) {
	if s.cache.Add(key, value) {
		s.evicted()
	}
}

func (s *lru1Shim) remove(key any) bool { return s.cache.Remove(key) }

func (s *lru1Shim) removeIf(key any, match func(any) bool) bool {
	if value, ok := s.cache.Peek(key); ok && match(value) {
		return s.cache.Remove(key)
	}
	return false
}

func (s *lru1Shim) compute(key any, fn func() (any, error)) (any, bool, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, false, nil
	}
	return computeOnce(s.flight, key, s.cache.Peek, s.add, fn)
}

func (s *lru1Shim) size() int { return s.cache.Len() }

func (s *lru1Shim) cleanup() {}

func (s *lru1Shim) close() error { return nil }
