package assoc

import (
	"sync"

	"tailscale.com/util/singleflight"

	"github.com/djdv/go-assoc/internal/clock"
)

// clockShim serializes access to the single-threaded
// CLOCK-Pro+ cache. The mutex is never held while
// a caller's compute function runs.
type clockShim struct {
	mu     sync.Mutex
	cache  *clock.Cache[any, any]
	flight *singleflight.Group[any, any]
}

func openClock(cfg shimConfig) (shim, error) {
	evicted := cfg.evicted
	cache, err := clock.New(cfg.maximumSize,
		clock.WithEvictHook(func(any, any) { evicted() }),
	)
	if err != nil {
		return nil, err
	}
	return &clockShim{
		cache:  cache,
		flight: new(singleflight.Group[any, any]),
	}, nil
}

func (s *clockShim) get(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(key)
}

func (s *clockShim) peek(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Peek(key)
}

func (s *clockShim) put(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, value)
}

func (s *clockShim) remove(key any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, present := s.cache.Remove(key)
	return present
}

func (s *clockShim) removeIf(key any, match func(any) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value, ok := s.cache.Peek(key); ok && match(value) {
		_, present := s.cache.Remove(key)
		return present
	}
	return false
}

func (s *clockShim) compute(key any, fn func() (any, error)) (any, bool, error) {
	if value, ok := s.get(key); ok {
		return value, false, nil
	}
	return computeOnce(s.flight, key, s.peek, s.put, fn)
}

func (s *clockShim) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

func (s *clockShim) cleanup() {}

func (s *clockShim) close() error { return nil }
