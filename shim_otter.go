package assoc

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/maypok86/otter/v2"
)

type (
	otterShim struct {
		cache *otter.Cache[any, any]
	}
	// otterLogger forwards otter's warnings to a go-kit logger.
	otterLogger struct {
		logger log.Logger
	}
	// otterRecorder reports otter's evictions.
	// Hits and misses are counted by the facade.
	otterRecorder struct {
		evicted func()
	}
)

func openOtter(cfg shimConfig) (shim, error) {
	cache, err := otter.New(&otter.Options[any, any]{
		MaximumSize:   cfg.maximumSize,
		Executor:      cfg.executor.Execute,
		Logger:        otterLogger{logger: cfg.logger},
		StatsRecorder: otterRecorder{evicted: cfg.evicted},
	})
	if err != nil {
		return nil, err
	}
	return &otterShim{cache: cache}, nil
}

func (s *otterShim) get(key any) (any, bool) { return s.cache.GetIfPresent(key) }

func (s *otterShim) put(key, value any) { s.cache.Set(key, value) }

func (s *otterShim) remove(key any) bool {
	_, present := s.cache.Invalidate(key)
	return present
}

func (s *otterShim) removeIf(key any, match func(any) bool) bool {
	if value, ok := s.cache.GetIfPresent(key); ok && match(value) {
		return s.remove(key)
	}
	return false
}

func (s *otterShim) compute(key any, fn func() (any, error)) (any, bool, error) {
	if value, ok := s.cache.GetIfPresent(key); ok {
		return value, false, nil
	}
	var stored bool
	value, err := s.cache.Get(context.Background(), key,
		otter.LoaderFunc[any, any](func(context.Context, any) (any, error) {
			value, err := fn()
			stored = err == nil
			return value, err
		}),
	)
	return value, stored, err
}

func (s *otterShim) size() int { return s.cache.EstimatedSize() }

func (s *otterShim) cleanup() { s.cache.CleanUp() }

func (s *otterShim) close() error { return nil }

func (l otterLogger) Warn(_ context.Context, msg string, err error) {
	level.Warn(l.logger).Log("msg", msg, "backend", BackendOtter, "err", err)
}

func (l otterLogger) Error(_ context.Context, msg string, err error) {
	level.Error(l.logger).Log("msg", msg, "backend", BackendOtter, "err", err)
}

func (otterRecorder) RecordHits(int)                  {}
func (otterRecorder) RecordMisses(int)                {}
func (r otterRecorder) RecordEviction(uint32)         { r.evicted() }
func (otterRecorder) RecordLoadSuccess(time.Duration) {}
func (otterRecorder) RecordLoadFailure(time.Duration) {}
