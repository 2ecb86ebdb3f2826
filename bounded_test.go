package assoc_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/djdv/go-assoc"
)

type backendCase struct {
	name     string
	caps     assoc.Capabilities
	adaptive bool
	want     assoc.Backend
	bounded  bool
	// lru reports strict least recently used eviction.
	lru bool
}

func backendCases() []backendCase {
	return []backendCase{
		{
			name:    "otter",
			caps:    assoc.DefaultCapabilities(),
			want:    assoc.BackendOtter,
			bounded: true,
		},
		{
			name:    "lru2",
			caps:    assoc.CapLRU2,
			want:    assoc.BackendLRU2,
			bounded: true,
			lru:     true,
		},
		{
			name:     "arc",
			caps:     assoc.DefaultCapabilities(),
			adaptive: true,
			want:     assoc.BackendLRU2,
			bounded:  true,
		},
		{
			name:    "lru1",
			caps:    assoc.CapLRU1 | assoc.CapClock,
			want:    assoc.BackendLRU1,
			bounded: true,
			lru:     true,
		},
		{
			name:    "clock",
			caps:    assoc.CapClock,
			want:    assoc.BackendClock,
			bounded: true,
		},
		{
			name: "weakmap",
			want: assoc.BackendWeakMap,
		},
	}
}

func (bc backendCase) builder(maximumSize int) *assoc.CacheBuilder[string, int] {
	return withBackend(bc, assoc.NewBuilder[string, int]().MaximumSize(maximumSize))
}

func withBackend[K comparable, V any](bc backendCase, builder *assoc.CacheBuilder[K, V]) *assoc.CacheBuilder[K, V] {
	builder.Name(bc.name).Capabilities(bc.caps)
	if bc.adaptive {
		builder.Adaptive()
	}
	return builder
}

func buildCache[K comparable, V any](t *testing.T, builder *assoc.CacheBuilder[K, V]) *assoc.BoundedCache[K, V] {
	t.Helper()
	cache := builder.Build()
	t.Cleanup(func() { require.NoError(t, cache.Close()) })
	return cache
}

func TestBoundedCache(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			t.Run("selects backend", bc.selectsBackend)
			t.Run("basic", bc.basic)
			t.Run("three into two", bc.threeIntoTwo)
			t.Run("respects capacity", bc.respectsCapacity)
			t.Run("compute error", bc.computeError)
			t.Run("compute panic", bc.computePanic)
			t.Run("concurrent compute", bc.concurrentCompute)
			t.Run("weak keys", bc.weakKeys)
			t.Run("weak values", bc.weakValues)
		})
	}
}

func (bc backendCase) selectsBackend(t *testing.T) {
	cache := buildCache(t, bc.builder(16))
	require.Equal(t, bc.want, cache.Backend())
}

func (bc backendCase) basic(t *testing.T) {
	var (
		r     = require.New(t)
		cache = buildCache(t, bc.builder(16))
	)
	_, ok, err := cache.Get("a")
	r.NoError(err)
	r.False(ok)
	r.NoError(cache.Put("a", 1))
	r.NoError(cache.Put("b", 2))
	r.NoError(cache.Put("a", 3))
	value, ok, err := cache.Get("a")
	r.NoError(err)
	r.True(ok)
	r.Equal(3, value)
	r.NoError(cache.Remove("a"))
	r.NoError(cache.Remove("missing"))
	_, ok, err = cache.Get("a")
	r.NoError(err)
	r.False(ok)
	cache.Cleanup()
	r.Equal(1, cache.Size())
}

func (bc backendCase) threeIntoTwo(t *testing.T) {
	var (
		r     = require.New(t)
		cache = buildCache(t, bc.builder(2))
	)
	for i, key := range []string{"A", "B", "C"} {
		value, err := cache.ComputeIfAbsent(key, func(string) (int, error) {
			return i, nil
		})
		r.NoError(err)
		r.Equal(i, value)
	}
	cache.Cleanup()
	_, hasB, err := cache.Get("B")
	r.NoError(err)
	_, hasC, err := cache.Get("C")
	r.NoError(err)
	r.True(hasB || hasC, "one of the newest keys must be retained")
	if bc.lru {
		_, hasA, err := cache.Get("A")
		r.NoError(err)
		r.False(hasA, "least recently used key must be evicted")
		r.True(hasB && hasC)
	}
	if bc.bounded {
		r.LessOrEqual(cache.Size(), 2)
	}
}

func (bc backendCase) respectsCapacity(t *testing.T) {
	const (
		capacity = 64
		extra    = 1000
	)
	cache := buildCache(t, bc.builder(capacity))
	for i := range capacity + extra {
		require.NoError(t, cache.Put(fmt.Sprint(i), i))
	}
	cache.Cleanup()
	if bc.bounded {
		require.LessOrEqual(t, cache.Size(), capacity)
	} else {
		require.Equal(t, capacity+extra, cache.Size())
	}
}

func (bc backendCase) computeError(t *testing.T) {
	var (
		r     = require.New(t)
		cache = buildCache(t, bc.builder(16))
		want  = errors.New("unavailable")
	)
	_, err := cache.ComputeIfAbsent("key", func(string) (int, error) {
		return 0, want
	})
	r.ErrorIs(err, want)
	_, ok, err := cache.Get("key")
	r.NoError(err)
	r.False(ok)
	value, err := cache.ComputeIfAbsent("key", func(string) (int, error) {
		return 1, nil
	})
	r.NoError(err)
	r.Equal(1, value)
}

func (bc backendCase) computePanic(t *testing.T) {
	var (
		r     = require.New(t)
		cache = buildCache(t, bc.builder(16))
	)
	r.Panics(func() {
		cache.ComputeIfAbsent("key", func(string) (int, error) {
			panic("compute")
		})
	})
	_, ok, err := cache.Get("key")
	r.NoError(err)
	r.False(ok)
}

func (bc backendCase) concurrentCompute(t *testing.T) {
	const goroutines = 32
	var (
		cache   = buildCache(t, withBackend(bc, assoc.NewBuilder[string, *traceContext]().
			MaximumSize(16)))
		start   = make(chan struct{})
		results = make([]*traceContext, goroutines)
		calls   atomic.Int32
		wg      sync.WaitGroup
	)
	for i := range goroutines {
		wg.Go(func() {
			<-start
			value, err := cache.ComputeIfAbsent("key", func(key string) (*traceContext, error) {
				calls.Add(1)
				time.Sleep(time.Millisecond)
				return &traceContext{request: key}, nil
			})
			if err != nil {
				t.Error(err)
			}
			results[i] = value
		})
	}
	close(start)
	wg.Wait()
	for _, value := range results {
		require.Same(t, results[0], value)
	}
	if cache.Backend() != assoc.BackendWeakMap {
		require.EqualValues(t, 1, calls.Load())
	}
}

func (bc backendCase) weakKeys(t *testing.T) {
	const count = 32
	cache := buildCache(t, withBackend(bc, assoc.NewBuilder[*object, int]().
		MaximumSize(count*2).
		WeakKeys()))
	var (
		r    = require.New(t)
		a    = newObject("twin")
		b    = newObject("twin")
		kept = newObject("kept")
	)
	r.NoError(cache.Put(a, 1))
	_, ok, err := cache.Get(b)
	r.NoError(err)
	r.False(ok, "weak keys compare by identity")
	r.NoError(cache.Remove(a))
	r.NoError(cache.Put(kept, 1))
	fillCache(t, cache, count)
	eventuallyCollected(t, cache.Cleanup, func() bool {
		return cache.Size() == 1
	})
	value, ok, err := cache.Get(kept)
	r.NoError(err)
	r.True(ok)
	r.Equal(1, value)
	_, err = cache.ComputeIfAbsent(nil, func(*object) (int, error) { return 0, nil })
	r.ErrorIs(err, assoc.ErrInvalidKey)
}

func fillCache(t *testing.T, cache *assoc.BoundedCache[*object, int], count int) {
	t.Helper()
	for i := range count {
		require.NoError(t, cache.Put(newObject("garbage"), i))
	}
}

func (bc backendCase) weakValues(t *testing.T) {
	var (
		r     = require.New(t)
		cache = buildCache(t, withBackend(bc, assoc.NewBuilder[string, *traceContext]().
			MaximumSize(16).
			WeakValues()))
		kept = &traceContext{request: "kept"}
	)
	r.NoError(cache.Put("kept", kept))
	putGarbageValue(t, cache, "dropped")
	eventuallyCollected(t, cache.Cleanup, func() bool {
		_, ok, err := cache.Get("dropped")
		return err == nil && !ok && cache.Size() == 1
	})
	value, ok, err := cache.Get("kept")
	r.NoError(err)
	r.True(ok)
	r.Same(kept, value)
	computed, err := cache.ComputeIfAbsent("dropped", func(key string) (*traceContext, error) {
		return &traceContext{request: key}, nil
	})
	r.NoError(err)
	r.Equal("dropped", computed.request)
}

func putGarbageValue(t *testing.T, cache *assoc.BoundedCache[string, *traceContext], key string) {
	t.Helper()
	require.NoError(t, cache.Put(key, &traceContext{request: key, spans: []string{"a"}}))
}

func TestBoundedCacheFallback(t *testing.T) {
	t.Run("negative size", func(t *testing.T) {
		cache := buildCache(t, assoc.NewBuilder[string, int]().MaximumSize(-1))
		require.Equal(t, assoc.BackendWeakMap, cache.Backend())
		require.NoError(t, cache.Put("a", 1))
		require.Equal(t, 1, cache.Size())
	})
	t.Run("unbounded without otter", func(t *testing.T) {
		cache := buildCache(t, assoc.NewBuilder[string, int]().
			Capabilities(assoc.DefaultCapabilities().Without(assoc.CapOtter)))
		require.Equal(t, assoc.BackendWeakMap, cache.Backend())
	})
	t.Run("clock needs room", func(t *testing.T) {
		cache := buildCache(t, assoc.NewBuilder[string, int]().
			MaximumSize(1).
			Capabilities(assoc.CapClock))
		require.Equal(t, assoc.BackendWeakMap, cache.Backend())
	})
}

func TestBuilder(t *testing.T) {
	t.Run("immutable after build", builderImmutable)
	t.Run("weak keys need pointers", builderWeakKeysIgnored)
	t.Run("executor", builderExecutor)
	t.Run("metrics", builderMetrics)
	t.Run("reclaim metrics", builderReclaimMetrics)
}

func builderImmutable(t *testing.T) {
	var (
		r       = require.New(t)
		builder = assoc.NewBuilder[string, int]().
			MaximumSize(2).
			Capabilities(assoc.CapLRU2)
		cache = buildCache(t, builder)
	)
	builder.MaximumSize(100).Capabilities(assoc.CapClock).Name("changed")
	for i := range 10 {
		r.NoError(cache.Put(fmt.Sprint(i), i))
	}
	r.Equal(assoc.BackendLRU2, cache.Backend())
	r.Equal(2, cache.Size())
	other := buildCache(t, builder)
	r.Equal(assoc.BackendClock, other.Backend())
}

func builderWeakKeysIgnored(t *testing.T) {
	var (
		r      = require.New(t)
		buf    bytes.Buffer
		// The executor logs at debug level from its own goroutine.
		logger = level.NewFilter(log.NewLogfmtLogger(log.NewSyncWriter(&buf)), level.AllowWarn())
		cache  = buildCache(t, assoc.NewBuilder[string, int]().
			Logger(logger).
			MaximumSize(4).
			WeakKeys().
			WeakValues())
	)
	r.Contains(buf.String(), "weak keys require a pointer key type")
	r.Contains(buf.String(), "weak values require a pointer value type")
	r.NoError(cache.Put("a", 1))
	value, ok, err := cache.Get("a")
	r.NoError(err)
	r.True(ok)
	r.Equal(1, value)
}

func builderExecutor(t *testing.T) {
	var (
		r     = require.New(t)
		tasks atomic.Int32
		cache = buildCache(t, assoc.NewBuilder[*object, int]().
			MaximumSize(16).
			Capabilities(assoc.CapLRU2).
			WeakKeys().
			Executor(assoc.ExecutorFunc(func(task func()) {
				tasks.Add(1)
				task()
			})))
	)
	fillCache(t, cache, 8)
	eventuallyCollected(t, cache.Cleanup, func() bool {
		return cache.Size() == 0
	})
	r.GreaterOrEqual(tasks.Load(), int32(8))
}

func builderMetrics(t *testing.T) {
	var (
		r       = require.New(t)
		reg     = prometheus.NewRegistry()
		metrics = assoc.NewMetrics(reg)
		cache   = buildCache(t, assoc.NewBuilder[string, int]().
			Name("interned").
			MaximumSize(2).
			Capabilities(assoc.CapLRU2).
			Metrics(metrics))
	)
	for _, key := range []string{"a", "b", "c"} {
		_, err := cache.ComputeIfAbsent(key, func(string) (int, error) { return 0, nil })
		r.NoError(err)
	}
	_, _, err := cache.Get("c")
	r.NoError(err)
	const expected = `
# HELP assoc_evictions_total Total number of entries evicted by a capacity policy.
# TYPE assoc_evictions_total counter
assoc_evictions_total{backend="lru2",cache="interned"} 1
# HELP assoc_hits_total Total number of lookups that found a value.
# TYPE assoc_hits_total counter
assoc_hits_total{backend="lru2",cache="interned"} 1
# HELP assoc_misses_total Total number of lookups that found no value.
# TYPE assoc_misses_total counter
assoc_misses_total{backend="lru2",cache="interned"} 3
`
	r.NoError(testutil.GatherAndCompare(reg, bytes.NewReader([]byte(expected)),
		"assoc_evictions_total", "assoc_hits_total", "assoc_misses_total"))
}

func builderReclaimMetrics(t *testing.T) {
	const count = 16
	var (
		reg   = prometheus.NewRegistry()
		cache = buildCache(t, assoc.NewBuilder[*object, int]().
			Name("sessions").
			Capabilities(0).
			WeakKeys().
			Metrics(assoc.NewMetrics(reg)))
	)
	require.Equal(t, assoc.BackendWeakMap, cache.Backend())
	fillCache(t, cache, count)
	expected := fmt.Sprintf(`
# HELP assoc_reclaimed_total Total number of entries removed because their key or value was collected.
# TYPE assoc_reclaimed_total counter
assoc_reclaimed_total{backend="weakmap",cache="sessions"} %d
`, count)
	eventuallyCollected(t, cache.Cleanup, func() bool {
		return testutil.GatherAndCompare(reg, strings.NewReader(expected),
			"assoc_reclaimed_total") == nil
	})
}
