package assoc

import (
	"runtime"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

type (
	// CacheBuilder collects settings for a [BoundedCache].
	// Setters only change the builder; [CacheBuilder.Build]
	// copies the settings, so later changes never reach
	// a cache that was already built.
	CacheBuilder[K comparable, V any] struct {
		settings builderSettings
	}
	builderSettings struct {
		executor    Executor
		logger      log.Logger
		metrics     *Metrics
		name        string
		maximumSize int
		caps        Capabilities
		weakKeys    bool
		weakValues  bool
		adaptive    bool
	}
)

// NewBuilder returns a builder for an unbounded cache
// that may use any compiled-in backend.
func NewBuilder[K comparable, V any]() *CacheBuilder[K, V] {
	return &CacheBuilder[K, V]{
		settings: builderSettings{
			logger: log.NewNopLogger(),
			name:   "default",
			caps:   DefaultCapabilities(),
		},
	}
}

// MaximumSize bounds the number of retained entries.
// Zero means unbounded, which only [BackendOtter]
// and [BackendWeakMap] support.
func (b *CacheBuilder[K, V]) MaximumSize(size int) *CacheBuilder[K, V] {
	b.settings.maximumSize = size
	return b
}

// WeakKeys ties each entry to the reachability of its key
// instead of keeping the key alive. K must be a pointer type;
// otherwise the setting is ignored and a warning is logged.
// K's element type should hold a pointer or span at least
// 16 bytes; see [IdentityKey]. A warning is logged otherwise.
func (b *CacheBuilder[K, V]) WeakKeys() *CacheBuilder[K, V] {
	b.settings.weakKeys = true
	return b
}

// WeakValues lets a value be collected while cached; it then
// reads as absent. V must be a pointer type; otherwise the
// setting is ignored and a warning is logged.
func (b *CacheBuilder[K, V]) WeakValues() *CacheBuilder[K, V] {
	b.settings.weakValues = true
	return b
}

// Executor runs maintenance and invalidation work.
// By default each cache owns a background worker,
// stopped by [BoundedCache.Close].
func (b *CacheBuilder[K, V]) Executor(executor Executor) *CacheBuilder[K, V] {
	b.settings.executor = executor
	return b
}

// Adaptive prefers adaptive replacement (ARC) over plain LRU.
func (b *CacheBuilder[K, V]) Adaptive() *CacheBuilder[K, V] {
	b.settings.adaptive = true
	return b
}

// Name labels log lines and metric series.
func (b *CacheBuilder[K, V]) Name(name string) *CacheBuilder[K, V] {
	b.settings.name = name
	return b
}

// Logger receives the cache's debug and warning lines.
// A nil logger discards them.
func (b *CacheBuilder[K, V]) Logger(logger log.Logger) *CacheBuilder[K, V] {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	b.settings.logger = logger
	return b
}

// Metrics records hits, misses, evictions and reclamations
// under the cache's name. Nil disables them.
func (b *CacheBuilder[K, V]) Metrics(metrics *Metrics) *CacheBuilder[K, V] {
	b.settings.metrics = metrics
	return b
}

// Capabilities restricts which backends may be selected.
func (b *CacheBuilder[K, V]) Capabilities(caps Capabilities) *CacheBuilder[K, V] {
	b.settings.caps = caps
	return b
}

// Build selects the most preferred backend that can be constructed
// and returns a cache using it. It cannot fail: [BackendWeakMap]
// is always available.
func (b *CacheBuilder[K, V]) Build() *BoundedCache[K, V] {
	var (
		settings = b.settings
		logger   = log.With(settings.logger, "cache", settings.name)
		core     = &boundedCore[K, V]{
			codec:  newCodec[K, V](settings.weakKeys, settings.weakValues, logger),
			logger: logger,
		}
	)
	if settings.executor != nil {
		core.executor = settings.executor
	} else {
		core.owned = newWorkerExecutor(settings.name, settings.logger)
		core.executor = core.owned
	}
	cfg := shimConfig{
		executor:    core.executor,
		logger:      logger,
		evicted:     func() { core.obs.evicted() },
		reclaimed:   func() { core.obs.reclaim() },
		name:        settings.name,
		maximumSize: settings.maximumSize,
		adaptive:    settings.adaptive,
		weakKeys:    core.codec.weakKeys,
	}
	core.backend, core.shim = open(plan(settings.caps, settings.maximumSize, settings.adaptive), cfg)
	core.obs = settings.metrics.observe(settings.name, core.backend)
	core.trackKeys = core.codec.weakKeys && core.backend != BackendWeakMap
	if core.trackKeys {
		core.tracked = xsync.NewMapOf[IdentityKey[byte], runtime.Cleanup]()
	}
	level.Debug(logger).Log("msg", "cache built", "backend", core.backend,
		"maximum_size", settings.maximumSize,
		"weak_keys", core.codec.weakKeys, "weak_values", core.codec.weakValues)
	cache := &BoundedCache[K, V]{core: core}
	if core.owned != nil {
		runtime.AddCleanup(cache, func(executor *workerExecutor) {
			executor.worker.Stop()
		}, core.owned)
	}
	return cache
}

// open constructs the first backend in ladder that succeeds.
func open(ladder []Backend, cfg shimConfig) (Backend, shim) {
	for _, backend := range ladder {
		opened, err := openers[backend](cfg)
		if err == nil {
			return backend, opened
		}
		err = errors.Wrapf(errBackendUnavailable, "%s: %v", backend, err)
		level.Debug(cfg.logger).Log("msg", "falling back", "backend", backend, "err", err)
	}
	opened, _ := openMap(cfg)
	return BackendWeakMap, opened
}
