package assoc

import (
	"iter"
	"reflect"
	"runtime"
	"weak"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/djdv/go-assoc/internal/reclaim"
)

type (
	// WeakMap associates values with objects by identity without
	// keeping those objects alive. Once a key object becomes
	// unreachable its entry is removed in the background.
	//
	// Reads take no lock. All methods are safe for concurrent use.
	// A value that references its own key keeps the key alive.
	// T should hold a pointer or span at least 16 bytes;
	// see [IdentityKey] for why smaller keys may never be reclaimed.
	// Construct with [NewWeakMap].
	WeakMap[T, V any] struct {
		state *weakMap[T, V]
	}
	weakMap[T, V any] struct {
		entries   *xsync.MapOf[IdentityKey[T], weakEntry[V]]
		worker    *reclaim.Worker[IdentityKey[T]]
		reclaimed *xsync.Counter
		obs       *observer
		onReclaim func()
		logger    log.Logger
	}
	weakEntry[V any] struct {
		value   V
		cleanup runtime.Cleanup
	}
)

// NewWeakMap returns an empty map and starts its reclamation worker.
// The worker exits on [WeakMap.Close], or on its own some time
// after the map itself becomes unreachable.
func NewWeakMap[T, V any](opts ...Option) *WeakMap[T, V] {
	settings := makeOptions(opts)
	state := &weakMap[T, V]{
		entries:   xsync.NewMapOf[IdentityKey[T], weakEntry[V]](),
		reclaimed: xsync.NewCounter(),
		obs:       settings.metrics.observe(settings.name, BackendWeakMap),
		onReclaim: settings.onReclaim,
		logger:    log.With(settings.logger, "map", settings.name),
	}
	state.worker = reclaim.New(state.expunge,
		reclaim.WithLogger(settings.logger),
		reclaim.WithName(settings.name),
		reclaim.WithQueueSize(settings.queueSize),
	)
	if !settings.erasedKeys {
		warnTinyKeys(state.logger, reflect.TypeFor[T]())
	}
	m := &WeakMap[T, V]{state: state}
	runtime.AddCleanup(m, func(worker *reclaim.Worker[IdentityKey[T]]) {
		worker.Stop()
	}, state.worker)
	return m
}

func probe[T any](p *T) IdentityKey[T] {
	return IdentityKey[T]{ptr: weak.Make(p)}
}

// Get returns the value associated with p.
func (m *WeakMap[T, V]) Get(p *T) (V, bool, error) {
	if p == nil {
		var zero V
		return zero, false, nilKeyError("get")
	}
	entry, ok := m.state.entries.Load(probe(p))
	m.state.obs.lookup(ok)
	return entry.value, ok, nil
}

// PutIfAbsent associates value with p unless p already has a value.
// It returns the retained value and whether it was already present.
func (m *WeakMap[T, V]) PutIfAbsent(p *T, value V) (V, bool, error) {
	return m.PutIfAbsentFunc(p, func() V { return value })
}

// PutIfAbsentFunc is like [WeakMap.PutIfAbsent] but only calls
// supplier if p has no value. Racing callers may each call
// their supplier; only one result is retained.
func (m *WeakMap[T, V]) PutIfAbsentFunc(p *T, supplier func() V) (V, bool, error) {
	if p == nil {
		var zero V
		return zero, false, nilKeyError("put if absent")
	}
	var (
		s   = m.state
		key = probe(p)
	)
	if entry, ok := s.entries.Load(key); ok {
		return entry.value, true, nil
	}
	value := supplier()
	actual, loaded := s.entries.LoadOrCompute(key, func() weakEntry[V] {
		return s.newEntry(p, key, value)
	})
	return actual.value, loaded, nil
}

// Put associates value with p, replacing any previous value.
func (m *WeakMap[T, V]) Put(p *T, value V) error {
	if p == nil {
		return nilKeyError("put")
	}
	var (
		s   = m.state
		key = probe(p)
	)
	s.entries.Compute(key, func(old weakEntry[V], loaded bool) (weakEntry[V], bool) {
		if loaded {
			old.value = value
			return old, false
		}
		return s.newEntry(p, key, value), false
	})
	return nil
}

// Remove drops the value associated with p, if any.
func (m *WeakMap[T, V]) Remove(p *T) error {
	if p == nil {
		return nilKeyError("remove")
	}
	if old, loaded := m.state.entries.LoadAndDelete(probe(p)); loaded {
		old.cleanup.Stop()
	}
	return nil
}

// Len returns the approximate number of entries.
func (m *WeakMap[T, V]) Len() int { return m.state.entries.Size() }

// Reclaimed returns how many entries were removed
// because their key was collected.
func (m *WeakMap[T, V]) Reclaimed() int64 { return m.state.reclaimed.Value() }

// All iterates over the entries whose keys are still reachable.
func (m *WeakMap[T, V]) All() iter.Seq2[*T, V] {
	return func(yield func(*T, V) bool) {
		m.state.entries.Range(func(key IdentityKey[T], entry weakEntry[V]) bool {
			p := key.Value()
			if p == nil {
				return true
			}
			return yield(p, entry.value)
		})
	}
}

// Cleanup synchronously processes pending reclamation
// and drops any entry whose key has already been collected.
func (m *WeakMap[T, V]) Cleanup() {
	s := m.state
	s.worker.Drain()
	s.entries.Range(func(key IdentityKey[T], _ weakEntry[V]) bool {
		if !key.Live() {
			s.expunge(key)
		}
		return true
	})
}

// Close stops the reclamation worker. The map remains usable;
// entries of collected keys are then removed on the runtime's
// cleanup goroutine instead.
func (m *WeakMap[T, V]) Close() error {
	s := m.state
	err := s.worker.Close()
	level.Debug(s.logger).Log("msg", "weak map closed",
		"entries", s.entries.Size(), "reclaimed", s.reclaimed.Value())
	return err
}

func (s *weakMap[T, V]) newEntry(p *T, key IdentityKey[T], value V) weakEntry[V] {
	return weakEntry[V]{
		value:   value,
		cleanup: runtime.AddCleanup(p, s.notify, key),
	}
}

// notify runs on the runtime's cleanup goroutine.
func (s *weakMap[T, V]) notify(key IdentityKey[T]) {
	if !s.worker.Submit(key) {
		s.expunge(key)
	}
}

// expunge removes the entry of a collected key.
// Collected keys compare equal to no live object,
// so the removal never races with a reachable key.
func (s *weakMap[T, V]) expunge(key IdentityKey[T]) {
	if old, loaded := s.entries.LoadAndDelete(key); loaded {
		old.cleanup.Stop()
		s.reclaimed.Inc()
		s.obs.reclaim()
		if s.onReclaim != nil {
			s.onReclaim()
		}
	}
}
