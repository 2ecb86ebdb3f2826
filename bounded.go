package assoc

import (
	"runtime"
	"weak"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/puzpuzpuz/xsync/v3"
)

type (
	// BoundedCache is a [Cache] over the backend chosen by a
	// [CacheBuilder]. Eviction policy, and whether ComputeIfAbsent
	// may call fn more than once for a key, depend on [BoundedCache.Backend]:
	// every backend but [BackendWeakMap] computes at most once per key.
	BoundedCache[K comparable, V any] struct {
		core *boundedCore[K, V]
	}
	boundedCore[K comparable, V any] struct {
		shim      shim
		executor  Executor
		owned     *workerExecutor
		obs       *observer
		logger    log.Logger
		tracked   *xsync.MapOf[IdentityKey[byte], runtime.Cleanup]
		codec     codec[K, V]
		backend   Backend
		trackKeys bool
	}
	// valueRef is a weakly held value under its stored key.
	valueRef struct {
		key any
		ref weak.Pointer[byte]
	}
)

// Get returns the value for key. A weak value that has
// been collected reads as absent and is removed.
func (c *BoundedCache[K, V]) Get(key K) (V, bool, error) {
	var (
		zero V
		core = c.core
	)
	stored, err := core.codec.encodeKey("get", key)
	if err != nil {
		return zero, false, err
	}
	defer runtime.KeepAlive(key)
	raw, ok := core.shim.get(stored)
	if !ok {
		core.obs.lookup(false)
		return zero, false, nil
	}
	value, live := core.codec.decodeValue(raw)
	if !live {
		core.expungeValue(stored, raw)
		core.obs.lookup(false)
		return zero, false, nil
	}
	core.obs.lookup(true)
	return value, true, nil
}

// Put stores value for key, replacing any previous value.
func (c *BoundedCache[K, V]) Put(key K, value V) error {
	core := c.core
	stored, err := core.codec.encodeKey("put", key)
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(key)
	encoded, referent := core.codec.encodeValue(value)
	core.shim.put(stored, encoded)
	core.watchValue(stored, encoded, referent)
	core.trackKey(key, stored)
	return nil
}

// Remove drops the entry for key.
func (c *BoundedCache[K, V]) Remove(key K) error {
	core := c.core
	stored, err := core.codec.encodeKey("remove", key)
	if err != nil {
		return err
	}
	core.shim.remove(stored)
	runtime.KeepAlive(key)
	return nil
}

// ComputeIfAbsent returns the value for key, calling fn to
// create and store it if absent. If fn returns an error or
// panics, nothing is stored.
func (c *BoundedCache[K, V]) ComputeIfAbsent(key K, fn func(K) (V, error)) (V, error) {
	var (
		zero V
		core = c.core
	)
	stored, err := core.codec.encodeKey("compute if absent", key)
	if err != nil {
		return zero, err
	}
	defer runtime.KeepAlive(key)
	for {
		var (
			computed V
			referent *byte
		)
		raw, fresh, err := core.shim.compute(stored, func() (any, error) {
			value, err := fn(key)
			if err != nil {
				return nil, err
			}
			computed = value
			encoded, p := core.codec.encodeValue(value)
			referent = p
			return encoded, nil
		})
		if err != nil {
			return zero, err
		}
		if fresh {
			core.watchValue(stored, raw, referent)
			core.trackKey(key, stored)
			core.obs.lookup(false)
			return computed, nil
		}
		if value, live := core.codec.decodeValue(raw); live {
			core.obs.lookup(true)
			return value, nil
		}
		// Stored value was collected; replace it.
		core.expungeValue(stored, raw)
	}
}

// Cleanup runs pending maintenance and invalidations synchronously
// when the executor is the default one.
func (c *BoundedCache[K, V]) Cleanup() {
	core := c.core
	core.drain()
	core.shim.cleanup()
	core.drain()
}

// Size returns the approximate number of entries.
func (c *BoundedCache[K, V]) Size() int { return c.core.shim.size() }

// Backend returns the backend selected at build time.
func (c *BoundedCache[K, V]) Backend() Backend { return c.core.backend }

// Close stops the default executor, if one was created.
// The cache remains usable; maintenance then runs inline.
func (c *BoundedCache[K, V]) Close() error {
	core := c.core
	err := core.shim.close()
	if core.owned != nil {
		if closeErr := core.owned.close(); err == nil {
			err = closeErr
		}
	}
	level.Debug(core.logger).Log("msg", "cache closed", "backend", core.backend, "size", core.shim.size())
	return err
}

func (c *boundedCore[K, V]) drain() {
	if c.owned != nil {
		c.owned.drain()
	}
}

// trackKey registers a weak key for reclamation once.
// The registration lasts as long as the key object,
// even if the entry is evicted or removed first.
func (c *boundedCore[K, V]) trackKey(key K, stored any) {
	if !c.trackKeys {
		return
	}
	id := stored.(IdentityKey[byte])
	c.tracked.LoadOrCompute(id, func() runtime.Cleanup {
		return runtime.AddCleanup(rawPointer(key), c.keyCollected, id)
	})
}

// keyCollected runs on the runtime's cleanup goroutine.
func (c *boundedCore[K, V]) keyCollected(id IdentityKey[byte]) {
	c.executor.Execute(func() {
		c.tracked.Delete(id)
		if c.shim.remove(id) {
			c.obs.reclaim()
		}
	})
}

func (c *boundedCore[K, V]) watchValue(key, encoded any, referent *byte) {
	if referent == nil {
		return
	}
	ref := valueRef{key: key, ref: encoded.(weak.Pointer[byte])}
	runtime.AddCleanup(referent, c.valueCollected, ref)
}

// valueCollected runs on the runtime's cleanup goroutine.
func (c *boundedCore[K, V]) valueCollected(ref valueRef) {
	c.executor.Execute(func() { c.expungeRef(ref) })
}

func (c *boundedCore[K, V]) expungeValue(key, stale any) {
	if ref, ok := stale.(weak.Pointer[byte]); ok {
		c.expungeRef(valueRef{key: key, ref: ref})
	}
}

// expungeRef removes key only while it still maps to ref,
// so a newer value stored under key survives.
func (c *boundedCore[K, V]) expungeRef(ref valueRef) {
	removed := c.shim.removeIf(ref.key, func(value any) bool {
		current, ok := value.(weak.Pointer[byte])
		return ok && current == ref.ref
	})
	if removed {
		c.obs.reclaim()
	}
}
