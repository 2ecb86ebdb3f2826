// Package assoc associates data with objects by identity
// without extending their lifetime.
//
// Two families of store are provided.
//
//   - Identity stores
//
//     [WeakMap], [Store] and [Field] key entries by object address.
//     Two distinct objects are always distinct keys, even if they are
//     equal by value. A key object is never kept alive by the store;
//     once it is collected its entry is removed in the background
//     by a per-map reclamation worker. Key types must hold a pointer
//     or span at least 16 bytes; see [IdentityKey].
//
//   - Bounded caches
//
//     [BoundedCache] holds at most a configured number of entries,
//     evicting by the policy of the backend chosen at build time.
//     Keys use ordinary equality unless [CacheBuilder.WeakKeys] is set.
//
// Backend selection:
//
// [CacheBuilder.Build] walks a fixed ladder of backends and uses the
// first one that both fits the requested settings and can be constructed.
//
//  1. otter (W-TinyLFU), skipped when adaptive replacement is requested.
//  2. golang-lru v2, or its ARC variant when adaptive.
//  3. golang-lru v1.
//  4. CLOCK-Pro+.
//  5. An unbounded map, which is always available.
//
// Bounded backends require a positive maximum size.
// The selection only depends on the builder settings and
// the [Capabilities] it was given, so it is repeatable.
//
// Concurrency:
//
// Every type is safe for concurrent use. No lock is held
// while a caller supplied function runs. [Store.ComputeIfAbsent]
// may therefore call its function more than once when racing,
// keeping exactly one result. Bounded backends other than the
// fallback map call it at most once per absent key.
package assoc
