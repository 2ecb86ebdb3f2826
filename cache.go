package assoc

// Cache is the interface shared by [Store] and [BoundedCache].
type Cache[K comparable, V any] interface {
	// Get returns the value for key, if present.
	Get(key K) (V, bool, error)
	// Put associates value with key, replacing any previous value.
	Put(key K, value V) error
	// Remove drops the value for key. Removing an absent key is not an error.
	Remove(key K) error
	// ComputeIfAbsent returns the value for key, calling fn
	// to create it if absent. If fn fails, nothing is stored
	// and its error is returned.
	ComputeIfAbsent(key K, fn func(K) (V, error)) (V, error)
	// Size returns the approximate number of entries.
	Size() int
	// Cleanup performs pending maintenance synchronously.
	Cleanup()
	// Close releases background resources.
	Close() error
}

var (
	_ Cache[*struct{}, int] = (*Store[struct{}, int])(nil)
	_ Cache[string, int]    = (*BoundedCache[string, int])(nil)
)
