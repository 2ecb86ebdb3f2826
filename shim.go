package assoc

import (
	"github.com/go-kit/log"
	"tailscale.com/util/singleflight"
)

type (
	// shim adapts one backend library to the facade.
	// Keys and values arrive already encoded by the codec.
	shim interface {
		get(key any) (any, bool)
		put(key, value any)
		remove(key any) bool
		// removeIf removes key if its current value satisfies match.
		removeIf(key any, match func(value any) bool) bool
		// compute returns the value for key, storing the result of fn
		// if absent. stored reports whether the returned value
		// came from this caller's fn.
		compute(key any, fn func() (any, error)) (value any, stored bool, err error)
		size() int
		cleanup()
		close() error
	}
	shimConfig struct {
		executor    Executor
		logger      log.Logger
		evicted     func()
		reclaimed   func()
		name        string
		maximumSize int
		adaptive    bool
		weakKeys    bool
	}
	opener func(shimConfig) (shim, error)
)

// openers construct each backend.
var openers = map[Backend]opener{
	BackendOtter:   openOtter,
	BackendLRU2:    openLRU2,
	BackendLRU1:    openLRU1,
	BackendClock:   openClock,
	BackendWeakMap: openMap,
}

// computeOnce gives a backend without its own atomic
// get-or-create one, using a per-key flight.
// A panic in fn reaches every caller waiting on key.
func computeOnce(
	group *singleflight.Group[any, any], key any,
	peek func(any) (any, bool), add func(any, any),
	fn func() (any, error),
) (any, bool, error) {
	var stored bool
	value, err, _ := group.Do(key, func() (any, error) {
		if value, ok := peek(key); ok {
			return value, nil
		}
		value, err := fn()
		if err != nil {
			return nil, err
		}
		add(key, value)
		stored = true
		return value, nil
	})
	return value, stored, err
}
