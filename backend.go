package assoc

import (
	"fmt"
	"strings"

	"github.com/djdv/go-assoc/internal/clock"
)

type (
	// Backend identifies the implementation behind a [BoundedCache].
	Backend int
	// Capabilities is the set of backends available for selection.
	// Narrowing it simulates an environment without a library.
	Capabilities uint8
)

// Backends in order of preference.
const (
	// BackendOtter is a W-TinyLFU cache from github.com/maypok86/otter/v2.
	BackendOtter Backend = iota + 1
	// BackendLRU2 is github.com/hashicorp/golang-lru/v2,
	// or its ARC variant when adaptive replacement is requested.
	BackendLRU2
	// BackendLRU1 is the pre-generics github.com/hashicorp/golang-lru.
	BackendLRU1
	// BackendClock is the in-tree CLOCK-Pro+ cache.
	BackendClock
	// BackendWeakMap is the unbounded fallback.
	// It is always available.
	BackendWeakMap
)

const (
	CapOtter Capabilities = 1 << iota
	CapLRU2
	CapLRU1
	CapClock
)

var backendNames = [...]string{
	BackendOtter:   "otter",
	BackendLRU2:    "lru2",
	BackendLRU1:    "lru1",
	BackendClock:   "clock",
	BackendWeakMap: "weakmap",
}

// String returns the name used in config, logs and metric labels.
func (b Backend) String() string {
	if b >= BackendOtter && b <= BackendWeakMap {
		return backendNames[b]
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend returns the backend named s, as printed by [Backend.String].
func ParseBackend(s string) (Backend, error) {
	for b := BackendOtter; b <= BackendWeakMap; b++ {
		if strings.EqualFold(s, backendNames[b]) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown backend %q", s)
}

// capability returns the capability b requires.
// The fallback requires none.
func (b Backend) capability() Capabilities {
	switch b {
	case BackendOtter:
		return CapOtter
	case BackendLRU2:
		return CapLRU2
	case BackendLRU1:
		return CapLRU1
	case BackendClock:
		return CapClock
	default:
		return 0
	}
}

// DefaultCapabilities reports every backend compiled into this package.
func DefaultCapabilities() Capabilities {
	return CapOtter | CapLRU2 | CapLRU1 | CapClock
}

// Has reports whether every capability in want is present.
func (c Capabilities) Has(want Capabilities) bool { return c&want == want }

// Without returns c minus drop.
func (c Capabilities) Without(drop Capabilities) Capabilities { return c &^ drop }

// plan returns the backends to try, most preferred first.
// It depends only on its arguments and always ends with [BackendWeakMap].
func plan(caps Capabilities, maximumSize int, adaptive bool) []Backend {
	ladder := make([]Backend, 0, 5)
	if caps.Has(CapOtter) && !adaptive {
		ladder = append(ladder, BackendOtter)
	}
	if maximumSize > 0 {
		if caps.Has(CapLRU2) {
			ladder = append(ladder, BackendLRU2)
		}
		if caps.Has(CapLRU1) {
			ladder = append(ladder, BackendLRU1)
		}
		if caps.Has(CapClock) && maximumSize >= clock.MinimumCapacity {
			ladder = append(ladder, BackendClock)
		}
	}
	return append(ladder, BackendWeakMap)
}
