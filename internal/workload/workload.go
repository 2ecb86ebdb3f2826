// Package workload generates reproducible key access sequences
// and replays them against a cache to measure its hit ratio.
package workload

import (
	"math/bits"
	"math/rand"
)

type (
	// Cache is the subset of cache operations a replay needs.
	Cache[Key comparable, Value any] interface {
		Get(Key) (Value, bool)
		Set(Key, Value)
	}
	// Generator returns an access sequence tuned for capacity.
	// The sequence length is always a power of two
	// so callers may index it with a mask.
	Generator = func(capacity int) []int
	// Pattern is a named [Generator].
	Pattern struct {
		Name string
		Gen  Generator
	}
	// Result tallies the outcome of a [Replay].
	Result struct {
		Hits, Misses int64
	}
	// Fallible is a cache whose operations report errors,
	// such as the association caches.
	Fallible[Key comparable, Value any] interface {
		Get(Key) (Value, bool, error)
		Put(Key, Value) error
	}
	// adapter panics on errors; replayed keys are never invalid.
	adapter[Key comparable, Value any] struct {
		cache Fallible[Key, Value]
	}
)

// Seed is the fixed RNG seed used by every generator.
// Change it to test variance between runs.
const Seed = 1

// Patterns returns the standard set of access patterns.
func Patterns() []Pattern {
	return []Pattern{
		{
			"Sequential scan",
			func(int) []int {
				const (
					universe = 1 << 16 // Key space large enough to force misses.
					seqLen   = 1 << 15
				)
				return Sequential(universe, seqLen)
			},
		},
		{
			"Loop working set",
			func(capacity int) []int {
				const (
					universe = 8192
					seqLen   = 1 << 16
					hotRatio = 0.9 // 90% of accesses hit hot set.
				)
				return Looping(capacity, universe, seqLen, hotRatio)
			},
		},
		{
			"Zipf",
			func(int) []int {
				const (
					universe = 16384
					seqLen   = 1 << 16
					skew     = 1.2
					bias     = 1.0
				)
				return Zipf(universe, seqLen, skew, bias)
			},
		},
		{
			"Uniform random",
			func(capacity int) []int {
				const seqLen = 1 << 16
				return Uniform(NewRNG(), capacity*4, NextPow2(seqLen))
			},
		},
	}
}

// Lookup returns the pattern with the given name.
func Lookup(name string) (Pattern, bool) {
	for _, pattern := range Patterns() {
		if pattern.Name == name {
			return pattern, true
		}
	}
	return Pattern{}, false
}

// Sequential cycles through the first universe keys.
func Sequential(universe, seqLen int) []int {
	seq := make([]int, NextPow2(seqLen))
	for i := range seq {
		seq[i] = i % universe
	}
	return seq
}

// Looping sends hotRatio of accesses to a working set
// the size of capacity and the rest to the remaining universe.
func Looping(capacity, universe, seqLen int, hotRatio float64) []int {
	var (
		seq      = make([]int, NextPow2(seqLen))
		rng      = NewRNG()
		hotSize  = max(1, capacity)
		coldSize = max(1, universe-hotSize)
	)
	for i := range seq {
		if rng.Float64() < hotRatio {
			seq[i] = rng.Intn(hotSize)
		} else {
			seq[i] = hotSize + rng.Intn(coldSize)
		}
	}
	return seq
}

// Zipf draws keys from a Zipf distribution over universe.
func Zipf(universe, seqLen int, skew, bias float64) []int {
	var (
		seq  = make([]int, NextPow2(seqLen))
		rng  = NewRNG()
		imax = uint64(max(universe, 2) - 1)
		zipf = rand.NewZipf(rng, skew, bias, imax)
	)
	for i := range seq {
		seq[i] = int(zipf.Uint64())
	}
	return seq
}

// Uniform returns count keys drawn uniformly from [0, upperBound).
func Uniform(rng *rand.Rand, upperBound, count int) []int {
	keys := make([]int, count)
	for i := range keys {
		keys[i] = rng.Intn(max(upperBound, 1))
	}
	return keys
}

// Adapt returns a [Cache] view of cache that panics on error.
func Adapt[Key comparable, Value any](cache Fallible[Key, Value]) Cache[Key, Value] {
	return adapter[Key, Value]{cache: cache}
}

func (a adapter[Key, Value]) Get(key Key) (Value, bool) {
	value, ok, err := a.cache.Get(key)
	if err != nil {
		panic(err)
	}
	return value, ok
}

func (a adapter[Key, Value]) Set(key Key, value Value) {
	if err := a.cache.Put(key, value); err != nil {
		panic(err)
	}
}

// WarmUp populates the cache by replaying seq once.
func WarmUp(cache Cache[int, int], seq []int) {
	for _, key := range seq {
		if _, ok := cache.Get(key); !ok {
			cache.Set(key, key)
		}
	}
}

// Replay performs n lookups over seq (wrapping as needed),
// inserting every missed key.
func Replay(cache Cache[int, int], seq []int, n int) Result {
	var (
		result  Result
		seqMask = len(seq) - 1
	)
	for i := range n {
		key := seq[i&seqMask]
		if _, ok := cache.Get(key); ok {
			result.Hits++
		} else {
			result.Misses++
			cache.Set(key, key)
		}
	}
	return result
}

// HitRate returns hits as a percentage of all accesses.
func (r Result) HitRate() float64 {
	total := r.Hits + r.Misses
	if total == 0 {
		return 0
	}
	return float64(r.Hits) / float64(total) * 100.0
}

// NextPow2 rounds x up to a power of two.
func NextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(x)-1)
}

// NewRNG returns a generator seeded with [Seed].
func NewRNG() *rand.Rand {
	return rand.New(rand.NewSource(Seed))
}
