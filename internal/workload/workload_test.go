package workload_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djdv/go-assoc/internal/workload"
)

type mapCache map[int]int

func (m mapCache) Get(key int) (int, bool) {
	value, ok := m[key]
	return value, ok
}

func (m mapCache) Set(key, value int) { m[key] = value }

func TestNextPow2(t *testing.T) {
	for _, test := range []struct{ in, want int }{
		{-1, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {1000, 1024}, {1024, 1024},
	} {
		require.Equal(t, test.want, workload.NextPow2(test.in), "NextPow2(%d)", test.in)
	}
}

func TestPatterns(t *testing.T) {
	const capacity = 128
	for _, pattern := range workload.Patterns() {
		t.Run(pattern.Name, func(t *testing.T) {
			t.Parallel()
			var (
				r      = require.New(t)
				first  = pattern.Gen(capacity)
				second = pattern.Gen(capacity)
			)
			r.Equal(workload.NextPow2(len(first)), len(first), "length must be a power of two")
			r.Equal(first, second, "generators must be reproducible")
			found, ok := workload.Lookup(pattern.Name)
			r.True(ok)
			r.Equal(pattern.Name, found.Name)
		})
	}
	_, ok := workload.Lookup("no such pattern")
	require.False(t, ok)
}

func TestSequential(t *testing.T) {
	seq := workload.Sequential(3, 8)
	require.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1}, seq)
}

func TestLoopingHotRatio(t *testing.T) {
	const (
		capacity = 64
		universe = 1024
	)
	var (
		seq = workload.Looping(capacity, universe, 1<<14, 0.9)
		hot int
	)
	for _, key := range seq {
		require.Less(t, key, universe)
		if key < capacity {
			hot++
		}
	}
	ratio := float64(hot) / float64(len(seq))
	require.InDelta(t, 0.9, ratio, 0.02)
}

func TestReplay(t *testing.T) {
	var (
		r     = require.New(t)
		cache = mapCache{}
		seq   = workload.Sequential(4, 8)
	)
	result := workload.Replay(cache, seq, 16)
	r.Equal(int64(4), result.Misses)
	r.Equal(int64(12), result.Hits)
	r.InDelta(75.0, result.HitRate(), 0.001)
	r.Zero(workload.Result{}.HitRate())

	warmed := mapCache{}
	workload.WarmUp(warmed, seq)
	r.Len(warmed, 4)
}

type fallibleMap struct {
	mapCache
	err error
}

func (f fallibleMap) Get(key int) (int, bool, error) {
	value, ok := f.mapCache.Get(key)
	return value, ok, f.err
}

func (f fallibleMap) Put(key, value int) error {
	f.mapCache.Set(key, value)
	return f.err
}

func TestAdapt(t *testing.T) {
	var (
		r     = require.New(t)
		cache = workload.Adapt[int, int](fallibleMap{mapCache: make(mapCache)})
	)
	cache.Set(1, 2)
	value, ok := cache.Get(1)
	r.True(ok)
	r.Equal(2, value)
	broken := workload.Adapt[int, int](fallibleMap{
		mapCache: make(mapCache),
		err:      errors.New("invalid key"),
	})
	r.Panics(func() { broken.Get(1) })
	r.Panics(func() { broken.Set(1, 1) })
}
