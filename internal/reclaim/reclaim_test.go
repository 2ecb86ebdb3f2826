package reclaim_test

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/djdv/go-assoc/internal/reclaim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorker(t *testing.T) {
	t.Run("handles submitted items", handlesItems)
	t.Run("recovers panics", recoversPanics)
	t.Run("full queue", fullQueue)
	t.Run("closed", closed)
	t.Run("drain", drain)
}

func handlesItems(t *testing.T) {
	var (
		r      = require.New(t)
		sum    atomic.Int64
		worker = reclaim.New(func(n int64) { sum.Add(n) })
	)
	for i := range int64(100) {
		r.True(worker.Submit(i + 1))
	}
	r.Eventually(func() bool {
		return worker.Processed() == 100
	}, 5*time.Second, time.Millisecond)
	r.Equal(int64(5050), sum.Load())
	r.NoError(worker.Close())
}

func recoversPanics(t *testing.T) {
	var (
		r      = require.New(t)
		buf    bytes.Buffer
		logger = log.NewLogfmtLogger(log.NewSyncWriter(&buf))
		worker = reclaim.New(func(n int) {
			if n%2 == 0 {
				panic("even")
			}
		}, reclaim.WithLogger(logger), reclaim.WithName("panicky"))
	)
	for i := range 10 {
		r.True(worker.Submit(i))
	}
	r.Eventually(func() bool {
		return worker.Processed() == 10
	}, 5*time.Second, time.Millisecond)
	r.NoError(worker.Close())
	r.Equal(int64(5), worker.Panics())
	r.Contains(buf.String(), "handler panicked")
	r.Contains(buf.String(), "worker=panicky")
}

func fullQueue(t *testing.T) {
	var (
		r       = require.New(t)
		release = make(chan struct{})
		started = make(chan struct{})
		once    sync.Once
		worker  = reclaim.New(func(int) {
			once.Do(func() { close(started) })
			<-release
		}, reclaim.WithQueueSize(1))
	)
	r.True(worker.Submit(0))
	<-started // The worker is now blocked holding item 0.
	r.True(worker.Submit(1))
	r.False(worker.Submit(2), "queue of one should be full")
	close(release)
	r.NoError(worker.Close())
	r.Equal(int64(2), worker.Processed())
}

func closed(t *testing.T) {
	r := require.New(t)
	worker := reclaim.New(func(int) {})
	r.NoError(worker.Close())
	r.NoError(worker.Close(), "Close must be idempotent")
	r.False(worker.Submit(1))
}

func drain(t *testing.T) {
	var (
		r      = require.New(t)
		mu     sync.Mutex
		seen   []int
		worker = reclaim.New(func(n int) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, n)
		})
	)
	defer func() { r.NoError(worker.Close()) }()
	for i := range 8 {
		r.True(worker.Submit(i))
	}
	worker.Drain()
	// The worker goroutine may have taken some items, but once
	// Drain returns the queue is empty and every item is in flight or done.
	r.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 8
	}, 5*time.Second, time.Millisecond)
	r.ElementsMatch([]int{0, 1, 2, 3, 4, 5, 6, 7}, seen)
}
