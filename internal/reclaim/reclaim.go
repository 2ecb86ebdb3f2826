// Package reclaim runs a single background goroutine
// that drains a bounded queue of pending work items.
//
// Producers never block: [Worker.Submit] reports false when
// the queue is full or the worker has stopped, and the caller
// is expected to handle the item itself.
package reclaim

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/puzpuzpuz/xsync/v3"
	"vawter.tech/stopper"
)

type (
	// Worker applies a handler to every submitted item
	// on its own goroutine. Construct with [New].
	Worker[T any] struct {
		queue     *xsync.MPMCQueueOf[T]
		wake      chan struct{}
		handle    func(T)
		logger    log.Logger
		ctx       *stopper.Context
		processed *xsync.Counter
		panics    *xsync.Counter
		stopped   atomic.Bool
		closeOnce sync.Once
		closeErr  error
	}
	// Option configures a [Worker] during [New].
	Option  func(*options)
	options struct {
		logger    log.Logger
		name      string
		queueSize int
	}
)

const (
	// DefaultQueueSize bounds the number of pending items.
	DefaultQueueSize = 1024
	defaultGrace     = time.Second
)

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithName labels the worker's log lines.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithQueueSize sets the queue capacity.
// Values below 1 select [DefaultQueueSize].
func WithQueueSize(size int) Option {
	return func(o *options) { o.queueSize = size }
}

// New starts a worker that calls handle for each submitted item.
func New[T any](handle func(T), opts ...Option) *Worker[T] {
	settings := options{
		logger:    log.NewNopLogger(),
		name:      "reclaim",
		queueSize: DefaultQueueSize,
	}
	for _, apply := range opts {
		apply(&settings)
	}
	if settings.queueSize < 1 {
		settings.queueSize = DefaultQueueSize
	}
	w := &Worker[T]{
		queue:     xsync.NewMPMCQueueOf[T](settings.queueSize),
		wake:      make(chan struct{}, 1),
		handle:    handle,
		logger:    log.With(settings.logger, "worker", settings.name),
		ctx:       stopper.WithContext(context.Background()),
		processed: xsync.NewCounter(),
		panics:    xsync.NewCounter(),
	}
	w.ctx.Go(func(ctx *stopper.Context) error {
		return w.run(ctx)
	})
	return w
}

func (w *Worker[T]) run(ctx *stopper.Context) error {
	level.Debug(w.logger).Log("msg", "worker started")
	for {
		select {
		case <-w.wake:
			w.Drain()
			runtime.Gosched()
		case <-ctx.Stopping():
			w.Drain()
			level.Debug(w.logger).Log("msg", "worker stopped", "processed", w.processed.Value())
			return nil
		}
	}
}

// Submit enqueues item without blocking.
// It returns false if the queue is full or the worker is stopped.
func (w *Worker[T]) Submit(item T) bool {
	if w.stopped.Load() {
		return false
	}
	if !w.queue.TryEnqueue(item) {
		return false
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Drain synchronously handles every queued item on the calling
// goroutine and returns how many were handled.
// It may run concurrently with the worker goroutine.
func (w *Worker[T]) Drain() int {
	var handled int
	for {
		item, ok := w.queue.TryDequeue()
		if !ok {
			return handled
		}
		w.process(item)
		handled++
	}
}

func (w *Worker[T]) process(item T) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Inc()
			level.Error(w.logger).Log("msg", "handler panicked", "panic", r)
		}
		w.processed.Inc()
	}()
	w.handle(item)
}

// Processed returns the number of items handled so far,
// including those whose handler panicked.
func (w *Worker[T]) Processed() int64 { return w.processed.Value() }

// Panics returns the number of recovered handler panics.
func (w *Worker[T]) Panics() int64 { return w.panics.Value() }

// Stop signals the worker goroutine to drain and exit
// without waiting for it.
func (w *Worker[T]) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		w.ctx.Stop(defaultGrace)
	}
}

// Close stops the worker and waits for its goroutine to exit.
// It is safe to call more than once.
func (w *Worker[T]) Close() error {
	w.closeOnce.Do(func() {
		w.Stop()
		w.closeErr = w.ctx.Wait()
		w.Drain() // Items that raced with Stop.
	})
	return w.closeErr
}
