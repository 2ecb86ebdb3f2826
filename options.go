package assoc

import (
	"github.com/go-kit/log"

	"github.com/djdv/go-assoc/internal/reclaim"
)

type (
	// Option configures a [WeakMap], [Store] or [Field].
	Option  func(*options)
	options struct {
		logger    log.Logger
		metrics   *Metrics
		name      string
		queueSize int
		// onReclaim, if set, is called for each reclaimed entry.
		onReclaim func()
		// erasedKeys marks maps whose key type stands in
		// for another, already checked, type.
		erasedKeys bool
	}
)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics reports lookups and reclamations to metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithName labels log lines and metric series.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithQueueSize bounds the reclamation queue.
// When it is full, reclamation happens inline.
func WithQueueSize(size int) Option {
	return func(o *options) { o.queueSize = size }
}

func withReclaimHook(hook func()) Option {
	return func(o *options) { o.onReclaim = hook }
}

func withErasedKeys() Option {
	return func(o *options) { o.erasedKeys = true }
}

func makeOptions(opts []Option) options {
	settings := options{
		logger:    log.NewNopLogger(),
		name:      "default",
		queueSize: reclaim.DefaultQueueSize,
	}
	for _, apply := range opts {
		apply(&settings)
	}
	if settings.logger == nil {
		settings.logger = log.NewNopLogger()
	}
	return settings
}
