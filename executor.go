package assoc

import (
	"github.com/go-kit/log"

	"github.com/djdv/go-assoc/internal/reclaim"
)

type (
	// Executor runs units of cache maintenance work,
	// such as invalidating entries whose key was collected.
	// Execute must not block for long; it may run task inline.
	Executor interface {
		Execute(task func())
	}
	// ExecutorFunc adapts a function to [Executor].
	ExecutorFunc func(task func())

	// workerExecutor is the default, owned by the cache that created it.
	workerExecutor struct {
		worker *reclaim.Worker[func()]
	}
)

// InlineExecutor runs every task on the calling goroutine.
var InlineExecutor = ExecutorFunc(func(task func()) { task() })

// Execute calls fn(task).
func (fn ExecutorFunc) Execute(task func()) { fn(task) }

func newWorkerExecutor(name string, logger log.Logger) *workerExecutor {
	return &workerExecutor{
		worker: reclaim.New(runTask,
			reclaim.WithLogger(logger),
			reclaim.WithName(name+"-executor"),
		),
	}
}

func runTask(task func()) { task() }

// Execute queues task, running it inline if the queue is full
// or the worker has stopped.
func (e *workerExecutor) Execute(task func()) {
	if !e.worker.Submit(task) {
		task()
	}
}

func (e *workerExecutor) drain() { e.worker.Drain() }

func (e *workerExecutor) close() error { return e.worker.Close() }
