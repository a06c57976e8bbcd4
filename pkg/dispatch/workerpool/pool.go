package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/coalesce/pkg/common/validation"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result describes a finished task.
type Result struct {
	Task     Task
	Error    error
	Duration time.Duration
	WorkerID int
}

// Pool is a fixed set of goroutines shared by many serial queues.
type Pool interface {
	// Submit blocks until a worker or a queue slot accepts the task.
	Submit(task Task) error

	// SubmitWithContext is Submit bounded by ctx.
	SubmitWithContext(ctx context.Context, task Task) error

	// TrySubmit hands the task to an idle worker without queueing.
	// It reports false when every worker is busy or the pool is shut down.
	TrySubmit(task Task) bool

	// Shutdown stops accepting tasks and returns a channel closed once
	// queued tasks have finished and all workers exited.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the number of queued tasks waiting for a worker.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks accepted by the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks that finished.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool. Must be greater than 0.
	WorkerCount int

	// QueueSize bounds the number of tasks waiting for a worker.
	// Zero means tasks are handed directly to a worker.
	QueueSize int

	// PanicHandler, when set, recovers panics raised by tasks.
	// When nil a panicking task crashes the process like any goroutine panic.
	PanicHandler func(task Task, recovered interface{})

	// OnTaskComplete is called after a task returns.
	OnTaskComplete func(result Result)

	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger
}

type workerPool struct {
	config Config
	logger zerolog.Logger

	taskQueue    chan Task
	handoff      chan Task
	shutdownCh   chan struct{} // unblocks pending Submit calls
	stopCh       chan struct{} // closed once no Submit can be in flight
	shutdownOnce sync.Once
	done         chan struct{}

	mu         sync.RWMutex
	isShutdown bool

	activeWorkers  atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	workerWg sync.WaitGroup
}

type worker struct {
	id   int
	pool *workerPool
}

// New creates a new worker pool with the specified number of workers and queue size.
// It panics on invalid arguments; use NewSafe to get an error instead.
func New(workerCount, queueSize int) Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
// It panics on invalid configuration.
func NewWithConfig(config Config) Pool {
	pool, err := NewWithConfigSafe(config)
	if err != nil {
		panic(err)
	}
	return pool
}

// NewSafe is New returning a validation error instead of panicking.
func NewSafe(workerCount, queueSize int) (Pool, error) {
	return NewWithConfigSafe(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfigSafe validates config and starts the workers.
func NewWithConfigSafe(config Config) (Pool, error) {
	if err := validation.ValidatePositive("workerpool", "workers", config.WorkerCount); err != nil {
		return nil, err
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	pool := &workerPool{
		config:     config,
		logger:     logger,
		taskQueue:  make(chan Task, config.QueueSize),
		handoff:    make(chan Task),
		shutdownCh: make(chan struct{}),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	return pool, nil
}
