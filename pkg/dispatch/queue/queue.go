package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	cctx "github.com/vnykmshr/coalesce/pkg/common/context"
	cerrors "github.com/vnykmshr/coalesce/pkg/common/errors"
	"github.com/vnykmshr/coalesce/pkg/dispatch/workerpool"
	"github.com/vnykmshr/coalesce/pkg/metrics"
)

// Func is a unit of work run on a queue. ctx proves that the queue is held
// while Func runs; pass it on to Sync or Synchronized accesses made from
// inside the work so they run inline instead of deadlocking.
type Func func(ctx context.Context)

// Queue is a strictly serial execution context: work submitted to it runs
// one item at a time, in submission order.
type Queue interface {
	// Label identifies the queue in logs and metrics.
	Label() string

	// Async enqueues fn and returns immediately.
	Async(fn Func) error

	// Sync runs fn with exclusive access to the queue and waits for it.
	// If ctx shows the caller already holds the queue, fn runs inline.
	Sync(ctx context.Context, fn Func) error

	// After schedules fn to be enqueued once delay has elapsed.
	After(delay time.Duration, fn Func) *Work

	// Holds reports whether ctx was handed out by this queue.
	Holds(ctx context.Context) bool
}

// Config holds configuration options for a Serial queue.
type Config struct {
	// Label names the queue. Defaults to "queue.<uuid>".
	Label string

	// Pool, when set, runs drains on a shared worker pool. A drain falls
	// back to its own goroutine when no worker is idle.
	Pool workerpool.Pool

	// Clock drives delayed work. Defaults to clockz.RealClock.
	Clock clockz.Clock

	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics records executed items and queue depth. Nil disables metrics.
	Metrics *metrics.Registry
}

type holdKey struct{ q *Serial }

type item struct {
	ctx context.Context
	fn  Func
}

// Serial is a FIFO queue drained by at most one goroutine at a time.
// No goroutine is kept alive while the queue is empty.
type Serial struct {
	label   string
	pool    workerpool.Pool
	clock   clockz.Clock
	logger  zerolog.Logger
	metrics *metrics.Registry
	held    context.Context

	mu       sync.Mutex
	items    []item
	draining bool
	closed   bool
	idle     chan struct{}
	idleOnce sync.Once
}

// New creates a serial queue with the given label.
func New(label string) *Serial {
	return NewWithConfig(Config{Label: label})
}

// NewWithConfig creates a serial queue with custom configuration.
func NewWithConfig(cfg Config) *Serial {
	label := cfg.Label
	if label == "" {
		label = "queue." + uuid.NewString()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("queue", label).Logger()

	q := &Serial{
		label:   label,
		pool:    cfg.Pool,
		clock:   clock,
		logger:  logger,
		metrics: cfg.Metrics,
		idle:    make(chan struct{}),
	}
	q.held = context.WithValue(context.Background(), holdKey{q}, struct{}{})
	return q
}

// Label returns the queue label.
func (q *Serial) Label() string {
	return q.label
}

// Clock returns the clock driving delayed work.
func (q *Serial) Clock() clockz.Clock {
	return q.clock
}

// Holds reports whether ctx was handed out by this queue to work it is running.
func (q *Serial) Holds(ctx context.Context) bool {
	return ctx != nil && ctx.Value(holdKey{q}) != nil
}

// Len returns the number of items waiting to run.
func (q *Serial) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Async enqueues fn. It fails with errors.ErrClosed after Shutdown.
func (q *Serial) Async(fn Func) error {
	if fn == nil {
		return nil
	}
	return q.enqueue(item{ctx: q.held, fn: fn}, "Async")
}

const (
	syncPending int32 = iota
	syncRunning
	syncAbandoned
)

// Sync runs fn with exclusive access to the queue and blocks until it returns.
//
// When ctx already holds the queue fn runs inline on the calling goroutine.
// Otherwise the caller waits for its turn; if ctx is cancelled before fn
// starts, fn is skipped and ctx.Err() is returned. A panic raised by fn is
// re-raised on the caller.
func (q *Serial) Sync(ctx context.Context, fn Func) error {
	ctx = cctx.OrBackground(ctx)
	if fn == nil {
		return nil
	}
	if q.Holds(ctx) {
		fn(ctx)
		return nil
	}
	if cctx.IsCanceled(ctx) {
		return ctx.Err()
	}

	var (
		mu        sync.Mutex
		state     = syncPending
		done      = make(chan struct{})
		panicked  bool
		recovered interface{}
	)
	claim := func(from, to int32) bool {
		mu.Lock()
		defer mu.Unlock()
		if state != from {
			return false
		}
		state = to
		return true
	}

	held := context.WithValue(ctx, holdKey{q}, struct{}{})
	err := q.enqueue(item{ctx: held, fn: func(ctx context.Context) {
		if !claim(syncPending, syncRunning) {
			return
		}
		completed := false
		defer func() {
			if !completed {
				panicked = true
				recovered = recover()
			}
			close(done)
		}()
		fn(ctx)
		completed = true
	}}, "Sync")
	if err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		if claim(syncPending, syncAbandoned) {
			return ctx.Err()
		}
		<-done
	}
	if panicked {
		panic(recovered)
	}
	return nil
}

// Shutdown stops accepting work. Items already queued still run; the
// returned channel is closed once the queue has drained.
func (q *Serial) Shutdown() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.logger.Debug().Int("pending", len(q.items)).Msg("queue shutting down")
		if !q.draining {
			q.signalIdleLocked()
		}
	}
	return q.idle
}

// Closed reports whether Shutdown has been called.
func (q *Serial) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Serial) enqueue(it item, op string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Debug().Str("op", op).Msg("rejected work on closed queue")
		return cerrors.NewOperationError("queue", op, cerrors.ErrClosed).WithContext("label=" + q.label)
	}
	q.items = append(q.items, it)
	depth := len(q.items)
	start := !q.draining
	q.draining = true
	q.mu.Unlock()

	q.reportDepth(depth)
	if start {
		q.startDrain()
	}
	return nil
}

func (q *Serial) startDrain() {
	if q.pool != nil && q.pool.TrySubmit(workerpool.TaskFunc(func(context.Context) error {
		q.drain()
		return nil
	})) {
		return
	}
	go q.drain()
}

func (q *Serial) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			if q.closed {
				q.signalIdleLocked()
			}
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.items[0] = item{}
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()

		q.reportDepth(depth)
		q.run(it)
	}
}

// run executes one item. If it panics, the remaining items are handed to a
// new drain before the panic continues unwinding.
func (q *Serial) run(it item) {
	completed := false
	defer func() {
		if completed {
			return
		}
		q.mu.Lock()
		restart := len(q.items) > 0
		q.draining = restart
		if !restart && q.closed {
			q.signalIdleLocked()
		}
		q.mu.Unlock()
		if restart {
			q.startDrain()
		}
	}()

	it.fn(it.ctx)
	completed = true

	if q.metrics != nil {
		q.metrics.QueueExecuted.WithLabelValues(q.label).Inc()
	}
}

func (q *Serial) signalIdleLocked() {
	q.idleOnce.Do(func() { close(q.idle) })
}

func (q *Serial) reportDepth(depth int) {
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues(q.label).Set(float64(depth))
	}
}
