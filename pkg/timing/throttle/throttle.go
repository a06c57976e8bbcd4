package throttle

import (
	"context"
	"runtime"
	"sync"
	"time"
	"weak"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
	"github.com/vnykmshr/coalesce/pkg/dispatch/slot"
	"github.com/vnykmshr/coalesce/pkg/metrics"
)

// DefaultInterval is the minimum spacing used by the timing profiles when
// none is configured.
const DefaultInterval = 300 * time.Millisecond

// DefaultName labels metrics and logs of throttlers created without a name.
const DefaultName = "default"

// Config holds configuration options for a Throttler.
type Config struct {
	// Queue runs the throttled tasks. Defaults to queue.Main().
	Queue queue.Queue

	// Clock measures the time since the last execution. Defaults to the
	// queue's clock when it exposes one, otherwise clockz.RealClock.
	Clock clockz.Clock

	// Name labels metrics and log lines. Defaults to DefaultName.
	Name string

	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics records scheduled and fired tasks and the applied delay.
	// Nil disables metrics.
	Metrics *metrics.Registry
}

// Throttler runs tasks at most once per interval while still running them
// periodically during sustained activity. Within an interval the latest task
// wins. Tasks always run asynchronously on the Throttler's queue.
//
// Pending work does not keep the Throttler alive. If the Throttler becomes
// unreachable before its task fires, the task is dropped without running.
type Throttler struct {
	q       queue.Queue
	clock   clockz.Clock
	name    string
	logger  zerolog.Logger
	metrics *metrics.Registry
	slot    *slot.Slot[func()]

	// mu orders scheduling against firing: it is held while the delay is
	// computed and the slot replaced, and while a firing claims the slot and
	// records its time. Always taken before the slot's own lock.
	mu   sync.Mutex
	last time.Time
}

// New creates a Throttler that runs tasks on q. A nil q selects queue.Main().
func New(q queue.Queue) *Throttler {
	return NewWithConfig(Config{Queue: q})
}

// NewWithConfig creates a Throttler with custom configuration.
func NewWithConfig(cfg Config) *Throttler {
	q := cfg.Queue
	if q == nil {
		q = queue.Main()
	}
	clock := cfg.Clock
	if clock == nil {
		if c, ok := q.(interface{ Clock() clockz.Clock }); ok {
			clock = c.Clock()
		} else {
			clock = clockz.RealClock
		}
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	t := &Throttler{
		q:       q,
		clock:   clock,
		name:    name,
		logger:  logger.With().Str("throttler", name).Logger(),
		metrics: cfg.Metrics,
		slot:    new(slot.Slot[func()]),
	}
	runtime.AddCleanup(t, func(s *slot.Slot[func()]) { s.Cancel() }, t.slot)
	return t
}

// Throttle replaces any pending task with task and schedules it so that it
// runs no sooner than maxInterval after the previous execution. The first
// task after construction runs as soon as the queue allows. Negative
// intervals count as zero. A nil task only aborts the pending one.
func (t *Throttler) Throttle(maxInterval time.Duration, task func()) {
	if task == nil {
		t.Abort()
		return
	}
	if maxInterval < 0 {
		maxInterval = 0
	}

	ref := weak.Make(t)
	t.mu.Lock()
	delay := t.delayLocked(maxInterval)
	displaced := t.slot.Replace(task, func(gen uint64) *queue.Work {
		return t.q.After(delay, deliver(ref, gen))
	})
	t.mu.Unlock()

	t.logger.Debug().Dur("delay", delay).Bool("replaced", displaced).Msg("task scheduled")
	if t.metrics != nil {
		t.metrics.ThrottleScheduled.WithLabelValues(t.name).Inc()
		t.metrics.ThrottleDelay.WithLabelValues(t.name).Observe(delay.Seconds())
	}
}

// Abort cancels the pending task, if any, and releases it.
func (t *Throttler) Abort() {
	if t.slot.Cancel() {
		t.logger.Debug().Msg("task aborted")
	}
}

// Pending reports whether a task is waiting to run.
func (t *Throttler) Pending() bool {
	return t.slot.Pending()
}

// LastExecution returns when the last task started. ok is false until a
// task has run.
func (t *Throttler) LastExecution() (at time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, !t.last.IsZero()
}

func (t *Throttler) delay(maxInterval time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delayLocked(maxInterval)
}

func (t *Throttler) delayLocked(maxInterval time.Duration) time.Duration {
	if t.last.IsZero() {
		return 0
	}
	elapsed := t.clock.Since(t.last)
	if elapsed >= maxInterval {
		return 0
	}
	return maxInterval - elapsed
}

// deliver builds the scheduled work for generation gen. The execution time
// is recorded before the task runs, so a slow task does not push back the
// next interval.
func deliver(ref weak.Pointer[Throttler], gen uint64) queue.Func {
	return func(context.Context) {
		t := ref.Value()
		if t == nil {
			return
		}
		t.mu.Lock()
		task, ok := t.slot.Take(gen)
		if ok {
			t.last = t.clock.Now()
		}
		t.mu.Unlock()
		if !ok {
			return
		}

		t.logger.Debug().Msg("task fired")
		if t.metrics != nil {
			t.metrics.ThrottleFired.WithLabelValues(t.name).Inc()
		}
		task()
	}
}
