package debounce

import (
	"context"
	"runtime"
	"time"
	"weak"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
	"github.com/vnykmshr/coalesce/pkg/dispatch/slot"
	"github.com/vnykmshr/coalesce/pkg/metrics"
)

// DefaultDelay is the quiet period used by the timing profiles when none is
// configured.
const DefaultDelay = 300 * time.Millisecond

// DefaultName labels metrics and logs of debouncers created without a name.
const DefaultName = "default"

// Config holds configuration options for a Debouncer.
type Config struct {
	// Queue runs the debounced tasks. Defaults to queue.Main().
	Queue queue.Queue

	// Name labels metrics and log lines. Defaults to DefaultName.
	Name string

	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics records scheduled, fired and aborted tasks. Nil disables metrics.
	Metrics *metrics.Registry
}

// Debouncer runs only the last of a burst of tasks, once the burst has been
// quiet for the requested delay. A Debouncer holds at most one pending task.
//
// Pending work does not keep the Debouncer alive. If the Debouncer becomes
// unreachable before its task fires, the task is dropped without running.
type Debouncer struct {
	q       queue.Queue
	name    string
	logger  zerolog.Logger
	metrics *metrics.Registry
	slot    *slot.Slot[func()]
}

// New creates a Debouncer that runs tasks on q. A nil q selects queue.Main().
func New(q queue.Queue) *Debouncer {
	return NewWithConfig(Config{Queue: q})
}

// NewWithConfig creates a Debouncer with custom configuration.
func NewWithConfig(cfg Config) *Debouncer {
	q := cfg.Queue
	if q == nil {
		q = queue.Main()
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	d := &Debouncer{
		q:       q,
		name:    name,
		logger:  logger.With().Str("debouncer", name).Logger(),
		metrics: cfg.Metrics,
		slot:    new(slot.Slot[func()]),
	}
	runtime.AddCleanup(d, func(s *slot.Slot[func()]) { s.Cancel() }, d.slot)
	return d
}

// Debounce replaces any pending task with task and schedules it to run on
// the queue after delay. Calling Debounce again before delay elapses
// restarts the wait with the newer task. Negative delays count as zero; the
// task still runs asynchronously. A nil task only aborts the pending one.
func (d *Debouncer) Debounce(delay time.Duration, task func()) {
	if task == nil {
		d.Abort()
		return
	}
	if delay < 0 {
		delay = 0
	}

	ref := weak.Make(d)
	displaced := d.slot.Replace(task, func(gen uint64) *queue.Work {
		return d.q.After(delay, deliver(ref, gen))
	})

	d.logger.Debug().Dur("delay", delay).Bool("replaced", displaced).Msg("task scheduled")
	if d.metrics != nil {
		d.metrics.DebounceScheduled.WithLabelValues(d.name).Inc()
		if displaced {
			d.metrics.DebounceAborted.WithLabelValues(d.name).Inc()
		}
	}
}

// Fire runs the pending task immediately on the calling goroutine and
// cancels its scheduled run. It does nothing when no task is pending.
func (d *Debouncer) Fire() {
	task, ok := d.slot.TakeNow()
	if !ok {
		return
	}
	d.run(task, "fired early")
}

// Abort cancels the pending task, if any, and releases it.
func (d *Debouncer) Abort() {
	if !d.slot.Cancel() {
		return
	}
	d.logger.Debug().Msg("task aborted")
	if d.metrics != nil {
		d.metrics.DebounceAborted.WithLabelValues(d.name).Inc()
	}
}

// Pending reports whether a task is waiting to run.
func (d *Debouncer) Pending() bool {
	return d.slot.Pending()
}

func (d *Debouncer) run(task func(), msg string) {
	d.logger.Debug().Msg(msg)
	if d.metrics != nil {
		d.metrics.DebounceFired.WithLabelValues(d.name).Inc()
	}
	task()
}

// deliver builds the scheduled work for generation gen. It keeps only a weak
// reference so that pending work never extends the Debouncer's lifetime.
func deliver(ref weak.Pointer[Debouncer], gen uint64) queue.Func {
	return func(context.Context) {
		d := ref.Value()
		if d == nil {
			return
		}
		task, ok := d.slot.Take(gen)
		if !ok {
			return
		}
		d.run(task, "task fired")
	}
}
