package accumulate

import (
	"context"
	"runtime"
	"time"
	"weak"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
	"github.com/vnykmshr/coalesce/pkg/dispatch/slot"
	"github.com/vnykmshr/coalesce/pkg/dispatch/synchronized"
	"github.com/vnykmshr/coalesce/pkg/metrics"
)

// DefaultName labels metrics and logs of debouncers created without a name.
const DefaultName = "default"

// Config holds configuration options for an accumulating Debouncer.
type Config[B any] struct {
	// AccumulationQueue serializes access to the buffer. Defaults to queue.Main().
	AccumulationQueue queue.Queue

	// TaskQueue runs the flush. Defaults to queue.Main().
	TaskQueue queue.Queue

	// Clone copies the initial value each time the buffer is reset. Set it
	// when B holds a slice, map or pointer that accumulate mutates in place.
	Clone func(B) B

	// Name labels metrics and log lines. Defaults to DefaultName.
	Name string

	// Logger receives debug output. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics records folded calls, flushes and aborted flushes. Nil disables metrics.
	Metrics *metrics.Registry
}

// Debouncer folds the payload of every call in a burst into a buffer and
// delivers the buffer once, after the burst has been quiet for the requested
// delay. The buffer then starts over from its initial value.
//
// Pending work does not keep the Debouncer alive. If the Debouncer becomes
// unreachable before its flush, the flush is dropped without running.
type Debouncer[B any] struct {
	taskQ   queue.Queue
	buffer  *synchronized.Synchronized[B]
	initial B
	clone   func(B) B
	name    string
	logger  zerolog.Logger
	metrics *metrics.Registry
	slot    *slot.Slot[func(B)]
}

// New creates a Debouncer whose buffer starts at initial. Both the buffer
// and the flush use queue.Main().
//
// Every reset assigns initial itself back to the buffer. When B is a map, or
// a slice with spare capacity, the next cycle then mutates the value already
// delivered; use NewWithConfig with Config.Clone for such buffers.
func New[B any](initial B) *Debouncer[B] {
	return NewWithConfig(initial, Config[B]{})
}

// NewWithConfig creates a Debouncer with custom configuration.
func NewWithConfig[B any](initial B, cfg Config[B]) *Debouncer[B] {
	accQ := cfg.AccumulationQueue
	if accQ == nil {
		accQ = queue.Main()
	}
	taskQ := cfg.TaskQueue
	if taskQ == nil {
		taskQ = queue.Main()
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	a := &Debouncer[B]{
		taskQ:   taskQ,
		initial: initial,
		clone:   cfg.Clone,
		name:    name,
		logger:  logger.With().Str("debouncer", name).Logger(),
		metrics: cfg.Metrics,
		slot:    new(slot.Slot[func(B)]),
	}
	a.buffer = synchronized.NewWithQueue(a.fresh(), accQ)
	runtime.AddCleanup(a, func(s *slot.Slot[func(B)]) { s.Cancel() }, a.slot)
	return a
}

// Debounce folds accumulate into the buffer and schedules task to receive
// the buffer after delay, replacing any flush scheduled before. Negative
// delays count as zero; the flush still runs asynchronously.
//
// Debounce blocks until the accumulation queue is free. Call DebounceContext
// from work running on the accumulation queue.
func (a *Debouncer[B]) Debounce(delay time.Duration, accumulate func(*B), task func(B)) error {
	return a.DebounceContext(context.Background(), delay, accumulate, task)
}

// DebounceContext is Debounce with a context. If ctx holds the accumulation
// queue, accumulate runs inline. If accumulate cannot run because ctx was
// cancelled or the queue was shut down, the pending flush is left untouched
// and the error is returned.
func (a *Debouncer[B]) DebounceContext(ctx context.Context, delay time.Duration, accumulate func(*B), task func(B)) error {
	if accumulate != nil {
		if err := a.buffer.With(ctx, accumulate); err != nil {
			return err
		}
		if a.metrics != nil {
			a.metrics.AccumulateFolded.WithLabelValues(a.name).Inc()
		}
	}
	if task == nil {
		a.Abort()
		return nil
	}
	if delay < 0 {
		delay = 0
	}

	ref := weak.Make(a)
	displaced := a.slot.Replace(task, func(gen uint64) *queue.Work {
		return a.taskQ.After(delay, flush(ref, gen))
	})

	a.logger.Debug().Dur("delay", delay).Bool("replaced", displaced).Msg("flush scheduled")
	if displaced && a.metrics != nil {
		a.metrics.AccumulateAborted.WithLabelValues(a.name).Inc()
	}
	return nil
}

// Abort cancels the pending flush, if any. The buffer keeps what it has
// accumulated and is delivered by the next flush.
func (a *Debouncer[B]) Abort() {
	if !a.slot.Cancel() {
		return
	}
	a.logger.Debug().Msg("flush aborted")
	if a.metrics != nil {
		a.metrics.AccumulateAborted.WithLabelValues(a.name).Inc()
	}
}

// Pending reports whether a flush is scheduled.
func (a *Debouncer[B]) Pending() bool {
	return a.slot.Pending()
}

// Buffer returns a copy of the current buffer. With a Clone function set the
// copy is taken with it; otherwise B is copied by assignment.
func (a *Debouncer[B]) Buffer(ctx context.Context) (B, error) {
	var v B
	err := a.buffer.With(ctx, func(b *B) {
		v = *b
		if a.clone != nil {
			v = a.clone(v)
		}
	})
	return v, err
}

func (a *Debouncer[B]) fresh() B {
	if a.clone != nil {
		return a.clone(a.initial)
	}
	return a.initial
}

// flush builds the scheduled work for generation gen. The buffer is read and
// reset in a single access, so a call racing the flush is either part of
// the delivered buffer or of the next one.
func flush[B any](ref weak.Pointer[Debouncer[B]], gen uint64) queue.Func {
	return func(ctx context.Context) {
		a := ref.Value()
		if a == nil {
			return
		}
		task, ok := a.slot.Take(gen)
		if !ok {
			return
		}

		var captured B
		err := a.buffer.With(ctx, func(b *B) {
			captured = *b
			*b = a.fresh()
		})
		if err != nil {
			a.logger.Error().Err(err).Msg("flush dropped: buffer unavailable")
			return
		}

		a.logger.Debug().Msg("flushed")
		if a.metrics != nil {
			a.metrics.AccumulateFlushed.WithLabelValues(a.name).Inc()
		}
		task(captured)
	}
}
