package queue

import (
	"context"
	"sync"
	"time"
)

type workState int

const (
	workPending workState = iota
	workCancelled
	workExecuted
)

// Work is a cancellable handle to a function scheduled on a queue.
//
// The function is dropped as soon as the work is cancelled or has started
// running, so nothing it captured outlives the handle's relevance.
type Work struct {
	mu    sync.Mutex
	fn    Func
	state workState
	stop  chan struct{}
}

func newWork(fn Func) *Work {
	return &Work{fn: fn, stop: make(chan struct{})}
}

// Cancel prevents the work from running and releases its function.
// It reports whether the work was still pending.
func (w *Work) Cancel() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != workPending {
		return false
	}
	w.state = workCancelled
	w.fn = nil
	close(w.stop)
	return true
}

// Cancelled reports whether Cancel stopped the work.
func (w *Work) Cancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == workCancelled
}

// Executed reports whether the work has started running.
func (w *Work) Executed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == workExecuted
}

// perform runs the function unless the work was cancelled first.
func (w *Work) perform(ctx context.Context) {
	w.mu.Lock()
	if w.state != workPending {
		w.mu.Unlock()
		return
	}
	fn := w.fn
	w.fn = nil
	w.state = workExecuted
	w.mu.Unlock()

	fn(ctx)
}

// After schedules fn to be enqueued once delay has elapsed on the queue's
// clock. A delay of zero or less enqueues immediately; fn still runs
// asynchronously, never on the caller's goroutine.
func (q *Serial) After(delay time.Duration, fn Func) *Work {
	w := newWork(fn)
	if fn == nil {
		w.Cancel()
		return w
	}

	if delay <= 0 {
		if err := q.Async(w.perform); err != nil {
			w.Cancel()
		}
		return w
	}

	timer := q.clock.NewTimer(delay)
	go func() {
		select {
		case <-timer.C():
			if err := q.Async(w.perform); err != nil {
				w.Cancel()
			}
		case <-w.stop:
			timer.Stop()
		}
	}()
	return w
}
