// Package testutil holds helpers shared by the coalesce package tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// Eventually polls condition every tick until it holds or waitFor elapses.
func Eventually(t *testing.T, condition func() bool, waitFor, tick time.Duration) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", waitFor)
		}
		time.Sleep(tick)
	}
}

// Call is one invocation observed by a Recorder.
type Call[T any] struct {
	At    time.Time
	Value T
}

// Recorder collects callback invocations from any goroutine.
type Recorder[T any] struct {
	mu     sync.Mutex
	calls  []Call[T]
	notify chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{notify: make(chan struct{}, 1)}
}

// Record stores v with the current wall-clock time.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	r.calls = append(r.calls, Call[T]{At: time.Now(), Value: v})
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Func returns a zero-argument callback that records v.
func (r *Recorder[T]) Func(v T) func() {
	return func() { r.Record(v) }
}

// Count returns the number of recorded calls.
func (r *Recorder[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder[T]) Calls() []Call[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call[T](nil), r.calls...)
}

// Values returns the recorded values in call order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	values := make([]T, len(r.calls))
	for i, c := range r.calls {
		values[i] = c.Value
	}
	return values
}

// WaitFor blocks until at least n calls were recorded and returns them.
// The test fails if that takes longer than timeout.
func (r *Recorder[T]) WaitFor(t *testing.T, n int, timeout time.Duration) []Call[T] {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if calls := r.Calls(); len(calls) >= n {
			return calls
		}
		select {
		case <-r.notify:
		case <-timer.C:
			t.Fatalf("got %d calls, want %d within %v", r.Count(), n, timeout)
			return nil
		}
	}
}
