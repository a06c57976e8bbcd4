// Package synchronized serializes access to a value through a serial queue.
//
// All reads and writes of the wrapped value run as work on one queue.Queue,
// so the value needs no lock of its own and can be shared between callers and
// the queue's scheduled work. The queue must be strictly serial; every
// queue.Queue implementation in this module is.
//
//	counter := synchronized.New(0)
//	counter.With(ctx, func(n *int) { *n++ })
//	n, _ := counter.Get(ctx)
//
// Access from work already running on the same queue must pass the work's
// context so it runs inline:
//
//	q.Async(func(ctx context.Context) {
//		counter.With(ctx, func(n *int) { *n = 0 })
//	})
//
// Code that runs on the queue without its context, such as a debounce or
// throttle task, must not access a value guarded by that same queue: With
// would wait for the queue the caller itself occupies and never return.
// Guard the value with a different queue, or run the task elsewhere.
package synchronized

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
	"github.com/vnykmshr/coalesce/pkg/dispatch/workerpool"
	"github.com/vnykmshr/coalesce/pkg/metrics"
)

// Config holds configuration options for a Synchronized value.
type Config struct {
	// Queue serializes access. If nil a private queue is created.
	Queue queue.Queue

	// Label names the private queue. Defaults to "synchronized.<type>.<uuid>".
	Label string

	// Pool targets the private queue at a shared worker pool.
	Pool workerpool.Pool

	// Logger and Metrics are passed to the private queue.
	Logger  *zerolog.Logger
	Metrics *metrics.Registry
}

// Synchronized wraps a value of type T whose every access is serialized
// through a queue.
type Synchronized[T any] struct {
	value T
	q     queue.Queue
}

// New wraps value behind a private serial queue.
func New[T any](value T) *Synchronized[T] {
	return NewWithConfig(value, Config{})
}

// NewWithQueue wraps value behind an existing serial queue.
func NewWithQueue[T any](value T, q queue.Queue) *Synchronized[T] {
	return NewWithConfig(value, Config{Queue: q})
}

// NewWithConfig wraps value with custom configuration.
func NewWithConfig[T any](value T, cfg Config) *Synchronized[T] {
	q := cfg.Queue
	if q == nil {
		label := cfg.Label
		if label == "" {
			label = fmt.Sprintf("synchronized.%s.%s", reflect.TypeFor[T](), uuid.NewString())
		}
		q = queue.NewWithConfig(queue.Config{
			Label:   label,
			Pool:    cfg.Pool,
			Logger:  cfg.Logger,
			Metrics: cfg.Metrics,
		})
	}
	return &Synchronized[T]{value: value, q: q}
}

// Queue returns the queue serializing access to the value.
func (s *Synchronized[T]) Queue() queue.Queue {
	return s.q
}

// With runs op with exclusive mutable access to the value.
//
// If ctx shows the caller already holds the queue, op runs inline;
// otherwise With blocks until the queue grants access. A panic in op
// propagates to the caller unchanged.
func (s *Synchronized[T]) With(ctx context.Context, op func(value *T)) error {
	return s.q.Sync(ctx, func(context.Context) {
		op(&s.value)
	})
}

// Get returns a copy of the current value.
func (s *Synchronized[T]) Get(ctx context.Context) (T, error) {
	var v T
	err := s.With(ctx, func(value *T) { v = *value })
	return v, err
}

// Set replaces the value.
func (s *Synchronized[T]) Set(ctx context.Context, v T) error {
	return s.With(ctx, func(value *T) { *value = v })
}
