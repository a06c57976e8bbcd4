/*
Package workerpool provides a fixed set of goroutines that serial queues can
target instead of spawning a goroutine of their own for every drain.

Basic usage:

	pool := workerpool.New(4, 0) // 4 workers, direct handoff
	defer func() { <-pool.Shutdown() }()

	q := queue.NewWithConfig(queue.Config{Label: "ui", Pool: pool})

Tasks implement a simple interface:

	type Task interface {
		Execute(ctx context.Context) error
	}

TaskFunc adapts a plain function.

Handoff:

TrySubmit only succeeds when a worker is idle at that moment. Serial queues
rely on it: when every worker is busy (for example blocked in a
Synchronized access waiting on another queue of the same pool) the queue
drains on a fresh goroutine instead, so queues sharing one pool can never
starve each other.

Panics:

Without a PanicHandler a panicking task takes the process down exactly as a
panic in any other goroutine would. Set PanicHandler to recover instead; the
recovered value is also reported through OnTaskComplete as an error.
*/
package workerpool
