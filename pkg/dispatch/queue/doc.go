/*
Package queue provides strictly serial execution contexts.

A Serial queue runs submitted work one item at a time, in submission order.
It keeps no goroutine alive while empty: the first submission starts a drain
that exits once the queue is empty again. With Config.Pool set, drains run on
a shared workerpool.Pool instead of on a goroutine of their own.

Basic usage:

	q := queue.New("ui")

	q.Async(func(ctx context.Context) {
		// runs on the queue
	})

	// Blocks until the work ran.
	q.Sync(context.Background(), func(ctx context.Context) {})

Reentrancy:

Every Func receives a context that marks the queue as held. Passing that
context to Sync (directly or through a synchronized.Synchronized access)
runs the work inline instead of deadlocking on a queue the caller already
occupies. Work started with a context that does not carry the mark always
waits its turn, so do not call Sync with an unrelated context from inside
the queue's own work.

Delayed work:

After returns a *Work that can be cancelled. Cancelling drops the captured
function immediately:

	w := q.After(300*time.Millisecond, flush)
	w.Cancel()

Main returns a process-wide queue used as the documented default by the
debounce, throttle and accumulate constructors.
*/
package queue
