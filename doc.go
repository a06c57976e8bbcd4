/*
Package coalesce provides time-based call-coalescing primitives for
event-driven Go programs.

Timing (pkg/timing):
  - debounce: Run only the last task of a burst, after a quiet period
  - throttle: Run at most once per interval while events keep coming
  - accumulate: Fold every call of a burst into a buffer, flush it once

Dispatch (pkg/dispatch):
  - queue: Serial execution contexts with cancellable delayed work
  - synchronized: A value whose every access runs on a serial queue
  - workerpool: A fixed set of workers that serial queues can share
  - slot: The single pending task behind each timing primitive

Support:
  - config: Named timing profiles loaded from YAML or JSON
  - metrics: Prometheus instrumentation for queues and primitives

Example usage:

	import (
		"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
		"github.com/vnykmshr/coalesce/pkg/timing/debounce"
	)

	q := queue.New("ui")
	d := debounce.New(q)

	for _, key := range keystrokes {
		d.Debounce(300*time.Millisecond, func() { search(key) })
	}

Every primitive holds a single pending task and lives in one process.
Pending work never keeps a primitive alive: a primitive that is garbage
collected before its task fires drops the task.
*/
package coalesce
