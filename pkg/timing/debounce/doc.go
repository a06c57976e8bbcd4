/*
Package debounce collapses bursts of calls into a single delayed task.

A Debouncer keeps one pending task. Each call to Debounce cancels the task
scheduled before it, so only the last task of a burst runs, once the burst
has been quiet for the requested delay.

Basic usage:

	d := debounce.New(nil) // tasks run on queue.Main()

	for _, ev := range events {
		d.Debounce(300*time.Millisecond, func() {
			save(ev)
		})
	}

The pending task can also be forced or dropped:

	d.Fire()  // run it now, on the calling goroutine
	d.Abort() // drop it

Tasks run on the Debouncer's queue, never on the goroutine that called
Debounce, even with a zero delay. A task is not handed the queue's context,
so it must not call Sync on its own queue. Panics raised by a task are not
recovered.

A Debouncer that becomes unreachable before its task fires drops the task
silently. Keep a reference to the Debouncer for as long as its pending task
matters.
*/
package debounce
