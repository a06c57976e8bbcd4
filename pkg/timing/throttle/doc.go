/*
Package throttle bounds how often a task runs while keeping it periodic.

Where a debouncer waits for a burst to end, a Throttler keeps running
during the burst, at most once per interval. Useful for progress updates or
scroll handlers that should refresh regularly while events keep coming.

	th := throttle.New(q)

	for ev := range scrollEvents {
		th.Throttle(100*time.Millisecond, func() {
			redraw(ev)
		})
	}

The first task runs as soon as the queue is free. Each later task is held
back until maxInterval has passed since the previous one started. A task
submitted while another is still waiting replaces it.

Tasks never run on the goroutine that called Throttle. Panics raised by a
task are not recovered.
*/
package throttle
