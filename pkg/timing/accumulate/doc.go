/*
Package accumulate provides a debouncer that folds every call of a burst into
a buffer before delivering it once.

Each call to Debounce applies its accumulate function to the buffer and
reschedules the flush. When the burst has been quiet for the delay, the task
of the last call receives everything accumulated since the previous flush,
and the buffer starts over from its initial value.

	d := accumulate.NewWithConfig([]string(nil), accumulate.Config[[]string]{
		AccumulationQueue: q,
		TaskQueue:         q,
	})

	for ev := range fileEvents {
		d.Debounce(200*time.Millisecond,
			func(paths *[]string) { *paths = append(*paths, ev.Name) },
			func(paths []string) { rebuild(paths) },
		)
	}

The buffer lives on the accumulation queue and the flush runs on the task
queue; the two may be the same. Accumulation is ordered by arrival at the
accumulation queue.

Buffers holding slices or maps that are mutated in place should set
Config.Clone, so that every reset starts from a fresh copy of the initial
value instead of sharing it.

Abort cancels the scheduled flush but keeps the buffer: whatever was
accumulated is delivered by the next flush.

Tasks of the debounce and throttle packages are not handed their queue's
context. Such a task running on the accumulation queue must not call
Debounce, which would wait for the queue the task itself occupies. This
includes the default setup where both use queue.Main(). Call DebounceContext
with the context of queue work instead, or keep the accumulation queue
separate from the queue those tasks run on.
*/
package accumulate
