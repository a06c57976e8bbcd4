package queue

import "sync"

// MainLabel is the label of the queue returned by Main.
const MainLabel = "main"

var (
	mainOnce  sync.Once
	mainQueue *Serial
)

// Main returns the process-wide queue used when a constructor is given no
// queue. It is created on first use, keeps no goroutine while idle, and is
// never shut down. Pass an explicit queue to avoid sharing it.
func Main() *Serial {
	mainOnce.Do(func() {
		mainQueue = New(MainLabel)
	})
	return mainQueue
}
