// Package slot holds the single pending task of a debouncer-like primitive.
//
// A Slot pairs the scheduled *queue.Work with the payload that work will
// deliver. The payload lives in the slot rather than only in the work's
// closure so that cancelling releases it even when the scheduler would keep
// the closure alive. Every Replace bumps a generation number; work only
// claims the payload if its generation is still current, so for a given
// cycle exactly one of cancellation and delivery wins.
package slot

import (
	"sync"

	"github.com/vnykmshr/coalesce/pkg/dispatch/queue"
)

// Slot holds at most one pending work item and its payload.
// The zero value is an empty slot ready for use.
type Slot[P any] struct {
	mu      sync.Mutex
	work    *queue.Work
	payload P
	pending bool
	gen     uint64
}

// Replace cancels whatever is pending, stores payload and installs the work
// returned by schedule. schedule receives the generation the work must
// present to Take. It reports whether a pending payload was displaced.
//
// schedule runs with the slot locked and must not call back into the slot
// synchronously; queue.Queue.After never does.
func (s *Slot[P]) Replace(payload P, schedule func(gen uint64) *queue.Work) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	displaced := s.cancelLocked()
	s.gen++
	s.payload = payload
	s.pending = true
	s.work = schedule(s.gen)
	return displaced
}

// Take claims the payload for generation gen and empties the slot. It fails
// if the slot was cancelled, replaced or drained since gen was issued.
func (s *Slot[P]) Take(gen uint64) (P, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending || s.gen != gen {
		var zero P
		return zero, false
	}
	p := s.payload
	s.clearLocked()
	return p, true
}

// TakeNow cancels the pending work and claims its payload regardless of
// generation.
func (s *Slot[P]) TakeNow() (P, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		var zero P
		return zero, false
	}
	s.work.Cancel()
	p := s.payload
	s.clearLocked()
	return p, true
}

// Cancel stops the pending work and releases its payload.
// It reports whether anything was pending.
func (s *Slot[P]) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

// Pending reports whether a payload is waiting for delivery.
func (s *Slot[P]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Slot[P]) cancelLocked() bool {
	if !s.pending {
		return false
	}
	s.work.Cancel()
	s.clearLocked()
	return true
}

func (s *Slot[P]) clearLocked() {
	var zero P
	s.payload = zero
	s.pending = false
	s.work = nil
}
