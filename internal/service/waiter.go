package service

import (
	"sync"

	"github.com/humancheck/humancheck/internal/domain/review"
)

// ---------------------------------------------------------------------------
// decisionWaiter — channel-based decision signal keyed by review ID
// ---------------------------------------------------------------------------

// decisionWaiter manages channel-based waiters keyed by review ID.
// Unlike a single-consumer correlation waiter, a review may have many
// concurrent waiters and all of them must observe the same decision, so
// deliver broadcasts to every registered channel.
type decisionWaiter struct {
	mu      sync.Mutex
	waiters map[string][]chan *review.Decision
}

func newDecisionWaiter() *decisionWaiter {
	return &decisionWaiter{
		waiters: make(map[string][]chan *review.Decision),
	}
}

// register creates a buffered channel for the given review ID. The
// buffer guarantees deliver never blocks on a slow waiter.
func (w *decisionWaiter) register(reviewID string) chan *review.Decision {
	ch := make(chan *review.Decision, 1)
	w.mu.Lock()
	w.waiters[reviewID] = append(w.waiters[reviewID], ch)
	w.mu.Unlock()
	return ch
}

// unregister removes one waiter channel for the given review ID.
// Called on timeout or context cancellation so no waiter leaks.
func (w *decisionWaiter) unregister(reviewID string, ch chan *review.Decision) {
	w.mu.Lock()
	defer w.mu.Unlock()

	chans := w.waiters[reviewID]
	for i, c := range chans {
		if c == ch {
			w.waiters[reviewID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(w.waiters[reviewID]) == 0 {
		delete(w.waiters, reviewID)
	}
}

// deliver wakes every waiter registered for the review ID with the same
// decision and clears the entry. Returns the number of waiters woken.
func (w *decisionWaiter) deliver(reviewID string, dec *review.Decision) int {
	w.mu.Lock()
	chans := w.waiters[reviewID]
	delete(w.waiters, reviewID)
	w.mu.Unlock()

	for _, ch := range chans {
		ch <- dec
	}
	return len(chans)
}

// pending returns the number of waiters currently registered for the
// review ID. Used by tests.
func (w *decisionWaiter) pending(reviewID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiters[reviewID])
}
