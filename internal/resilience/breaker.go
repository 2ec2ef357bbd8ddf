// Package resilience provides reliability patterns for external channel
// calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit is open and calls are
// being rejected without running.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker is a circuit breaker for one notification channel. After
// maxFailures consecutive failures it rejects calls for the cooldown
// window, so a dead channel degrades to fast failed delivery records
// instead of stalling every dispatch on its timeout. The first call
// after the window is a probe: success closes the circuit, failure
// restarts the window.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	failures    int
	probing     bool
	openUntil   time.Time        // zero while closed
	now         func() time.Time // for testing
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and stays open for the given cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if !b.openUntil.IsZero() {
		if b.now().Before(b.openUntil) {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.probing || b.failures >= b.maxFailures {
			b.openUntil = b.now().Add(b.cooldown)
			b.probing = false
		}
		return err
	}

	b.failures = 0
	b.probing = false
	b.openUntil = time.Time{}
	return nil
}
