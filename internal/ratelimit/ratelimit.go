// Package ratelimit provides a minimum-spacing gate shared across workers.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces a minimum interval between consecutive Wait returns,
// across all callers. A zero or negative interval disables it.
type Limiter struct {
	minInterval time.Duration

	mu          sync.Mutex
	nextAllowed time.Time
}

// New creates a Limiter with the given minimum interval between operations.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		nextAllowed: time.Now(),
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous Wait returned. Safe for concurrent use.
func (l *Limiter) Wait() {
	if l.minInterval <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if delay := l.nextAllowed.Sub(now); delay > 0 {
		time.Sleep(delay)
		now = time.Now()
	}
	l.nextAllowed = now.Add(l.minInterval)
}

// Interval returns the configured minimum interval.
func (l *Limiter) Interval() time.Duration {
	return l.minInterval
}
