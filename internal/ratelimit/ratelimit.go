package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds the rate of outbound API calls to at most maxCalls within
// any rolling period. Admission timestamps are kept in a mutex-guarded
// window; entries older than the period are evicted before every check.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time
}

// New creates a Limiter admitting at most maxCalls per rolling period.
func New(maxCalls int, period time.Duration) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
	}
}

// Acquire blocks until one more call can be admitted without exceeding the
// window bound, then records the admission. Blocking is observable as
// latency, not an error. Returns early with the context error if ctx is
// cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.evictLocked(now)

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.period - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Len returns the number of admissions currently inside the window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(time.Now())
	return len(l.calls)
}

// evictLocked drops admissions older than the period from the front of the
// window. Caller must hold mu.
func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(l.calls) && l.calls[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
