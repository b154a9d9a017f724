package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter per key kept in process memory.
type RateLimiter struct {
	max    int
	window time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(max int, windowSize time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  windowSize,
		clock:   time.Now,
		windows: make(map[string]*window),
	}
}

// SetClock is test-only.
func (l *RateLimiter) SetClock(clock func() time.Time) {
	l.clock = clock
}

// Allow counts one request for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if now.Sub(l.lastSweep) >= l.window {
			l.sweepLocked(now)
			l.lastSweep = now
		}
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.max, nil
}

// sweepLocked drops expired windows. Allow runs it at most once per window.
func (l *RateLimiter) sweepLocked(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
