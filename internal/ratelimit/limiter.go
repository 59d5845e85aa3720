// Package ratelimit gates pipeline invocation with a sliding-window limiter
// keyed by client identifier. Exceeding the window rejects the request before
// any consultation state is created.
package ratelimit

import (
	"sync"
	"time"
)

const window = time.Minute

// Limiter is a thread-safe sliding-window rate limiter.
type Limiter struct {
	mu        sync.Mutex
	maxPerMin int
	now       func() time.Time
	seen      map[string][]time.Time
}

func New(maxPerMinute int) *Limiter {
	return &Limiter{
		maxPerMin: maxPerMinute,
		now:       time.Now,
		seen:      make(map[string][]time.Time),
	}
}

// Allow records one request for id if it fits in the window. When rejected,
// retryAfter tells the client how many seconds until a slot frees.
func (l *Limiter) Allow(id string) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.seen[id][:0]
	for _, t := range l.seen[id] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.seen[id] = kept

	if len(kept) < l.maxPerMin {
		l.seen[id] = append(kept, now)
		return true, 0
	}

	oldest := kept[0]
	for _, t := range kept {
		if t.Before(oldest) {
			oldest = t
		}
	}
	retryAfter = int(window.Seconds()-now.Sub(oldest).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	if retryAfter > 60 {
		retryAfter = 60
	}
	return false, retryAfter
}
