// Package ratelimit throttles bulk order submissions per merchant over a
// sliding window. Single-order requests are never limited.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check
type Decision struct {
	Allowed   bool
	Remaining int       // Bulk submissions left in the current window
	ResetAt   time.Time // When the oldest counted submission leaves the window
}

// BulkLimiter counts bulk submissions per merchant in a sliding window
type BulkLimiter struct {
	perWindow int
	window    time.Duration
	now       func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewBulkLimiter creates a limiter allowing perWindow bulk submissions per
// merchant per window.
func NewBulkLimiter(perWindow int, window time.Duration) *BulkLimiter {
	return &BulkLimiter{
		perWindow: perWindow,
		window:    window,
		now:       time.Now,
		hits:      make(map[string][]time.Time),
	}
}

// Allow admits or refuses a submission of batchSize orders. Only batches of
// two or more count against the window.
func (l *BulkLimiter) Allow(merchantPublicID string, batchSize int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(merchantPublicID, now)

	if batchSize < 2 {
		return Decision{
			Allowed:   true,
			Remaining: l.perWindow - len(recent),
			ResetAt:   l.resetAt(recent, now),
		}
	}

	if len(recent) >= l.perWindow {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   l.resetAt(recent, now),
		}
	}

	recent = append(recent, now)
	l.hits[merchantPublicID] = recent

	return Decision{
		Allowed:   true,
		Remaining: l.perWindow - len(recent),
		ResetAt:   l.resetAt(recent, now),
	}
}

func (l *BulkLimiter) prune(merchantPublicID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	recent := l.hits[merchantPublicID][:0]
	for _, t := range l.hits[merchantPublicID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(l.hits, merchantPublicID)
		return nil
	}
	l.hits[merchantPublicID] = recent
	return recent
}

func (l *BulkLimiter) resetAt(recent []time.Time, now time.Time) time.Time {
	if len(recent) == 0 {
		return now
	}
	return recent[0].Add(l.window)
}
