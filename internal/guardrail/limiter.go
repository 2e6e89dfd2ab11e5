package guardrail

import (
	"sync"
	"time"

	dErrors "storegate/pkg/domain-errors"
)

// PurgeThrottle bounds how often cache purges reach the CDN. It is an injected
// stateful collaborator rather than package-level state so a distributed
// limiter can replace it without touching call sites. Sliding window over
// request timestamps, same shape as the request rate limiter this gateway
// grew out of.
type PurgeThrottle struct {
	mu         sync.Mutex
	window     time.Duration
	max        int
	now        func() time.Time
	timestamps []time.Time
}

// ThrottleOption customizes a PurgeThrottle; tests pin the clock.
type ThrottleOption func(*PurgeThrottle)

func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *PurgeThrottle) { t.now = now }
}

func NewPurgeThrottle(max int, window time.Duration, opts ...ThrottleOption) *PurgeThrottle {
	t := &PurgeThrottle{window: window, max: max, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow admits one purge or rejects with a rate-limited error carrying the
// seconds until the window frees up.
func (t *PurgeThrottle) Allow() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.window)
	kept := t.timestamps[:0]
	for _, ts := range t.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.timestamps = kept

	if len(t.timestamps) >= t.max {
		retryAfter := t.timestamps[0].Add(t.window).Sub(now)
		return dErrors.Newf(dErrors.CodeRateLimited, "purge throttle: %d purges in the last %s", len(t.timestamps), t.window).
			WithDetail("limit", t.max).
			WithDetail("retry_after_seconds", int(retryAfter.Seconds())+1)
	}

	t.timestamps = append(t.timestamps, now)
	return nil
}
