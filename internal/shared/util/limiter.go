package util

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttle admits at most one event per interval and counts the rest, so a
// periodic log line can report how many updates it stands for.
type Throttle struct {
	inner      *rate.Limiter
	suppressed atomic.Int64
}

// NewThrottle returns a throttle for interval. A non-positive interval admits
// every event.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{inner: rate.NewLimiter(limit, 1)}
}

// Allow reports whether the event may pass. On success it also returns the
// number of events suppressed since the last admitted one.
func (t *Throttle) Allow() (bool, int64) {
	if !t.inner.Allow() {
		t.suppressed.Add(1)
		return false, 0
	}
	return true, t.suppressed.Swap(0)
}
