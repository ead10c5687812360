package reconnect

import (
	"math/rand"
	"time"
)

// Policy is the retry schedule.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Jitter         time.Duration
	AttemptTimeout time.Duration
}

// DefaultPolicy is 5 attempts at 1s, 2s, 4s, 8s, 16s (capped at 30s),
// each ±500ms, with a 10s bound per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		Jitter:         500 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
	}
}

// Backoff returns min(MaxDelay, BaseDelay·2^(n-1)) for 1-indexed attempt n.
func (p Policy) Backoff(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Delay returns Backoff(n) shifted by a uniform offset in [-Jitter, +Jitter],
// never negative. randN returns a value in [0, n); nil uses math/rand.
func (p Policy) Delay(n int, randN func(n int64) int64) time.Duration {
	d := p.Backoff(n)
	if p.Jitter <= 0 {
		return d
	}
	if randN == nil {
		randN = rand.Int63n //nolint:gosec // jitter has no security impact
	}
	offset := time.Duration(randN(int64(2*p.Jitter)+1)) - p.Jitter
	d += offset
	if d < 0 {
		return 0
	}
	return d
}
