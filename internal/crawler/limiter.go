package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter gates the start of each stock code after the first.
type Limiter interface {
	Wait(ctx context.Context) error
}

// JitterLimiter pauses for a uniformly random duration in [Min, Max].
type JitterLimiter struct {
	Min  time.Duration
	Max  time.Duration
	rand func(n int64) int64
}

// NewJitterLimiter returns a limiter pausing between lo and hi.
func NewJitterLimiter(lo, hi time.Duration) *JitterLimiter {
	if hi < lo {
		lo, hi = hi, lo
	}
	return &JitterLimiter{Min: lo, Max: hi, rand: rand.Int64N}
}

// Next returns the pause the limiter would apply.
func (l *JitterLimiter) Next() time.Duration {
	span := int64(l.Max - l.Min)
	if span <= 0 {
		return l.Min
	}
	rnd := l.rand
	if rnd == nil {
		rnd = rand.Int64N
	}
	return l.Min + time.Duration(rnd(span+1))
}

// Wait sleeps for Next() or until ctx is done.
func (l *JitterLimiter) Wait(ctx context.Context) error {
	d := l.Next()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NopLimiter never waits.
type NopLimiter struct{}

// Wait returns immediately unless ctx is already done.
func (NopLimiter) Wait(ctx context.Context) error { return ctx.Err() }
