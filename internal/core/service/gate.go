package service

import (
	"time"

	"golang.org/x/time/rate"
)

// AdjustmentGate enforces a minimum interval between control decisions.
// It starts closed: the first pass is possible one delay after creation.
type AdjustmentGate struct {
	delay   time.Duration
	limiter *rate.Limiter
	last    time.Time
}

func NewAdjustmentGate(delay time.Duration, now time.Time) *AdjustmentGate {
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	limiter.AllowN(now, 1)
	return &AdjustmentGate{
		delay:   delay,
		limiter: limiter,
		last:    now,
	}
}

// Pass consumes the gate when open. It returns the time elapsed since the previous pass.
func (g *AdjustmentGate) Pass(now time.Time) (time.Duration, bool) {
	elapsed := now.Sub(g.last)
	if !g.limiter.AllowN(now, 1) {
		return elapsed, false
	}
	g.last = now
	return elapsed, true
}

func (g *AdjustmentGate) Last() time.Time {
	return g.last
}

func (g *AdjustmentGate) Delay() time.Duration {
	return g.delay
}
