package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer spaces out idle polls and doubles the delay after each failed batch,
// up to maxBackoff.
type pacer struct {
	base    time.Duration
	current time.Duration
}

func newPacer(base time.Duration) *pacer {
	return &pacer{base: base, current: base}
}

func (p *pacer) reset() { p.current = p.base }

// delay returns the next wait without jitter.
func (p *pacer) delay(failed bool) time.Duration {
	if !failed {
		p.current = p.base
		return p.current
	}
	p.current = min(p.current*2, maxBackoff)
	return p.current
}

func (p *pacer) wait(ctx context.Context, failed bool) error {
	d := p.delay(failed) + rand.N(jitterWindow)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
