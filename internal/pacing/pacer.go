// Package pacing spaces out calls to the external APIs. The delay is a
// courtesy to the upstream services; nothing relies on it for correctness.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type Pacer struct {
	pause   time.Duration
	limiter *rate.Limiter
}

// New returns a pacer that lets one call through per pause. The first call
// never waits, so the pause only ever falls between calls.
func New(pause time.Duration) *Pacer {
	if pause <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{
		pause:   pause,
		limiter: rate.NewLimiter(rate.Every(pause), 1),
	}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Pacer) Pause() time.Duration {
	if p == nil {
		return 0
	}
	return p.pause
}
