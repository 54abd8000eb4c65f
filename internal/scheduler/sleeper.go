package scheduler

import (
	"context"
	"time"
)

// Sleeper blocks for a randomized interval in [min, max]. The pauses
// are deliberate rate-shaping between actions and between tasks, not
// fire-and-forget timers; implementations must block.
type Sleeper interface {
	Sleep(ctx context.Context, min, max time.Duration)
}

// NewSleeper returns the production sleeper, drawing jitter from rng.
func NewSleeper(rng Rand) Sleeper {
	return &randSleeper{rng: rng}
}

type randSleeper struct {
	rng Rand
}

func (s *randSleeper) Sleep(ctx context.Context, min, max time.Duration) {
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(s.rng.Intn(int(span) + 1))
	}
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
