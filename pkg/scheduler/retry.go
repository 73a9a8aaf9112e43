package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: 100 * time.Millisecond, Max: 30 * time.Second, Factor: 2}
}

func (b Backoff) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * b.Factor)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// retry runs op until it succeeds or ctx is done. There is no attempt limit:
// an expired note that was not removed must keep being retried.
func retry(ctx context.Context, l *slog.Logger, b Backoff, op func(context.Context) error) error {
	wait := b.Initial
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				l.Info("retry succeeded", "attempts", attempt)
			}
			return nil
		}
		l.Warn("retry attempt failed", "attempt", attempt, "backoff", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait = b.next(wait)
	}
}
