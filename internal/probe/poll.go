package probe

import (
	"context"
	"log/slog"
	"time"
)

// CheckFunc reports whether the awaited condition holds. Errors are treated
// as transient.
type CheckFunc func(ctx context.Context) (bool, error)

// Poll calls check every interval while less than timeout has elapsed since
// the first call. It returns true as soon as check does, false once the
// deadline passes, and ctx.Err() if ctx is cancelled while waiting.
func Poll(ctx context.Context, interval, timeout time.Duration, check CheckFunc) (bool, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; time.Now().Before(deadline); attempt++ {
		ok, err := check(ctx)
		if err != nil {
			slog.Debug("poll attempt failed", "attempt", attempt, "error", err)
		} else if ok {
			return true, nil
		}

		t := time.NewTimer(interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		}
	}
	return false, nil
}
