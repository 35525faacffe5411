package orchestrator

import (
	"context"
	"time"
)

// Clock abstracts wall-clock time so poller and orchestrator
// transitions are testable without real waits.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses for d or until ctx is cancelled, returning ctx.Err()
	// in the cancelled case.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock is the production clock.
type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
