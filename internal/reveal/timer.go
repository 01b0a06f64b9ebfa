package reveal

import (
	"context"
	"time"
)

// Timer suspends a reveal loop between units. Wait returns early with the
// context error when ctx is cancelled.
type Timer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// RealTimer waits on the wall clock.
func RealTimer() Timer { return realTimer{} }

type realTimer struct{}

func (realTimer) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
