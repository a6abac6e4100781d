package service

import (
	"context"
	"time"
)

// RunSweeper calls sweep every interval until ctx is cancelled.
func RunSweeper(ctx context.Context, interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
