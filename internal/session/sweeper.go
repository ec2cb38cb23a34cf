package session

import (
	"context"
	"log/slog"
	"time"
)

// SweepCallback runs after each sweep with the number of evicted sessions.
type SweepCallback func(ctx context.Context, evicted int)

// StartSweeper runs a goroutine that evicts idle sessions every interval
// until ctx is cancelled. The returned channel is closed once it has exited.
func StartSweeper(ctx context.Context, store *Store, interval, maxIdle time.Duration, onSweep SweepCallback) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "max_idle", maxIdle)

		for {
			select {
			case <-ticker.C:
				evicted := store.EvictIdle(maxIdle)
				if evicted > 0 {
					slog.Info("Session sweeper evicted idle sessions", "count", evicted, "remaining", store.Len())
				}
				if onSweep != nil {
					onSweep(ctx, evicted)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}
