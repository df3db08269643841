package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when any recent GC pause exceeds threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// PingCheck adapts a connectivity probe such as a database or cache ping.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GrowthCheck fails when count grows by more than maxGrowth between two
// consecutive runs. It is meant for monotonic counters like dead-lettered
// outbox tasks, where a burst signals a broken downstream.
func GrowthCheck(count func(ctx context.Context) (int64, error), maxGrowth int64) CheckFunc {
	var (
		mu   sync.Mutex
		last int64 = -1
	)
	return func(ctx context.Context) error {
		n, err := count(ctx)
		if err != nil {
			return errors.Wrap(err, "count")
		}

		mu.Lock()
		defer mu.Unlock()
		prev := last
		last = n
		if prev >= 0 && n-prev > maxGrowth {
			return errors.Errorf("grew by %d since last check (max %d)", n-prev, maxGrowth)
		}
		return nil
	}
}
