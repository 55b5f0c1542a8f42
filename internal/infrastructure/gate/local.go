package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// LocalGate is an in-process sliding-window request gate. Each key holds a
// queue of issue timestamps; a caller that would exceed the quota is assigned
// the earliest slot that keeps the window under the limit and sleeps until
// then. Slots are reserved under the lock, so issuance order follows Acquire
// order even when several callers are waiting.
//
// Windows are process-local: two processes gating the same key do not share
// state. Use RedisGate when more than one instance serves a connection.
type LocalGate struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	logger  zerolog.Logger
}

// NewLocalGate creates an empty local gate.
func NewLocalGate(logger zerolog.Logger) *LocalGate {
	return &LocalGate{
		windows: make(map[string][]time.Time),
		logger:  logger,
	}
}

// Acquire blocks until the caller may issue a request under limit. It
// returns early only when ctx is cancelled, in which case the reserved slot
// is still consumed (the window keeps counting it).
func (g *LocalGate) Acquire(ctx context.Context, key string, limit domain.RateLimit) error {
	if limit.Requests <= 0 || limit.Window <= 0 {
		return nil
	}

	now := time.Now()

	g.mu.Lock()
	window := evict(g.windows[key], now.Add(-limit.Window))
	release := now
	if len(window) >= limit.Requests {
		// The request may fire once the limit-th most recent slot falls
		// outside the window.
		release = window[len(window)-limit.Requests].Add(limit.Window)
	}
	window = append(window, release)
	g.windows[key] = window
	g.mu.Unlock()

	wait := time.Until(release)
	if wait <= 0 {
		return nil
	}

	g.logger.Debug().Str("key", key).Dur("wait", wait).Msg("Rate limit reached, delaying request")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// evict drops timestamps at or before cutoff. The slice is ordered, so the
// first retained index ends the scan.
func evict(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return window
	}
	return append([]time.Time(nil), window[i:]...)
}
