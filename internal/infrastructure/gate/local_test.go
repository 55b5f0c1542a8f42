package gate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

func TestAcquireWithinQuotaDoesNotBlock(t *testing.T) {
	g := NewLocalGate(zerolog.Nop())
	limit := domain.RateLimit{Requests: 3, Window: time.Second}

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire(context.Background(), "conn-1", limit))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireDelaysRequestOverQuota(t *testing.T) {
	g := NewLocalGate(zerolog.Nop())
	limit := domain.RateLimit{Requests: 2, Window: 500 * time.Millisecond}

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire(context.Background(), "conn-1", limit))
	}
	// The third request must wait until the first slot leaves the window.
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquireKeysAreIndependent(t *testing.T) {
	g := NewLocalGate(zerolog.Nop())
	limit := domain.RateLimit{Requests: 1, Window: time.Second}

	require.NoError(t, g.Acquire(context.Background(), "conn-a", limit))

	start := time.Now()
	require.NoError(t, g.Acquire(context.Background(), "conn-b", limit))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	g := NewLocalGate(zerolog.Nop())
	limit := domain.RateLimit{Requests: 1, Window: 5 * time.Second}

	require.NoError(t, g.Acquire(context.Background(), "conn-1", limit))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx, "conn-1", limit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireIgnoresZeroQuota(t *testing.T) {
	g := NewLocalGate(zerolog.Nop())

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Acquire(context.Background(), "conn-1", domain.RateLimit{}))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
