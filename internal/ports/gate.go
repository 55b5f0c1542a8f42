package ports

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// RequestGate throttles outbound calls to a platform quota. Acquire blocks
// until the caller may issue a request under the given sliding-window limit;
// calls are delayed, never rejected. Keys are connection ids, so a gate
// shared between client instances (or processes, for the Redis gate) enforces
// one quota per connection.
type RequestGate interface {
	Acquire(ctx context.Context, key string, limit domain.RateLimit) error
}
