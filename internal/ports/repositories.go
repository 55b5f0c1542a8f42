package ports

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// ConnectionRepository is the single source of truth for connection state.
// Get returns (nil, nil) when the id is unknown; callers translate that into
// domain.ErrConnectionNotFound at the service boundary.
type ConnectionRepository interface {
	Get(ctx context.Context, id string) (*domain.Connection, error)
	Put(ctx context.Context, conn *domain.Connection) error
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Connection, error)
}

// SyncJobRepository persists bulk-pull ledger entries.
type SyncJobRepository interface {
	Get(ctx context.Context, id string) (*domain.SyncJob, error)
	Put(ctx context.Context, job *domain.SyncJob) error
	ListByConnection(ctx context.Context, connectionID string) ([]*domain.SyncJob, error)
}

// WebhookEventRepository persists inbound events for downstream processing.
type WebhookEventRepository interface {
	Get(ctx context.Context, id string) (*domain.WebhookEvent, error)
	Put(ctx context.Context, event *domain.WebhookEvent) error
	ListUnprocessed(ctx context.Context, integrationID string, limit int) ([]*domain.WebhookEvent, error)
}

// SessionRepository persists short-lived OAuth CSRF sessions keyed by state.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.OAuthSession) error
	// GetByState returns (nil, nil) when the state is unknown or expired.
	GetByState(ctx context.Context, state string) (*domain.OAuthSession, error)
	Delete(ctx context.Context, state string) error
}
