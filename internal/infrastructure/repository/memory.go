package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// The in-memory repositories mirror the Mongo implementations for
// single-process use and tests. Values are copied on the way in and out so
// callers never share a mutable snapshot with the store.

// InMemoryConnectionRepository stores connections in a mutex-guarded map.
type InMemoryConnectionRepository struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection
}

// NewInMemoryConnectionRepository creates an empty in-memory connection
// repository.
func NewInMemoryConnectionRepository() *InMemoryConnectionRepository {
	return &InMemoryConnectionRepository{conns: make(map[string]domain.Connection)}
}

func (r *InMemoryConnectionRepository) Get(ctx context.Context, id string) (*domain.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, nil
	}
	copied := conn
	return &copied, nil
}

func (r *InMemoryConnectionRepository) Put(ctx context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *conn
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	r.conns[conn.ID] = stored
	return nil
}

func (r *InMemoryConnectionRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Connection
	for _, conn := range r.conns {
		if conn.TenantID == tenantID {
			copied := conn
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// InMemorySyncJobRepository stores sync jobs in a mutex-guarded map.
type InMemorySyncJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]domain.SyncJob
}

// NewInMemorySyncJobRepository creates an empty in-memory sync-job
// repository.
func NewInMemorySyncJobRepository() *InMemorySyncJobRepository {
	return &InMemorySyncJobRepository{jobs: make(map[string]domain.SyncJob)}
}

func (r *InMemorySyncJobRepository) Get(ctx context.Context, id string) (*domain.SyncJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := job
	return &copied, nil
}

func (r *InMemorySyncJobRepository) Put(ctx context.Context, job *domain.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = *job
	return nil
}

func (r *InMemorySyncJobRepository) ListByConnection(ctx context.Context, connectionID string) ([]*domain.SyncJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SyncJob
	for _, job := range r.jobs {
		if job.ConnectionID == connectionID {
			copied := job
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// InMemoryWebhookEventRepository stores webhook events in a mutex-guarded
// map.
type InMemoryWebhookEventRepository struct {
	mu     sync.RWMutex
	events map[string]domain.WebhookEvent
}

// NewInMemoryWebhookEventRepository creates an empty in-memory webhook-event
// repository.
func NewInMemoryWebhookEventRepository() *InMemoryWebhookEventRepository {
	return &InMemoryWebhookEventRepository{events: make(map[string]domain.WebhookEvent)}
}

func (r *InMemoryWebhookEventRepository) Get(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	copied := event
	return &copied, nil
}

func (r *InMemoryWebhookEventRepository) Put(ctx context.Context, event *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.ID] = *event
	return nil
}

func (r *InMemoryWebhookEventRepository) ListUnprocessed(ctx context.Context, integrationID string, limit int) ([]*domain.WebhookEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.WebhookEvent
	for _, event := range r.events {
		if event.IntegrationID == integrationID && !event.Processed {
			copied := event
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InMemorySessionRepository stores OAuth sessions keyed by state.
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.OAuthSession
}

// NewInMemorySessionRepository creates an empty in-memory session
// repository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{sessions: make(map[string]domain.OAuthSession)}
}

func (r *InMemorySessionRepository) Create(ctx context.Context, session *domain.OAuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.sessions[session.State] = stored
	return nil
}

func (r *InMemorySessionRepository) GetByState(ctx context.Context, state string) (*domain.OAuthSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[state]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	copied := session
	return &copied, nil
}

func (r *InMemorySessionRepository) Delete(ctx context.Context, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, state)
	return nil
}
