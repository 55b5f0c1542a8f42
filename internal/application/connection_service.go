package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

// ConnectionService exposes connection state to callers and owns the soft
// lifecycle operations that do not touch the OAuth dance.
type ConnectionService struct {
	registry *registry.Registry
	conns    ports.ConnectionRepository
	logger   zerolog.Logger
}

// NewConnectionService creates a connection service.
func NewConnectionService(reg *registry.Registry, conns ports.ConnectionRepository, logger zerolog.Logger) *ConnectionService {
	return &ConnectionService{registry: reg, conns: conns, logger: logger}
}

// GetConnection retrieves a connection by id.
func (s *ConnectionService) GetConnection(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.conns.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, id)
	}
	return conn, nil
}

// ListConnections retrieves all connections owned by a tenant.
func (s *ConnectionService) ListConnections(ctx context.Context, tenantID string) ([]*domain.Connection, error) {
	conns, err := s.conns.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

// Disconnect moves a connection to inactive. The record is kept; deletion is
// a persistence concern outside the framework.
func (s *ConnectionService) Disconnect(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	conn.Status = domain.ConnectionInactive
	conn.UpdatedAt = time.Now()
	if err := s.conns.Put(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist disconnect: %w", err)
	}

	s.logger.Info().Str("connectionId", id).Msg("Disconnected integration")
	return conn, nil
}

// RegisterAPIKey creates an active connection for an api_key integration.
// This is the non-OAuth path into the framework: no exchange, the key is the
// credential.
func (s *ConnectionService) RegisterAPIKey(ctx context.Context, integrationID, tenantID, apiKey string, metadata map[string]any) (*domain.Connection, error) {
	integration, err := s.registry.Describe(integrationID)
	if err != nil {
		return nil, err
	}
	if integration.AuthKind != domain.AuthKindAPIKey {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrUnsupportedAuthKind, integrationID, integration.AuthKind)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	now := time.Now()
	conn := &domain.Connection{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Status:        domain.ConnectionActive,
		Credentials:   domain.Credentials{APIKey: apiKey},
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.conns.Put(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist connection: %w", err)
	}

	s.logger.Info().
		Str("integration", integrationID).
		Str("tenantId", tenantID).
		Str("connectionId", conn.ID).
		Msg("Registered API key connection")

	return conn, nil
}
