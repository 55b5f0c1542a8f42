package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/httpclient"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

// ClientFactory hands out rate-limited clients bound to a connection. The
// gate is shared across every client the factory produces, so two clients
// for the same connection drain one quota (when backed by Redis this holds
// across processes too).
type ClientFactory struct {
	registry *registry.Registry
	conns    ports.ConnectionRepository
	tokens   *TokenService
	gate     ports.RequestGate
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewClientFactory creates a client factory.
func NewClientFactory(
	reg *registry.Registry,
	conns ports.ConnectionRepository,
	tokens *TokenService,
	gate ports.RequestGate,
	timeout time.Duration,
	logger zerolog.Logger,
) *ClientFactory {
	return &ClientFactory{
		registry: reg,
		conns:    conns,
		tokens:   tokens,
		gate:     gate,
		timeout:  timeout,
		logger:   logger,
	}
}

// ClientFor builds a client for a connection. Construction checks existence
// only: inactive or errored connections still yield a client, and the status
// check stays with the calling adapter.
func (f *ClientFactory) ClientFor(ctx context.Context, connectionID string) (*httpclient.Client, error) {
	conn, err := f.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, connectionID)
	}

	integration, err := f.registry.Describe(conn.IntegrationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrIntegrationNotFound, conn.IntegrationID)
	}

	return httpclient.New(connectionID, integration, f.conns, f.tokens, f.gate, f.timeout, f.logger), nil
}
