package application

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/gate"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

func newClientFactory(t *testing.T, conns *repository.InMemoryConnectionRepository) *ClientFactory {
	t.Helper()

	reg := registry.New(zerolog.Nop())
	sessions := repository.NewInMemorySessionRepository()
	tokens := NewTokenService(reg, conns, sessions, "https://app.example/cb", 10*time.Minute, 5*time.Second, zerolog.Nop())
	return NewClientFactory(reg, conns, tokens, gate.NewLocalGate(zerolog.Nop()), 5*time.Second, zerolog.Nop())
}

func TestClientForBindsConnection(t *testing.T) {
	conns := repository.NewInMemoryConnectionRepository()
	seedConnection(t, conns, &domain.Connection{
		ID:            "conn-1",
		TenantID:      "tenant-1",
		IntegrationID: "xero",
		Status:        domain.ConnectionActive,
	})

	client, err := newClientFactory(t, conns).ClientFor(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", client.ConnectionID())
}

func TestClientForUnknownConnection(t *testing.T) {
	factory := newClientFactory(t, repository.NewInMemoryConnectionRepository())

	_, err := factory.ClientFor(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestClientForUnknownIntegration(t *testing.T) {
	conns := repository.NewInMemoryConnectionRepository()
	seedConnection(t, conns, &domain.Connection{
		ID:            "conn-1",
		TenantID:      "tenant-1",
		IntegrationID: "long-gone-platform",
		Status:        domain.ConnectionActive,
	})

	_, err := newClientFactory(t, conns).ClientFor(context.Background(), "conn-1")
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)
}

func TestClientForInactiveConnectionStillWorks(t *testing.T) {
	conns := repository.NewInMemoryConnectionRepository()
	seedConnection(t, conns, &domain.Connection{
		ID:            "conn-1",
		TenantID:      "tenant-1",
		IntegrationID: "xero",
		Status:        domain.ConnectionInactive,
	})

	client, err := newClientFactory(t, conns).ClientFor(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.NotNil(t, client)
}
