package application

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

type connectionFixture struct {
	service *ConnectionService
	conns   *repository.InMemoryConnectionRepository
}

func newConnectionFixture(t *testing.T) *connectionFixture {
	t.Helper()

	conns := repository.NewInMemoryConnectionRepository()
	return &connectionFixture{
		service: NewConnectionService(registry.New(zerolog.Nop()), conns, zerolog.Nop()),
		conns:   conns,
	}
}

func TestDisconnectKeepsRecord(t *testing.T) {
	f := newConnectionFixture(t)
	ctx := context.Background()

	seedConnection(t, f.conns, &domain.Connection{
		ID:            "conn-1",
		TenantID:      "tenant-1",
		IntegrationID: "xero",
		Status:        domain.ConnectionActive,
		Credentials:   domain.Credentials{AccessToken: "at-1", RefreshToken: "rt-1"},
	})

	conn, err := f.service.Disconnect(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionInactive, conn.Status)

	// Soft delete: the record and its credentials survive.
	stored, err := f.conns.Get(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.ConnectionInactive, stored.Status)
	assert.Equal(t, "rt-1", stored.Credentials.RefreshToken)
}

func TestDisconnectUnknownConnection(t *testing.T) {
	f := newConnectionFixture(t)

	_, err := f.service.Disconnect(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestListConnectionsScopedToTenant(t *testing.T) {
	f := newConnectionFixture(t)
	ctx := context.Background()

	seedConnection(t, f.conns, &domain.Connection{ID: "a", TenantID: "t1", IntegrationID: "xero"})
	seedConnection(t, f.conns, &domain.Connection{ID: "b", TenantID: "t2", IntegrationID: "xero"})

	conns, err := f.service.ListConnections(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "a", conns[0].ID)
}

func TestRegisterAPIKey(t *testing.T) {
	f := newConnectionFixture(t)

	conn, err := f.service.RegisterAPIKey(context.Background(), "stripe", "tenant-1", "sk_test_123", map[string]any{"mode": "test"})
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionActive, conn.Status)
	assert.Equal(t, "sk_test_123", conn.Credentials.APIKey)
	assert.Equal(t, "test", conn.MetadataString("mode"))
}

func TestRegisterAPIKeyRejectsOAuthIntegration(t *testing.T) {
	f := newConnectionFixture(t)

	_, err := f.service.RegisterAPIKey(context.Background(), "xero", "tenant-1", "sk_test_123", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedAuthKind)
}

func TestRegisterAPIKeyRequiresKey(t *testing.T) {
	f := newConnectionFixture(t)

	_, err := f.service.RegisterAPIKey(context.Background(), "stripe", "tenant-1", "", nil)
	assert.Error(t, err)
}
