package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

func TestDescribeKnownIntegrations(t *testing.T) {
	reg := New(zerolog.Nop())

	for _, id := range []string{"quickbooks", "xero", "shopify", "salesforce", "slack", "stripe", "plaid"} {
		integration, err := reg.Describe(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, integration.ID)
		assert.NotZero(t, integration.RateLimit.Requests)
		assert.NotZero(t, integration.RateLimit.Window)
	}
}

func TestDescribeUnknownIntegration(t *testing.T) {
	reg := New(zerolog.Nop())

	_, err := reg.Describe("does-not-exist")
	assert.True(t, errors.Is(err, domain.ErrUnknownIntegration))
}

func TestRegisterResolvesClientCredentialsFromEnv(t *testing.T) {
	t.Setenv("TESTPLATFORM_CLIENT_ID", "client-id")
	t.Setenv("TESTPLATFORM_CLIENT_SECRET", "client-secret")
	t.Setenv("TESTPLATFORM_WEBHOOK_SECRET", "hook-secret")

	reg := New(zerolog.Nop())
	reg.Register(&domain.Integration{
		ID:        "testplatform",
		Name:      "Test Platform",
		AuthKind:  domain.AuthKindOAuth,
		BaseURL:   "https://api.testplatform.example",
		RateLimit: domain.RateLimit{Requests: 10, Window: time.Second},
	})

	integration, err := reg.Describe("testplatform")
	require.NoError(t, err)
	assert.Equal(t, "client-id", integration.ClientID)
	assert.Equal(t, "client-secret", integration.ClientSecret)
	assert.Equal(t, "hook-secret", integration.WebhookSecret)
}

func TestSlackQuotaIsOnePerSecond(t *testing.T) {
	reg := New(zerolog.Nop())

	slack, err := reg.Describe("slack")
	require.NoError(t, err)
	assert.Equal(t, 1, slack.RateLimit.Requests)
	assert.Equal(t, time.Second, slack.RateLimit.Window)
}

func TestListReturnsAllDescriptors(t *testing.T) {
	reg := New(zerolog.Nop())
	assert.Len(t, reg.List(), 7)
}
