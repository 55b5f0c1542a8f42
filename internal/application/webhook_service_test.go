package application

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/pubsub"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/webhook"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

type webhookFixture struct {
	service *WebhookService
	events  *repository.InMemoryWebhookEventRepository
	pubsub  *pubsub.EventPubSub
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	reg := registry.New(zerolog.Nop())
	reg.Register(&domain.Integration{
		ID:            "hookplatform",
		Name:          "Hook Platform",
		AuthKind:      domain.AuthKindWebhook,
		BaseURL:       "https://api.hookplatform.example",
		RateLimit:     domain.RateLimit{Requests: 10, Window: time.Second},
		WebhookSecret: "signing-secret",
	})

	events := repository.NewInMemoryWebhookEventRepository()
	ps := pubsub.NewEventPubSub(zerolog.Nop())
	return &webhookFixture{
		service: NewWebhookService(reg, events, ps, zerolog.Nop()),
		events:  events,
		pubsub:  ps,
	}
}

func TestIngestSignedEvent(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	sub := f.pubsub.Subscribe(ctx, nil)
	defer f.pubsub.Unsubscribe(sub.ID)

	payload := []byte(`{"order_id":"42"}`)
	signature := webhook.NewVerifier("signing-secret").Sign(payload)

	event, err := f.service.Ingest(ctx, "hookplatform", "orders/create", payload, signature)
	require.NoError(t, err)
	assert.True(t, event.Verified)
	assert.False(t, event.Processed)
	assert.Equal(t, "orders/create", event.EventType)

	stored, err := f.events.Get(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	select {
	case published := <-sub.Events:
		assert.Equal(t, event.ID, published.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not fanned out to subscribers")
	}
}

func TestIngestRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	payload := []byte(`{"order_id":"42"}`)
	badSignature := webhook.NewVerifier("wrong-secret").Sign(payload)

	_, err := f.service.Ingest(ctx, "hookplatform", "orders/create", payload, badSignature)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	// A rejected event leaves no trace.
	unprocessed, err := f.service.ListUnprocessed(ctx, "hookplatform", 0)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestIngestAcceptsUnsignedEvent(t *testing.T) {
	f := newWebhookFixture(t)

	event, err := f.service.Ingest(context.Background(), "hookplatform", "orders/create", []byte(`{"order_id":"42"}`), "")
	require.NoError(t, err)
	assert.False(t, event.Verified)
}

func TestIngestUnknownIntegration(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.service.Ingest(context.Background(), "does-not-exist", "orders/create", []byte(`{}`), "")
	assert.ErrorIs(t, err, domain.ErrUnknownIntegration)
}

func TestMarkProcessedAndFailed(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	first, err := f.service.Ingest(ctx, "hookplatform", "orders/create", []byte(`{"n":1}`), "")
	require.NoError(t, err)
	second, err := f.service.Ingest(ctx, "hookplatform", "orders/create", []byte(`{"n":2}`), "")
	require.NoError(t, err)

	processed, err := f.service.MarkProcessed(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, processed.Processed)
	require.NotNil(t, processed.ProcessedAt)

	failed, err := f.service.MarkFailed(ctx, second.ID, "handler exploded")
	require.NoError(t, err)
	assert.False(t, failed.Processed)
	assert.Equal(t, "handler exploded", failed.ErrorMessage)

	unprocessed, err := f.service.ListUnprocessed(ctx, "hookplatform", 0)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, second.ID, unprocessed[0].ID)
}

func TestGetEventUnknown(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.service.GetEvent(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrWebhookEventNotFound)
}
