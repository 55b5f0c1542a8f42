package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

func TestPublishReachesMatchingSubscriber(t *testing.T) {
	ps := NewEventPubSub(zerolog.Nop())
	sub := ps.Subscribe(context.Background(), &EventFilter{IntegrationIDs: []string{"shopify"}})
	defer ps.Unsubscribe(sub.ID)

	ps.Publish(&domain.WebhookEvent{ID: "e1", IntegrationID: "shopify", EventType: "orders/create"})

	select {
	case event := <-sub.Events:
		assert.Equal(t, "e1", event.ID)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestPublishSkipsNonMatchingSubscriber(t *testing.T) {
	ps := NewEventPubSub(zerolog.Nop())
	sub := ps.Subscribe(context.Background(), &EventFilter{
		IntegrationIDs: []string{"shopify"},
		EventTypes:     []string{"orders/create"},
	})
	defer ps.Unsubscribe(sub.ID)

	ps.Publish(&domain.WebhookEvent{ID: "e1", IntegrationID: "xero", EventType: "orders/create"})
	ps.Publish(&domain.WebhookEvent{ID: "e2", IntegrationID: "shopify", EventType: "products/update"})

	select {
	case event := <-sub.Events:
		t.Fatalf("unexpected event delivered: %s", event.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNilFilterMatchesEverything(t *testing.T) {
	ps := NewEventPubSub(zerolog.Nop())
	sub := ps.Subscribe(context.Background(), nil)
	defer ps.Unsubscribe(sub.ID)

	ps.Publish(&domain.WebhookEvent{ID: "e1", IntegrationID: "slack", EventType: "message"})

	select {
	case event := <-sub.Events:
		assert.Equal(t, "e1", event.ID)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestContextCancellationRemovesSubscription(t *testing.T) {
	ps := NewEventPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	sub := ps.Subscribe(ctx, nil)

	cancel()

	require.Eventually(t, func() bool {
		ps.mu.RLock()
		defer ps.mu.RUnlock()
		_, exists := ps.channels[sub.ID]
		return !exists
	}, time.Second, 10*time.Millisecond)

	// Channel is closed once the subscription is gone.
	_, open := <-sub.Events
	assert.False(t, open)
}

func TestPublishDropsEventWhenBufferFull(t *testing.T) {
	ps := NewEventPubSub(zerolog.Nop())
	sub := ps.Subscribe(context.Background(), nil)
	defer ps.Unsubscribe(sub.ID)

	for i := 0; i < cap(sub.Events)+5; i++ {
		ps.Publish(&domain.WebhookEvent{ID: "e", IntegrationID: "slack", EventType: "message"})
	}

	assert.Len(t, sub.Events, cap(sub.Events))
}
