package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// EventChannel is one subscriber's view of the webhook event stream.
type EventChannel struct {
	ID     string
	Filter *EventFilter
	Events chan *domain.WebhookEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// EventFilter narrows a subscription to specific integrations or event
// types. A nil filter matches everything.
type EventFilter struct {
	IntegrationIDs []string
	EventTypes     []string
}

// EventPubSub fans ingested webhook events out to in-process subscribers.
// Delivery is best-effort: a subscriber whose buffer is full misses the
// event rather than stalling ingestion.
type EventPubSub struct {
	mu       sync.RWMutex
	channels map[string]*EventChannel
	logger   zerolog.Logger
	nextID   int64
}

// NewEventPubSub creates an empty pub/sub hub.
func NewEventPubSub(logger zerolog.Logger) *EventPubSub {
	return &EventPubSub{
		channels: make(map[string]*EventChannel),
		logger:   logger,
	}
}

// Subscribe creates a subscription that lives until ctx is cancelled or
// Unsubscribe is called.
func (ps *EventPubSub) Subscribe(ctx context.Context, filter *EventFilter) *EventChannel {
	subCtx, cancel := context.WithCancel(ctx)

	ps.mu.Lock()
	ps.nextID++
	channel := &EventChannel{
		ID:     fmt.Sprintf("channel-%d", ps.nextID),
		Filter: filter,
		Events: make(chan *domain.WebhookEvent, 16),
		ctx:    subCtx,
		cancel: cancel,
	}
	ps.channels[channel.ID] = channel
	ps.mu.Unlock()

	ps.logger.Debug().Str("channelId", channel.ID).Msg("Webhook subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(channel.ID)
	}()

	return channel
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *EventPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	channel.cancel()
	close(channel.Events)
	delete(ps.channels, channelID)

	ps.logger.Debug().Str("channelId", channelID).Msg("Webhook subscription removed")
}

// Publish delivers an event to every matching subscriber.
func (ps *EventPubSub) Publish(event *domain.WebhookEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, channel := range ps.channels {
		if !matches(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Str("eventType", event.EventType).
				Msg("Subscriber buffer full, dropping event")
		}
	}
}

func matches(event *domain.WebhookEvent, filter *EventFilter) bool {
	if filter == nil {
		return true
	}
	if len(filter.IntegrationIDs) > 0 && !contains(filter.IntegrationIDs, event.IntegrationID) {
		return false
	}
	if len(filter.EventTypes) > 0 && !contains(filter.EventTypes, event.EventType) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
