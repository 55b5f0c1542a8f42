package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/pubsub"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/webhook"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

// WebhookService ingests inbound platform events: verifies signatures where
// the platform signs, persists the event unprocessed, and fans it out to
// in-process subscribers. Acting on the payload is downstream's job.
type WebhookService struct {
	registry *registry.Registry
	events   ports.WebhookEventRepository
	pubsub   *pubsub.EventPubSub
	logger   zerolog.Logger
}

// NewWebhookService creates a webhook ingestor.
func NewWebhookService(reg *registry.Registry, events ports.WebhookEventRepository, ps *pubsub.EventPubSub, logger zerolog.Logger) *WebhookService {
	return &WebhookService{registry: reg, events: events, pubsub: ps, logger: logger}
}

// Ingest verifies and records an event. A supplied signature must match the
// integration's secret or the event is rejected outright. An event arriving
// without a signature is accepted unverified even when a secret is
// configured; that inherited policy is logged loudly rather than silently
// tightened.
func (s *WebhookService) Ingest(ctx context.Context, integrationID, eventType string, payload json.RawMessage, signature string) (*domain.WebhookEvent, error) {
	integration, err := s.registry.Describe(integrationID)
	if err != nil {
		return nil, err
	}

	verified := false
	if integration.WebhookSecret != "" && signature != "" {
		verifier := webhook.NewVerifier(integration.WebhookSecret)
		if err := verifier.Verify(payload, signature); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues(integrationID, "rejected").Inc()
			s.logger.Warn().
				Str("integration", integrationID).
				Str("eventType", eventType).
				Msg("Webhook signature verification failed")
			return nil, err
		}
		verified = true
	} else if integration.WebhookSecret != "" {
		s.logger.Warn().
			Str("integration", integrationID).
			Str("eventType", eventType).
			Msg("Accepting unsigned webhook for integration with a configured secret")
	}

	event := &domain.WebhookEvent{
		ID:            uuid.NewString(),
		IntegrationID: integrationID,
		EventType:     eventType,
		Payload:       payload,
		Verified:      verified,
		Processed:     false,
		ReceivedAt:    time.Now(),
	}
	if err := s.events.Put(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}

	metrics.WebhookEventsTotal.WithLabelValues(integrationID, strconv.FormatBool(verified)).Inc()
	s.logger.Info().
		Str("eventId", event.ID).
		Str("integration", integrationID).
		Str("eventType", eventType).
		Bool("verified", verified).
		Msg("Ingested webhook event")

	if s.pubsub != nil {
		s.pubsub.Publish(event)
	}

	return event, nil
}

// GetEvent retrieves an event by id.
func (s *WebhookService) GetEvent(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrWebhookEventNotFound, eventID)
	}
	return event, nil
}

// ListUnprocessed retrieves pending events for an integration, oldest first.
func (s *WebhookService) ListUnprocessed(ctx context.Context, integrationID string, limit int) ([]*domain.WebhookEvent, error) {
	events, err := s.events.ListUnprocessed(ctx, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return events, nil
}

// MarkProcessed flips an event's processed flag. Consumers are at-least-once;
// re-marking is harmless.
func (s *WebhookService) MarkProcessed(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	event.Processed = true
	event.ProcessedAt = &now
	event.ErrorMessage = ""
	if err := s.events.Put(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}
	return event, nil
}

// MarkFailed records a processing failure without consuming the event.
func (s *WebhookService) MarkFailed(ctx context.Context, eventID, errorMessage string) (*domain.WebhookEvent, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	event.ErrorMessage = errorMessage
	if err := s.events.Put(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}
	return event, nil
}
