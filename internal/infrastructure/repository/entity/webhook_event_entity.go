package entity

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// WebhookEventDoc is the MongoDB shape of an ingested webhook event. The
// payload is stored as raw bytes so unknown event shapes survive round-trips
// untouched.
type WebhookEventDoc struct {
	EventID       string     `bson:"_id"`
	IntegrationID string     `bson:"integrationId"`
	EventType     string     `bson:"eventType"`
	Payload       []byte     `bson:"payload"`
	Verified      bool       `bson:"verified"`
	Processed     bool       `bson:"processed"`
	ProcessedAt   *time.Time `bson:"processedAt,omitempty"`
	ErrorMessage  string     `bson:"errorMessage,omitempty"`
	ReceivedAt    time.Time  `bson:"receivedAt"`
}

// ToDomain converts the document to a domain webhook event.
func (d *WebhookEventDoc) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:            d.EventID,
		IntegrationID: d.IntegrationID,
		EventType:     d.EventType,
		Payload:       d.Payload,
		Verified:      d.Verified,
		Processed:     d.Processed,
		ProcessedAt:   d.ProcessedAt,
		ErrorMessage:  d.ErrorMessage,
		ReceivedAt:    d.ReceivedAt,
	}
}

// WebhookEventDocFromDomain converts a domain webhook event to its document
// form.
func WebhookEventDocFromDomain(event *domain.WebhookEvent) *WebhookEventDoc {
	return &WebhookEventDoc{
		EventID:       event.ID,
		IntegrationID: event.IntegrationID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		Verified:      event.Verified,
		Processed:     event.Processed,
		ProcessedAt:   event.ProcessedAt,
		ErrorMessage:  event.ErrorMessage,
		ReceivedAt:    event.ReceivedAt,
	}
}
