package domain

import (
	"encoding/json"
	"time"
)

// WebhookEvent is a signed (or accepted-unsigned) inbound platform event.
// Immutable once created except for the processed flag, which a downstream
// consumer flips; events are never deleted by the framework.
type WebhookEvent struct {
	ID            string          `json:"id"`
	IntegrationID string          `json:"integration_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Verified      bool            `json:"verified"`
	Processed     bool            `json:"processed"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
}
