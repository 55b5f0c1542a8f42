package domain

import (
	"encoding/json"
	"time"
)

// ConnectionStatus is the lifecycle state of a tenant's credential grant.
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionInactive ConnectionStatus = "inactive"
	ConnectionError    ConnectionStatus = "error"
	ConnectionExpired  ConnectionStatus = "expired"
)

// Credentials holds the secret material for a connection.
type Credentials struct {
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	APIKey       string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Connection is one tenant's grant to one platform. Connections are created
// only by a successful code exchange or direct API-key registration, and are
// never hard-deleted by the framework; disconnect moves them to inactive.
type Connection struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	IntegrationID string           `json:"integration_id"`
	Status        ConnectionStatus `json:"status"`
	Credentials   Credentials      `json:"credentials"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
	LastSyncAt    *time.Time       `json:"last_sync_at,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Expired reports whether the access token's expiry has passed. Connections
// without an expiry never expire (Shopify-style permanent tokens).
func (c *Connection) Expired(now time.Time) bool {
	return c.Credentials.ExpiresAt != nil && now.After(*c.Credentials.ExpiresAt)
}

// MetadataString returns a string metadata value, or "" when absent.
func (c *Connection) MetadataString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	switch v := c.Metadata[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
