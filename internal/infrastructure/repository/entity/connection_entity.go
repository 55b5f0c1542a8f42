package entity

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// ConnectionDoc is the MongoDB shape of a connection. The framework key is
// the uuid in connectionId, not Mongo's object id.
type ConnectionDoc struct {
	ConnectionID  string         `bson:"_id"`
	TenantID      string         `bson:"tenantId"`
	IntegrationID string         `bson:"integrationId"`
	Status        string         `bson:"status"`
	AccessToken   string         `bson:"accessToken,omitempty"`
	RefreshToken  string         `bson:"refreshToken,omitempty"`
	APIKey        string         `bson:"apiKey,omitempty"`
	ExpiresAt     *time.Time     `bson:"expiresAt,omitempty"`
	Metadata      map[string]any `bson:"metadata,omitempty"`
	LastSyncAt    *time.Time     `bson:"lastSyncAt,omitempty"`
	ErrorMessage  string         `bson:"errorMessage,omitempty"`
	CreatedAt     time.Time      `bson:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt"`
}

// ToDomain converts the document to a domain connection.
func (d *ConnectionDoc) ToDomain() *domain.Connection {
	return &domain.Connection{
		ID:            d.ConnectionID,
		TenantID:      d.TenantID,
		IntegrationID: d.IntegrationID,
		Status:        domain.ConnectionStatus(d.Status),
		Credentials: domain.Credentials{
			AccessToken:  d.AccessToken,
			RefreshToken: d.RefreshToken,
			APIKey:       d.APIKey,
			ExpiresAt:    d.ExpiresAt,
		},
		Metadata:     d.Metadata,
		LastSyncAt:   d.LastSyncAt,
		ErrorMessage: d.ErrorMessage,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ConnectionDocFromDomain converts a domain connection to its document form.
func ConnectionDocFromDomain(conn *domain.Connection) *ConnectionDoc {
	return &ConnectionDoc{
		ConnectionID:  conn.ID,
		TenantID:      conn.TenantID,
		IntegrationID: conn.IntegrationID,
		Status:        string(conn.Status),
		AccessToken:   conn.Credentials.AccessToken,
		RefreshToken:  conn.Credentials.RefreshToken,
		APIKey:        conn.Credentials.APIKey,
		ExpiresAt:     conn.Credentials.ExpiresAt,
		Metadata:      conn.Metadata,
		LastSyncAt:    conn.LastSyncAt,
		ErrorMessage:  conn.ErrorMessage,
		CreatedAt:     conn.CreatedAt,
		UpdatedAt:     conn.UpdatedAt,
	}
}
