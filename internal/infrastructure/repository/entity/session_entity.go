package entity

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// SessionDoc is the MongoDB shape of an OAuth CSRF session.
type SessionDoc struct {
	SessionID     string    `bson:"_id"`
	State         string    `bson:"state"`
	TenantID      string    `bson:"tenantId"`
	IntegrationID string    `bson:"integrationId"`
	ExpiresAt     time.Time `bson:"expiresAt"`
	CreatedAt     time.Time `bson:"createdAt"`
}

// ToDomain converts the document to a domain session.
func (d *SessionDoc) ToDomain() *domain.OAuthSession {
	return &domain.OAuthSession{
		ID:            d.SessionID,
		State:         d.State,
		TenantID:      d.TenantID,
		IntegrationID: d.IntegrationID,
		ExpiresAt:     d.ExpiresAt,
		CreatedAt:     d.CreatedAt,
	}
}

// SessionDocFromDomain converts a domain session to its document form.
func SessionDocFromDomain(session *domain.OAuthSession) *SessionDoc {
	return &SessionDoc{
		SessionID:     session.ID,
		State:         session.State,
		TenantID:      session.TenantID,
		IntegrationID: session.IntegrationID,
		ExpiresAt:     session.ExpiresAt,
		CreatedAt:     session.CreatedAt,
	}
}
