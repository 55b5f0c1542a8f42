package domain

import "time"

// OAuthSession pins an authorization-URL issuance to the tenant and
// integration that requested it. The random state is the lookup key; the
// callback must present it back before a code exchange is attempted.
type OAuthSession struct {
	ID            string    `json:"id"`
	State         string    `json:"state"`
	TenantID      string    `json:"tenant_id"`
	IntegrationID string    `json:"integration_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}
