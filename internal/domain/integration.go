package domain

import "time"

// AuthKind describes how a platform authenticates API calls.
type AuthKind string

const (
	AuthKindOAuth   AuthKind = "oauth"
	AuthKindAPIKey  AuthKind = "api_key"
	AuthKindWebhook AuthKind = "webhook"
)

// RateLimit is a platform quota: at most Requests calls per Window.
type RateLimit struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// Integration describes a known external platform and its OAuth and
// rate-limit parameters. Descriptors are immutable after registry start-up.
type Integration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AuthKind  AuthKind  `json:"auth_kind"`
	BaseURL   string    `json:"base_url"` // may contain {placeholders} filled from connection metadata
	AuthURL   string    `json:"auth_url,omitempty"`
	TokenURL  string    `json:"token_url,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	RateLimit RateLimit `json:"rate_limit"`

	// WebhookSecret is the resolved signing secret for inbound events.
	// Empty means events from this platform are not signed.
	WebhookSecret string `json:"-"`

	// APIKeyHeader is the header the platform expects a raw API key in.
	// Empty means a standard bearer Authorization header.
	APIKeyHeader string `json:"api_key_header,omitempty"`

	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`
}
