package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// Registry is the static catalogue of external platforms the framework can
// connect to. It is populated once at construction and read-only afterwards;
// quotas are policy defaults and never renegotiated at runtime.
type Registry struct {
	integrations map[string]*domain.Integration
	logger       zerolog.Logger
}

// New builds a registry holding the default platform catalogue. Client
// credentials and webhook secrets are resolved from the environment using the
// <ID>_CLIENT_ID / <ID>_CLIENT_SECRET / <ID>_WEBHOOK_SECRET convention.
func New(logger zerolog.Logger) *Registry {
	r := &Registry{
		integrations: make(map[string]*domain.Integration),
		logger:       logger,
	}
	for _, integration := range defaultIntegrations() {
		r.Register(integration)
	}
	logger.Info().Int("integrations", len(r.integrations)).Msg("Integration registry initialized")
	return r
}

// Register adds a descriptor. Intended for construction time only; tests use
// it to register fake platforms pointing at local servers.
func (r *Registry) Register(integration *domain.Integration) {
	if integration.ClientID == "" {
		integration.ClientID = os.Getenv(envKey(integration.ID, "CLIENT_ID"))
	}
	if integration.ClientSecret == "" {
		integration.ClientSecret = os.Getenv(envKey(integration.ID, "CLIENT_SECRET"))
	}
	if integration.WebhookSecret == "" {
		integration.WebhookSecret = os.Getenv(envKey(integration.ID, "WEBHOOK_SECRET"))
	}
	r.integrations[integration.ID] = integration
}

// Describe returns the descriptor for an integration id.
func (r *Registry) Describe(id string) (*domain.Integration, error) {
	integration, ok := r.integrations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownIntegration, id)
	}
	return integration, nil
}

// List returns all registered descriptors.
func (r *Registry) List() []*domain.Integration {
	out := make([]*domain.Integration, 0, len(r.integrations))
	for _, integration := range r.integrations {
		out = append(out, integration)
	}
	return out
}

func envKey(id, suffix string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", "_")) + "_" + suffix
}

func defaultIntegrations() []*domain.Integration {
	return []*domain.Integration{
		{
			ID:        "quickbooks",
			Name:      "QuickBooks Online",
			AuthKind:  domain.AuthKindOAuth,
			BaseURL:   "https://sandbox-quickbooks.api.intuit.com",
			AuthURL:   "https://appcenter.intuit.com/connect/oauth2",
			TokenURL:  "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer",
			Scopes:    []string{"com.intuit.quickbooks.accounting"},
			RateLimit: domain.RateLimit{Requests: 500, Window: time.Hour},
		},
		{
			ID:        "xero",
			Name:      "Xero",
			AuthKind:  domain.AuthKindOAuth,
			BaseURL:   "https://api.xero.com",
			AuthURL:   "https://login.xero.com/identity/connect/authorize",
			TokenURL:  "https://identity.xero.com/connect/token",
			Scopes:    []string{"accounting.transactions", "accounting.contacts.read"},
			RateLimit: domain.RateLimit{Requests: 1000, Window: time.Hour},
		},
		{
			ID:        "shopify",
			Name:      "Shopify",
			AuthKind:  domain.AuthKindOAuth,
			BaseURL:   "https://{shop}.myshopify.com/admin/api/2023-10",
			AuthURL:   "https://{shop}.myshopify.com/admin/oauth/authorize",
			TokenURL:  "https://{shop}.myshopify.com/admin/oauth/access_token",
			Scopes:    []string{"read_orders", "read_products", "read_customers"},
			RateLimit: domain.RateLimit{Requests: 40, Window: time.Second},
		},
		{
			ID:        "salesforce",
			Name:      "Salesforce",
			AuthKind:  domain.AuthKindOAuth,
			BaseURL:   "https://{instance}.salesforce.com/services/data/v58.0",
			AuthURL:   "https://login.salesforce.com/services/oauth2/authorize",
			TokenURL:  "https://login.salesforce.com/services/oauth2/token",
			Scopes:    []string{"api", "refresh_token"},
			RateLimit: domain.RateLimit{Requests: 1000, Window: time.Hour},
		},
		{
			ID:        "slack",
			Name:      "Slack",
			AuthKind:  domain.AuthKindOAuth,
			BaseURL:   "https://slack.com/api",
			AuthURL:   "https://slack.com/oauth/v2/authorize",
			TokenURL:  "https://slack.com/api/oauth.v2.access",
			Scopes:    []string{"chat:write", "channels:read", "users:read"},
			RateLimit: domain.RateLimit{Requests: 1, Window: time.Second},
		},
		{
			ID:        "stripe",
			Name:      "Stripe",
			AuthKind:  domain.AuthKindAPIKey,
			BaseURL:   "https://api.stripe.com/v1",
			RateLimit: domain.RateLimit{Requests: 100, Window: time.Second},
		},
		{
			ID:        "plaid",
			Name:      "Plaid",
			AuthKind:  domain.AuthKindWebhook,
			BaseURL:   "https://production.plaid.com",
			RateLimit: domain.RateLimit{Requests: 50, Window: time.Minute},
		},
	}
}
