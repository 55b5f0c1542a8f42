package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/httpclient"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

// refreshReuseWindow is how long a completed refresh satisfies concurrent
// callers that were queued on the same connection's refresh lock.
const refreshReuseWindow = 10 * time.Second

// TokenService owns the OAuth credential lifecycle: authorization-URL
// construction, code-for-token exchange, and refresh-token rotation.
type TokenService struct {
	registry    *registry.Registry
	conns       ports.ConnectionRepository
	sessions    ports.SessionRepository
	httpClient  *http.Client
	redirectURI string
	sessionTTL  time.Duration
	logger      zerolog.Logger

	mu           sync.Mutex
	refreshLocks map[string]*sync.Mutex
	lastRefresh  map[string]time.Time
}

// NewTokenService creates a token service. Token-endpoint calls use their own
// HTTP client with the given timeout.
func NewTokenService(
	reg *registry.Registry,
	conns ports.ConnectionRepository,
	sessions ports.SessionRepository,
	redirectURI string,
	sessionTTL time.Duration,
	timeout time.Duration,
	logger zerolog.Logger,
) *TokenService {
	return &TokenService{
		registry:     reg,
		conns:        conns,
		sessions:     sessions,
		httpClient:   &http.Client{Timeout: timeout},
		redirectURI:  redirectURI,
		sessionTTL:   sessionTTL,
		logger:       logger,
		refreshLocks: make(map[string]*sync.Mutex),
		lastRefresh:  make(map[string]time.Time),
	}
}

// tokenResponse is the subset of an OAuth token-endpoint reply the framework
// acts on. The full body is kept as connection metadata.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthorizationURL builds the consent URL for an OAuth integration and
// records a CSRF session for the state. When state is empty a random one is
// generated; either way the callback must present it back.
func (s *TokenService) AuthorizationURL(ctx context.Context, integrationID, tenantID, state string) (string, error) {
	integration, err := s.registry.Describe(integrationID)
	if err != nil {
		return "", err
	}
	if integration.AuthKind != domain.AuthKindOAuth {
		return "", fmt.Errorf("%w: %s is %s", domain.ErrUnsupportedAuthKind, integrationID, integration.AuthKind)
	}

	if state == "" {
		stateBytes := make([]byte, 16)
		if _, err := rand.Read(stateBytes); err != nil {
			return "", fmt.Errorf("failed to generate state: %w", err)
		}
		state = hex.EncodeToString(stateBytes)
	}

	session := &domain.OAuthSession{
		ID:            uuid.NewString(),
		State:         state,
		TenantID:      tenantID,
		IntegrationID: integrationID,
		ExpiresAt:     time.Now().Add(s.sessionTTL),
		CreatedAt:     time.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create oauth session: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", integration.ClientID)
	params.Set("redirect_uri", s.redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(integration.Scopes, " "))
	params.Set("state", state)

	s.logger.Info().
		Str("integration", integrationID).
		Str("tenantId", tenantID).
		Msg("Built authorization URL")

	return integration.AuthURL + "?" + params.Encode(), nil
}

// ValidateState resolves a callback's CSRF state to the session created at
// authorization time and consumes it so it cannot be replayed.
func (s *TokenService) ValidateState(ctx context.Context, state string) (*domain.OAuthSession, error) {
	session, err := s.sessions.GetByState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to look up oauth session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if err := s.sessions.Delete(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to consume oauth session: %w", err)
	}
	return session, nil
}

// ExchangeCode performs the authorization-code grant and persists the
// resulting connection in active status. The exchange is never retried; on
// failure the caller decides.
func (s *TokenService) ExchangeCode(ctx context.Context, integrationID, code, tenantID string) (*domain.Connection, error) {
	integration, err := s.registry.Describe(integrationID)
	if err != nil {
		return nil, err
	}
	if integration.AuthKind != domain.AuthKindOAuth {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrUnsupportedAuthKind, integrationID, integration.AuthKind)
	}

	payload := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     integration.ClientID,
		"client_secret": integration.ClientSecret,
		"redirect_uri":  s.redirectURI,
		"code":          code,
	}

	token, metadata, err := s.postTokenEndpoint(ctx, integration.TokenURL, payload)
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues(integrationID, "failure").Inc()
		s.logger.Error().Err(err).Str("integration", integrationID).Msg("Code exchange failed")
		if exchangeErr, ok := err.(*upstreamTokenError); ok {
			return nil, &domain.TokenExchangeError{
				IntegrationID: integrationID,
				StatusCode:    exchangeErr.status,
				Body:          exchangeErr.body,
			}
		}
		return nil, &domain.TokenExchangeError{IntegrationID: integrationID, Err: err}
	}

	now := time.Now()
	conn := &domain.Connection{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Status:        domain.ConnectionActive,
		Credentials: domain.Credentials{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		},
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if token.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(token.ExpiresIn) * time.Second)
		conn.Credentials.ExpiresAt = &expiresAt
	}

	if err := s.conns.Put(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist connection: %w", err)
	}

	metrics.TokenExchangesTotal.WithLabelValues(integrationID, "success").Inc()
	s.logger.Info().
		Str("integration", integrationID).
		Str("tenantId", tenantID).
		Str("connectionId", conn.ID).
		Msg("Created connection")

	return conn, nil
}

// Refresh rotates a connection's access token using its refresh token. A
// failed refresh is terminal: the connection moves to error status and stays
// there until a human reconnects. Concurrent refreshes of one connection
// serialize on a per-connection lock; a caller queued behind a refresh that
// just completed reuses its result instead of burning the rotated refresh
// token again.
func (s *TokenService) Refresh(ctx context.Context, connectionID string) (*domain.Connection, error) {
	lock := s.refreshLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	conn, err := s.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, connectionID)
	}

	if s.recentlyRefreshed(connectionID) && conn.Status == domain.ConnectionActive {
		return conn, nil
	}

	integration, err := s.registry.Describe(conn.IntegrationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrIntegrationNotFound, conn.IntegrationID)
	}
	if conn.Credentials.RefreshToken == "" {
		return nil, fmt.Errorf("%w: connection %s", domain.ErrMissingRefreshToken, connectionID)
	}

	tokenURL, err := s.resolveTokenURL(integration.TokenURL, conn)
	if err != nil {
		return nil, s.failRefresh(ctx, conn, 0, "", err)
	}

	payload := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     integration.ClientID,
		"client_secret": integration.ClientSecret,
		"refresh_token": conn.Credentials.RefreshToken,
	}

	token, _, err := s.postTokenEndpoint(ctx, tokenURL, payload)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(conn.IntegrationID, "failure").Inc()
		if upstreamErr, ok := err.(*upstreamTokenError); ok {
			return nil, s.failRefresh(ctx, conn, upstreamErr.status, upstreamErr.body, nil)
		}
		return nil, s.failRefresh(ctx, conn, 0, "", err)
	}

	conn.Credentials.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.Credentials.RefreshToken = token.RefreshToken
	}
	conn.Credentials.ExpiresAt = nil
	if token.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		conn.Credentials.ExpiresAt = &expiresAt
	}
	conn.Status = domain.ConnectionActive
	conn.ErrorMessage = ""
	conn.UpdatedAt = time.Now()

	if err := s.conns.Put(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed connection: %w", err)
	}
	s.markRefreshed(connectionID)

	metrics.TokenRefreshesTotal.WithLabelValues(conn.IntegrationID, "success").Inc()
	s.logger.Info().Str("connectionId", connectionID).Msg("Refreshed access token")

	return conn, nil
}

// failRefresh records the terminal failure on the connection before
// returning it to the caller.
func (s *TokenService) failRefresh(ctx context.Context, conn *domain.Connection, status int, body string, cause error) error {
	refreshErr := &domain.RefreshError{ConnectionID: conn.ID, StatusCode: status, Body: body, Err: cause}

	conn.Status = domain.ConnectionError
	conn.ErrorMessage = refreshErr.Error()
	conn.UpdatedAt = time.Now()
	if putErr := s.conns.Put(ctx, conn); putErr != nil {
		s.logger.Error().Err(putErr).Str("connectionId", conn.ID).Msg("Failed to persist refresh failure")
	}

	s.logger.Error().
		Str("connectionId", conn.ID).
		Int("status", status).
		Msg("Token refresh failed, connection moved to error")

	return refreshErr
}

// resolveTokenURL expands templated token endpoints (e.g. Shopify's
// per-shop URL) from connection metadata.
func (s *TokenService) resolveTokenURL(tokenURL string, conn *domain.Connection) (string, error) {
	if !strings.Contains(tokenURL, "{") {
		return tokenURL, nil
	}
	return httpclient.ExpandTemplate(tokenURL, conn)
}

// upstreamTokenError carries a non-2xx token-endpoint reply.
type upstreamTokenError struct {
	status int
	body   string
}

func (e *upstreamTokenError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d: %s", e.status, e.body)
}

// postTokenEndpoint POSTs a JSON grant request and decodes the reply. The
// raw body is also returned as a metadata map.
func (s *TokenService) postTokenEndpoint(ctx context.Context, tokenURL string, payload map[string]string) (*tokenResponse, map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode grant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &upstreamTokenError{status: resp.StatusCode, body: string(respBody)}
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return nil, nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	var metadata map[string]any
	_ = json.Unmarshal(respBody, &metadata)

	return &token, metadata, nil
}

func (s *TokenService) refreshLock(connectionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.refreshLocks[connectionID]
	if !ok {
		lock = &sync.Mutex{}
		s.refreshLocks[connectionID] = lock
	}
	return lock
}

func (s *TokenService) recentlyRefreshed(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastRefresh[connectionID]) < refreshReuseWindow
}

func (s *TokenService) markRefreshed(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRefresh[connectionID] = time.Now()
}
