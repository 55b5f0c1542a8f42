package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownIntegration   = errors.New("integration not found")
	ErrUnsupportedAuthKind  = errors.New("integration does not support this auth kind")
	ErrMissingRefreshToken  = errors.New("connection has no refresh token")
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrIntegrationNotFound  = errors.New("integration descriptor not found")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrSyncJobNotFound      = errors.New("sync job not found")
	ErrWebhookEventNotFound = errors.New("webhook event not found")
	ErrSessionNotFound      = errors.New("oauth session not found or expired")
)

// TokenExchangeError reports a failed authorization-code grant. The framework
// never retries the exchange; the caller decides.
type TokenExchangeError struct {
	IntegrationID string
	StatusCode    int
	Body          string
	Err           error
}

func (e *TokenExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange for %s failed: %v", e.IntegrationID, e.Err)
	}
	return fmt.Sprintf("token exchange for %s failed: status %d: %s", e.IntegrationID, e.StatusCode, e.Body)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// RefreshError reports a terminal refresh failure. The connection has already
// been moved to the error status by the time this is returned.
type RefreshError struct {
	ConnectionID string
	StatusCode   int
	Body         string
	Err          error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh for connection %s failed: %v", e.ConnectionID, e.Err)
	}
	return fmt.Sprintf("token refresh for connection %s failed: status %d: %s", e.ConnectionID, e.StatusCode, e.Body)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// UpstreamError wraps a transport-level failure of a data call. HTTP error
// statuses are not wrapped; they surface as ordinary responses.
type UpstreamError struct {
	IntegrationID string
	Err           error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.IntegrationID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
