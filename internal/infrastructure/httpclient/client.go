package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
)

// TokenRefresher is the slice of the token lifecycle the client needs: a
// single refresh attempt for a connection. Implemented by the application
// token service.
type TokenRefresher interface {
	Refresh(ctx context.Context, connectionID string) (*domain.Connection, error)
}

// Request describes one call against the connection's platform. Body, when
// non-nil, is JSON-encoded.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Client issues authenticated, rate-limited calls on behalf of one
// connection. Every call waits on the quota gate, re-reads the connection
// for current credentials, and on a 401 performs exactly one
// refresh-and-retry before giving up. Other HTTP statuses are returned
// untouched; retrying them is the adapter's business.
type Client struct {
	connectionID string
	integration  *domain.Integration
	conns        ports.ConnectionRepository
	tokens       TokenRefresher
	gate         ports.RequestGate
	httpClient   *http.Client
	logger       zerolog.Logger
}

// New binds a client to a connection. The caller (the client factory) has
// already resolved the integration descriptor.
func New(
	connectionID string,
	integration *domain.Integration,
	conns ports.ConnectionRepository,
	tokens TokenRefresher,
	gate ports.RequestGate,
	timeout time.Duration,
	logger zerolog.Logger,
) *Client {
	return &Client{
		connectionID: connectionID,
		integration:  integration,
		conns:        conns,
		tokens:       tokens,
		gate:         gate,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// ConnectionID returns the id of the bound connection.
func (c *Client) ConnectionID() string { return c.connectionID }

// Get issues a GET against path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST with a JSON body against path.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do executes the request. The returned response may carry any status; only
// transport failures, gate cancellation, and request-building problems
// surface as errors.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = encoded
	}

	start := time.Now()
	if err := c.gate.Acquire(ctx, c.connectionID, c.integration.RateLimit); err != nil {
		return nil, err
	}
	metrics.RateLimitWaitSeconds.WithLabelValues(c.integration.ID).Observe(time.Since(start).Seconds())

	c.refreshIfExpired(ctx)

	resp, err := c.issue(ctx, req, body)
	if err != nil {
		metrics.OutboundRequestsTotal.WithLabelValues(c.integration.ID, "transport_error").Inc()
		return nil, &domain.UpstreamError{IntegrationID: c.integration.ID, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && c.integration.AuthKind == domain.AuthKindOAuth {
		retried, retryErr := c.refreshAndRetry(ctx, req, body, resp)
		if retryErr != nil {
			metrics.OutboundRequestsTotal.WithLabelValues(c.integration.ID, "transport_error").Inc()
			return nil, retryErr
		}
		resp = retried
	}

	metrics.OutboundRequestsTotal.WithLabelValues(c.integration.ID, statusClass(resp.StatusCode)).Inc()
	return resp, nil
}

// refreshIfExpired rotates the token before a request when the stored expiry
// has lapsed. Expiry is only ever checked here, on use; a failed proactive
// refresh falls through to the request and the ordinary 401 path.
func (c *Client) refreshIfExpired(ctx context.Context) {
	if c.integration.AuthKind != domain.AuthKindOAuth {
		return
	}
	conn, err := c.conns.Get(ctx, c.connectionID)
	if err != nil || conn == nil || !conn.Expired(time.Now()) {
		return
	}

	c.logger.Debug().Str("connectionId", c.connectionID).Msg("Access token expired, refreshing before request")
	if _, err := c.tokens.Refresh(ctx, c.connectionID); err != nil {
		c.logger.Warn().Err(err).Str("connectionId", c.connectionID).Msg("Pre-request token refresh failed")
	}
}

// refreshAndRetry attempts the single allowed refresh-and-retry for a 401.
// When the refresh fails the original 401 response is handed back unchanged
// so the caller sees exactly what the platform said. The retried request is
// a request like any other: it takes its own slot in the quota window.
func (c *Client) refreshAndRetry(ctx context.Context, req *Request, body []byte, original *http.Response) (*http.Response, error) {
	c.logger.Info().
		Str("connectionId", c.connectionID).
		Str("integration", c.integration.ID).
		Msg("Received 401, attempting token refresh")

	if _, err := c.tokens.Refresh(ctx, c.connectionID); err != nil {
		c.logger.Warn().Err(err).Str("connectionId", c.connectionID).Msg("Token refresh failed")
		return original, nil
	}

	io.Copy(io.Discard, original.Body)
	original.Body.Close()

	start := time.Now()
	if err := c.gate.Acquire(ctx, c.connectionID, c.integration.RateLimit); err != nil {
		return nil, err
	}
	metrics.RateLimitWaitSeconds.WithLabelValues(c.integration.ID).Observe(time.Since(start).Seconds())

	retried, err := c.issue(ctx, req, body)
	if err != nil {
		return nil, &domain.UpstreamError{IntegrationID: c.integration.ID, Err: err}
	}
	return retried, nil
}

// issue builds and sends one HTTP request using the connection's current
// credentials. The connection is re-fetched every time; snapshots taken
// before a wait are never trusted.
func (c *Client) issue(ctx context.Context, req *Request, body []byte) (*http.Response, error) {
	conn, err := c.conns.Get(ctx, c.connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrConnectionNotFound
	}

	target, err := c.buildURL(conn, req)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq, conn)

	return c.httpClient.Do(httpReq)
}

// authorize injects the connection's credential into the request.
func (c *Client) authorize(req *http.Request, conn *domain.Connection) {
	switch c.integration.AuthKind {
	case domain.AuthKindAPIKey:
		if c.integration.APIKeyHeader != "" {
			req.Header.Set(c.integration.APIKeyHeader, conn.Credentials.APIKey)
		} else {
			req.Header.Set("Authorization", "Bearer "+conn.Credentials.APIKey)
		}
	default:
		req.Header.Set("Authorization", "Bearer "+conn.Credentials.AccessToken)
	}
}

// buildURL joins the descriptor's base URL (with {placeholders} expanded
// from connection metadata) and the request path.
func (c *Client) buildURL(conn *domain.Connection, req *Request) (string, error) {
	base, err := ExpandTemplate(c.integration.BaseURL, conn)
	if err != nil {
		return "", err
	}

	target := strings.TrimSuffix(base, "/")
	if req.Path != "" {
		target += "/" + strings.TrimPrefix(req.Path, "/")
	}
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target, nil
}

// ExpandTemplate substitutes {key} placeholders in a URL template with
// values from the connection's metadata.
func ExpandTemplate(template string, conn *domain.Connection) (string, error) {
	out := template
	for {
		open := strings.Index(out, "{")
		if open < 0 {
			return out, nil
		}
		end := strings.Index(out[open:], "}")
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in base URL %q", template)
		}
		key := out[open+1 : open+end]
		value := conn.MetadataString(key)
		if value == "" {
			return "", fmt.Errorf("connection metadata missing %q for base URL %q", key, template)
		}
		out = out[:open] + value + out[open+end+1:]
	}
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
