package httpclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/gate"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/httpclient"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository"
)

// fakeRefresher stands in for the token service: it swaps the stored access
// token for newToken, or fails with err.
type fakeRefresher struct {
	conns    *repository.InMemoryConnectionRepository
	newToken string
	err      error
	calls    int
}

func (f *fakeRefresher) Refresh(ctx context.Context, connectionID string) (*domain.Connection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	conn, err := f.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrConnectionNotFound
	}
	conn.Credentials.AccessToken = f.newToken
	conn.Credentials.ExpiresAt = nil
	conn.Status = domain.ConnectionActive
	if err := f.conns.Put(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func newClient(t *testing.T, integration *domain.Integration, conn *domain.Connection, refresher *fakeRefresher) (*httpclient.Client, *repository.InMemoryConnectionRepository) {
	t.Helper()

	conns := repository.NewInMemoryConnectionRepository()
	require.NoError(t, conns.Put(context.Background(), conn))
	if refresher == nil {
		refresher = &fakeRefresher{conns: conns}
	} else {
		refresher.conns = conns
	}

	client := httpclient.New(
		conn.ID,
		integration,
		conns,
		refresher,
		gate.NewLocalGate(zerolog.Nop()),
		5*time.Second,
		zerolog.Nop(),
	)
	return client, conns
}

func oauthIntegration(baseURL string, limit domain.RateLimit) *domain.Integration {
	return &domain.Integration{
		ID:        "fakepay",
		Name:      "FakePay",
		AuthKind:  domain.AuthKindOAuth,
		BaseURL:   baseURL,
		RateLimit: limit,
	}
}

func activeConnection(token string) *domain.Connection {
	return &domain.Connection{
		ID:            "conn-1",
		TenantID:      "tenant-1",
		IntegrationID: "fakepay",
		Status:        domain.ConnectionActive,
		Credentials:   domain.Credentials{AccessToken: token, RefreshToken: "rt-1"},
	}
}

func TestDoInjectsBearerToken(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 100, Window: time.Second}),
		activeConnection("at-1"), nil)

	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer at-1", authHeader)
}

func TestDoDelaysRequestsOverQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 2, Window: 600 * time.Millisecond}),
		activeConnection("at-1"), nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.Get(context.Background(), "/orders")
		require.NoError(t, err)
		resp.Body.Close()
	}
	// The third call waits for the window to slide rather than failing.
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
}

func TestDoRefreshesOnceOn401(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("Authorization") != "Bearer at-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	refresher := &fakeRefresher{newToken: "at-new"}
	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 100, Window: time.Second}),
		activeConnection("at-stale"), refresher)

	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 2, hits)
}

func TestDoReturnsOriginal401WhenRefreshFails(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token revoked"}`))
	}))
	defer server.Close()

	refresher := &fakeRefresher{err: errors.New("refresh endpoint said no")}
	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 100, Window: time.Second}),
		activeConnection("at-stale"), refresher)

	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	// The platform's own 401 comes back, body intact.
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"token revoked"}`, string(body))
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, hits)
}

func TestDoStopsAfterSingleRetry(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{newToken: "at-new"}
	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 100, Window: time.Second}),
		activeConnection("at-stale"), refresher)

	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 2, hits)
}

func TestDoRefreshesExpiredTokenBeforeRequest(t *testing.T) {
	var hits int
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	refresher := &fakeRefresher{newToken: "at-new"}
	conn := activeConnection("at-expired")
	expired := time.Now().Add(-time.Minute)
	conn.Credentials.ExpiresAt = &expired

	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 100, Window: time.Second}),
		conn, refresher)

	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	// A lapsed expiry is noticed on use and rotated before the call; the
	// platform never sees the stale token.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, hits)
	assert.Equal(t, "Bearer at-new", authHeader)
}

func TestRetriedRequestConsumesQuotaSlot(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("Authorization") != "Bearer at-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	refresher := &fakeRefresher{newToken: "at-new"}
	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 1, Window: 500 * time.Millisecond}),
		activeConnection("at-stale"), refresher)

	start := time.Now()
	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	// The retry after the refresh is throttled like any other request, so
	// with a one-per-window quota it has to wait out the window.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, hits)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestDoPassesNonAuthStatusesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	refresher := &fakeRefresher{newToken: "at-new"}
	client, _ := newClient(t,
		oauthIntegration(server.URL, domain.RateLimit{Requests: 100, Window: time.Second}),
		activeConnection("at-1"), refresher)

	resp, err := client.Get(context.Background(), "/orders/42")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, refresher.calls)
}

func TestDoExpandsBaseURLTemplate(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	integration := oauthIntegration(server.URL+"/stores/{shop}", domain.RateLimit{Requests: 100, Window: time.Second})
	conn := activeConnection("at-1")
	conn.Metadata = map[string]any{"shop": "acme"}

	client, _ := newClient(t, integration, conn, nil)

	resp, err := client.Get(context.Background(), "/orders")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/stores/acme/orders", path)
}

func TestDoFailsWhenTemplateMetadataMissing(t *testing.T) {
	integration := oauthIntegration("https://{shop}.example.com", domain.RateLimit{Requests: 100, Window: time.Second})
	client, _ := newClient(t, integration, activeConnection("at-1"), nil)

	_, err := client.Get(context.Background(), "/orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shop")
}

func TestDoSendsAPIKeyHeader(t *testing.T) {
	var apiKeyHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKeyHeader = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	integration := &domain.Integration{
		ID:           "keyed",
		Name:         "Keyed Platform",
		AuthKind:     domain.AuthKindAPIKey,
		BaseURL:      server.URL,
		APIKeyHeader: "X-Api-Key",
		RateLimit:    domain.RateLimit{Requests: 100, Window: time.Second},
	}
	conn := &domain.Connection{
		ID:            "conn-1",
		TenantID:      "tenant-1",
		IntegrationID: "keyed",
		Status:        domain.ConnectionActive,
		Credentials:   domain.Credentials{APIKey: "sk_test_123"},
	}

	client, _ := newClient(t, integration, conn, nil)

	resp, err := client.Get(context.Background(), "/charges")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "sk_test_123", apiKeyHeader)
}

func TestDoMissingConnection(t *testing.T) {
	conns := repository.NewInMemoryConnectionRepository()
	client := httpclient.New(
		"conn-gone",
		oauthIntegration("https://api.example.com", domain.RateLimit{Requests: 100, Window: time.Second}),
		conns,
		&fakeRefresher{conns: conns},
		gate.NewLocalGate(zerolog.Nop()),
		time.Second,
		zerolog.Nop(),
	)

	_, err := client.Get(context.Background(), "/orders")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestExpandTemplate(t *testing.T) {
	conn := &domain.Connection{Metadata: map[string]any{"shop": "acme", "region": "eu"}}

	out, err := httpclient.ExpandTemplate("https://{shop}.myshopify.com/{region}/api", conn)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.myshopify.com/eu/api", out)

	_, err = httpclient.ExpandTemplate("https://{shop", conn)
	assert.Error(t, err)

	plain, err := httpclient.ExpandTemplate("https://api.example.com", conn)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", plain)
}
