package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/application"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/config"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/encryption"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/gate"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/httpclient"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/pubsub"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/registry"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)

	if cfg.EncryptionKey == "" {
		logger.Fatal().Msg("ENCRYPTION_KEY environment variable is required")
	}
	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	conns := repository.NewMongoConnectionRepository(db, encryptionService)
	jobs := repository.NewMongoSyncJobRepository(db)
	events := repository.NewMongoWebhookEventRepository(db)
	sessions := repository.NewMongoSessionRepository(db)

	reg := registry.New(logger)

	var requestGate ports.RequestGate = gate.NewLocalGate(logger)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		requestGate = gate.NewRedisGate(redisClient, logger)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using shared Redis rate limiter")
	}

	eventPubSub := pubsub.NewEventPubSub(logger)

	tokenService := application.NewTokenService(reg, conns, sessions, cfg.RedirectURI(), cfg.SessionTTL, cfg.RequestTimeout, logger)
	connectionService := application.NewConnectionService(reg, conns, logger)
	clientFactory := application.NewClientFactory(reg, conns, tokenService, requestGate, cfg.RequestTimeout, logger)
	syncService := application.NewSyncService(conns, jobs, logger)
	webhookService := application.NewWebhookService(reg, events, eventPubSub, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(tenantMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/integrations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.List())
	})

	r.Get("/integrations/{integrationID}/authorize", authorizeHandler(tokenService, logger))
	r.Get("/integrations/oauth/callback", oauthCallbackHandler(tokenService, logger))
	r.Post("/integrations/{integrationID}/connections/apikey", registerAPIKeyHandler(connectionService, logger))
	r.Post("/integrations/{integrationID}/webhooks/{eventType}", webhookHandler(webhookService, logger))

	r.Get("/connections", func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.TenantIDFromContext(r.Context())
		list, err := connectionService.ListConnections(r.Context(), tenantID)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
	r.Get("/connections/{connectionID}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := connectionService.GetConnection(r.Context(), chi.URLParam(r, "connectionID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, conn)
	})
	r.Delete("/connections/{connectionID}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := connectionService.Disconnect(r.Context(), chi.URLParam(r, "connectionID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, conn)
	})

	r.Post("/connections/{connectionID}/sync-jobs", startSyncJobHandler(syncService, logger))
	r.Get("/connections/{connectionID}/sync-jobs", func(w http.ResponseWriter, r *http.Request) {
		list, err := syncService.ListByConnection(r.Context(), chi.URLParam(r, "connectionID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
	r.Get("/sync-jobs/{jobID}", func(w http.ResponseWriter, r *http.Request) {
		job, err := syncService.Get(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	})
	r.Post("/sync-jobs/{jobID}/running", func(w http.ResponseWriter, r *http.Request) {
		job, err := syncService.MarkRunning(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	})
	r.Post("/sync-jobs/{jobID}/complete", completeSyncJobHandler(syncService, logger))
	r.Post("/sync-jobs/{jobID}/fail", failSyncJobHandler(syncService, logger))

	// Authenticated pass-through for adapters and ad-hoc tooling: the call
	// rides the connection's quota gate and 401-retry logic.
	r.HandleFunc("/proxy/{connectionID}/*", proxyHandler(clientFactory, logger))

	r.Get("/integrations/{integrationID}/webhook-events", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		list, err := webhookService.ListUnprocessed(r.Context(), chi.URLParam(r, "integrationID"), limit)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
	r.Get("/webhook-events/{eventID}", func(w http.ResponseWriter, r *http.Request) {
		event, err := webhookService.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, event)
	})
	r.Post("/webhook-events/{eventID}/processed", func(w http.ResponseWriter, r *http.Request) {
		event, err := webhookService.MarkProcessed(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, event)
	})
	r.Post("/webhook-events/{eventID}/failed", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ErrorMessage string `json:"error_message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		event, err := webhookService.MarkFailed(r.Context(), chi.URLParam(r, "eventID"), body.ErrorMessage)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, event)
	})

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("Starting integration API server")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// authorizeHandler returns the consent URL for an OAuth integration. The
// caller redirects the user itself; API clients prefer the URL in-band.
func authorizeHandler(tokens *application.TokenService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := domain.TenantIDFromContext(r.Context())
		authURL, err := tokens.AuthorizationURL(r.Context(), chi.URLParam(r, "integrationID"), tenantID, r.URL.Query().Get("state"))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authorization_url": authURL})
	}
}

// oauthCallbackHandler finishes the OAuth dance: the state must resolve to a
// live session, then the code is exchanged and the connection returned.
func oauthCallbackHandler(tokens *application.TokenService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || state == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and state are required"})
			return
		}

		session, err := tokens.ValidateState(r.Context(), state)
		if err != nil {
			writeError(w, err, logger)
			return
		}

		conn, err := tokens.ExchangeCode(r.Context(), session.IntegrationID, code, session.TenantID)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, conn)
	}
}

func registerAPIKeyHandler(connections *application.ConnectionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			APIKey   string         `json:"api_key"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		tenantID := domain.TenantIDFromContext(r.Context())
		conn, err := connections.RegisterAPIKey(r.Context(), chi.URLParam(r, "integrationID"), tenantID, body.APIKey, body.Metadata)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, conn)
	}
}

// webhookHandler ingests a platform event. The signature travels in
// X-Webhook-Signature as hex HMAC-SHA256 over the raw body.
func webhookHandler(webhooks *application.WebhookService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
			return
		}
		defer r.Body.Close()

		event, err := webhooks.Ingest(
			r.Context(),
			chi.URLParam(r, "integrationID"),
			chi.URLParam(r, "eventType"),
			payload,
			r.Header.Get("X-Webhook-Signature"),
		)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, event)
	}
}

func startSyncJobHandler(syncs *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind string `json:"kind"`
		}
		// An empty body means an incremental run.
		_ = json.NewDecoder(r.Body).Decode(&body)

		job, err := syncs.Start(r.Context(), chi.URLParam(r, "connectionID"), domain.SyncKind(body.Kind))
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

func completeSyncJobHandler(syncs *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RecordsProcessed int `json:"records_processed"`
			RecordsFailed    int `json:"records_failed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		job, err := syncs.Complete(r.Context(), chi.URLParam(r, "jobID"), body.RecordsProcessed, body.RecordsFailed)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func failSyncJobHandler(syncs *application.SyncService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ErrorMessage string `json:"error_message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		job, err := syncs.Fail(r.Context(), chi.URLParam(r, "jobID"), body.ErrorMessage)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// proxyHandler forwards an arbitrary request to the connection's platform
// through a rate-limited client. The upstream status and body are relayed
// as-is; the framework adds authentication and throttling, nothing else.
func proxyHandler(clients *application.ClientFactory, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := clients.ClientFor(r.Context(), chi.URLParam(r, "connectionID"))
		if err != nil {
			writeError(w, err, logger)
			return
		}

		var body any
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be JSON"})
				return
			}
		}

		resp, err := client.Do(r.Context(), &httpclient.Request{
			Method: r.Method,
			Path:   chi.URLParam(r, "*"),
			Query:  r.URL.Query(),
			Body:   body,
		})
		if err != nil {
			writeError(w, err, logger)
			return
		}
		defer resp.Body.Close()

		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

// tenantMiddleware extracts X-Tenant-ID. Webhook posts and the OAuth
// callback come from platforms, not tenants, so they pass through.
func tenantMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" || path == "/integrations/oauth/callback" ||
				(r.Method == http.MethodPost && strings.HasPrefix(path, "/integrations/") && strings.Contains(path, "/webhooks/")) {
				next.ServeHTTP(w, r)
				return
			}

			tenantID := r.Header.Get("X-Tenant-ID")
			if tenantID == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Tenant-ID header is required"})
				return
			}

			ctx := domain.WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps framework errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownIntegration),
		errors.Is(err, domain.ErrIntegrationNotFound),
		errors.Is(err, domain.ErrConnectionNotFound),
		errors.Is(err, domain.ErrSyncJobNotFound),
		errors.Is(err, domain.ErrWebhookEventNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedAuthKind),
		errors.Is(err, domain.ErrMissingRefreshToken):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusUnauthorized
	default:
		var exchangeErr *domain.TokenExchangeError
		var refreshErr *domain.RefreshError
		if errors.As(err, &exchangeErr) || errors.As(err, &refreshErr) {
			status = http.StatusBadGateway
		}
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
