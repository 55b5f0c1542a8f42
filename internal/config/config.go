package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultAppURL         = "http://localhost:8080"
	defaultMongoURI       = "mongodb://localhost:27017"
	defaultMongoDatabase  = "integrations"
	defaultRequestTimeout = 30 * time.Second
	defaultSessionTTL     = 10 * time.Minute
)

// Config carries process-level settings. Per-integration client credentials
// and webhook secrets stay in the environment and are resolved by the
// registry at start-up.
type Config struct {
	HTTPAddr      string
	AppURL        string
	MongoURI      string
	MongoDatabase string

	// RedisAddr enables the shared, cross-instance rate limiter when set.
	// Empty means each process gates requests locally.
	RedisAddr     string
	RedisPassword string

	// EncryptionKey seals credentials at rest. Required; the server refuses
	// to start without it.
	EncryptionKey string

	RequestTimeout time.Duration
	SessionTTL     time.Duration
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		HTTPAddr:       getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		AppURL:         getenvDefault("APP_URL", defaultAppURL),
		MongoURI:       getenvDefault("MONGODB_URI", defaultMongoURI),
		MongoDatabase:  getenvDefault("MONGODB_DATABASE", defaultMongoDatabase),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		EncryptionKey:  os.Getenv("ENCRYPTION_KEY"),
		RequestTimeout: defaultRequestTimeout,
		SessionTTL:     defaultSessionTTL,
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("OAUTH_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}

	return cfg, nil
}

// RedirectURI is where platforms send the user back after consent.
func (c Config) RedirectURI() string {
	return c.AppURL + "/integrations/oauth/callback"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
