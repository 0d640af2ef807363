package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Store       string
	DatabaseURL string
	HTTPPort    string
	AdminAPIKey string

	RegistrySource string

	TxMaxRetries      int
	TxRetryDelay      time.Duration
	WebhookURL        string
	WebhookTimeout    time.Duration
	WebhookRetries    int
	WebhookRetryDelay time.Duration

	RedisAddress  string
	RedisPassword string
	CacheTTL      time.Duration

	PubSubProject string
	PubSubTopic   string

	AuditRetention     time.Duration
	AuditSweepInterval time.Duration
	AuditPurgeBatch    int

	GoogleSheetsID        string
	GoogleCredentialsJSON string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present; real environment
// variables win over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("reading .env file", "error", err)
	}

	store := strings.ToLower(envOrDefault("STORE", StorePostgres))
	if store != StorePostgres && store != StoreMemory {
		slog.Warn("unknown STORE, using default", "value", store, "default", StorePostgres)
		store = StorePostgres
	}

	cfg := Config{
		Store:                 store,
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           os.Getenv("ADMIN_API_KEY"),
		RegistrySource:        os.Getenv("REGISTRY_SOURCE"),
		TxMaxRetries:          envOrDefaultInt("TX_MAX_RETRIES", 5),
		TxRetryDelay:          envOrDefaultDuration("TX_RETRY_DELAY", 50*time.Millisecond),
		WebhookURL:            os.Getenv("WEBHOOK_URL"),
		WebhookTimeout:        envOrDefaultPositiveDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookRetries:        envOrDefaultInt("WEBHOOK_RETRIES", 1),
		WebhookRetryDelay:     envOrDefaultDuration("WEBHOOK_RETRY_DELAY", time.Second),
		RedisAddress:          os.Getenv("REDIS_ADDRESS"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		CacheTTL:              envOrDefaultPositiveDuration("CACHE_TTL", 30*time.Second),
		PubSubProject:         os.Getenv("PUBSUB_PROJECT"),
		PubSubTopic:           os.Getenv("PUBSUB_TOPIC"),
		AuditRetention:        envOrDefaultPositiveDuration("AUDIT_RETENTION", 5*365*24*time.Hour),
		AuditSweepInterval:    envOrDefaultPositiveDuration("AUDIT_SWEEP_INTERVAL", 24*time.Hour),
		AuditPurgeBatch:       envOrDefaultInt("AUDIT_PURGE_BATCH", 500),
		GoogleSheetsID:        os.Getenv("GOOGLE_SHEETS_ID"),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
	}
	if cfg.Store == StorePostgres {
		cfg.DatabaseURL = envOrDefaultWarn("DATABASE_URL", "")
	} else {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return cfg
}

// ExternalSyncEnabled reports whether recalculations trigger the webhook.
func (c Config) ExternalSyncEnabled() bool { return c.WebhookURL != "" }

// SheetsEnabled reports whether boards are published to Google Sheets.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

// envOrDefaultPositiveDuration is envOrDefaultDuration for settings where zero or a negative
// value is meaningless, such as ticker intervals and TTLs.
func envOrDefaultPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	d := envOrDefaultDuration(key, defaultVal)
	if d <= 0 {
		slog.Warn("non-positive duration env var, using default", "key", key, "value", d, "default", defaultVal)
		return defaultVal
	}
	return d
}
