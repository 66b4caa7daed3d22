package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/liamashdown/polyrank/internal/secrets"
)

// AuthMode represents the authentication mode for the Data API
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeBearer AuthMode = "bearer"
	AuthModeAPIKey AuthMode = "api_key"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string

	// Data API
	DataAPIBaseURL      string
	DataAPIAuthMode     AuthMode
	DataAPIBearerToken  string
	DataAPIAPIKey       string
	DataAPIExtraHeaders map[string]string

	// Gamma API
	GammaAPIBaseURL string

	// Rate limits (requests per second)
	DataAPITradesRPS   float64
	DataAPIActivityRPS float64
	GammaAPIMarketsRPS float64

	// Ingestion
	WalletLookupWorkers int           // bounded concurrency for per-wallet activity fetches
	ActivityFetchLimit  int           // activity records requested per wallet
	TradeFetchLimit     int           // bulk trade feed page size for windows <= 24h
	TradeFetchLimitWide int           // bulk trade feed page size for longer windows
	RequestTimeout      time.Duration // overall deadline for one ranking/scoring pass

	// HTTP API
	HTTPPort int

	// Run audit store (optional; empty DSN disables it)
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Market watcher
	WatchEnabled      bool
	WatchIntervalSec  int
	WatchCategory     string
	WatchLimit        int
	WatchScoreWarn    int
	WatchScoreAlert   int
	WatchCooldownMins int

	// Alerts
	AlertMode          string // log, discord, smtp (comma-separated for multi)
	DiscordWebhookURLs []string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		DataAPIBaseURL:      getEnv("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		DataAPIAuthMode:     AuthMode(getEnv("DATA_API_AUTH_MODE", "none")),
		DataAPIBearerToken:  secrets.GetOptional("DATA_API_BEARER_TOKEN", ""),
		DataAPIAPIKey:       secrets.GetOptional("DATA_API_API_KEY", ""),
		GammaAPIBaseURL:     getEnv("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),
		DataAPITradesRPS:    getEnvFloat("DATA_API_TRADES_RPS", 2.0),
		DataAPIActivityRPS:  getEnvFloat("DATA_API_ACTIVITY_RPS", 5.0),
		GammaAPIMarketsRPS:  getEnvFloat("GAMMA_API_MARKETS_RPS", 5.0),
		WalletLookupWorkers: getEnvInt("WALLET_LOOKUP_WORKERS", 10),
		ActivityFetchLimit:  getEnvInt("ACTIVITY_FETCH_LIMIT", 100),
		TradeFetchLimit:     getEnvInt("TRADE_FETCH_LIMIT", 2000),
		TradeFetchLimitWide: getEnvInt("TRADE_FETCH_LIMIT_WIDE", 5000),
		RequestTimeout:      time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 60)) * time.Second,
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		DatabaseDSN:         getEnv("DATABASE_DSN", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		WatchEnabled:        getEnvBool("WATCH_ENABLED", false),
		WatchIntervalSec:    getEnvInt("WATCH_INTERVAL_SEC", 300),
		WatchCategory:       getEnv("WATCH_CATEGORY", "Trending"),
		WatchLimit:          getEnvInt("WATCH_LIMIT", 20),
		WatchScoreWarn:      getEnvInt("WATCH_SCORE_WARN", 60),
		WatchScoreAlert:     getEnvInt("WATCH_SCORE_ALERT", 80),
		WatchCooldownMins:   getEnvInt("WATCH_COOLDOWN_MINS", 120),
		AlertMode:           getEnv("ALERT_MODE", "log"),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        secrets.GetOptional("SMTP_PASSWORD", ""),
		SMTPFrom:            getEnv("SMTP_FROM", "polyrank@example.com"),
	}

	if webhooks := secrets.GetOptional("DISCORD_WEBHOOK_URLS", ""); webhooks != "" {
		cfg.DiscordWebhookURLs = parseCSV(webhooks)
	}

	if smtpTo := getEnv("SMTP_TO", ""); smtpTo != "" {
		cfg.SMTPTo = parseCSV(smtpTo)
	}

	extraHeadersJSON := getEnv("DATA_API_EXTRA_HEADERS", "{}")
	if err := json.Unmarshal([]byte(extraHeadersJSON), &cfg.DataAPIExtraHeaders); err != nil {
		return nil, fmt.Errorf("invalid DATA_API_EXTRA_HEADERS JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	switch c.DataAPIAuthMode {
	case AuthModeNone:
		// No validation needed
	case AuthModeBearer:
		if c.DataAPIBearerToken == "" {
			return fmt.Errorf("DATA_API_BEARER_TOKEN is required when AUTH_MODE is bearer")
		}
	case AuthModeAPIKey:
		if c.DataAPIAPIKey == "" {
			return fmt.Errorf("DATA_API_API_KEY is required when AUTH_MODE is api_key")
		}
	default:
		return fmt.Errorf("invalid DATA_API_AUTH_MODE: %s (must be none, bearer, or api_key)", c.DataAPIAuthMode)
	}

	if c.WalletLookupWorkers < 1 {
		return fmt.Errorf("WALLET_LOOKUP_WORKERS must be at least 1")
	}
	if c.ActivityFetchLimit < 1 {
		return fmt.Errorf("ACTIVITY_FETCH_LIMIT must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SEC must be positive")
	}
	if c.WatchScoreAlert < c.WatchScoreWarn {
		return fmt.Errorf("WATCH_SCORE_ALERT must be >= WATCH_SCORE_WARN")
	}

	hasDiscord := false
	hasSMTP := false
	for _, mode := range strings.Split(c.AlertMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && len(c.DiscordWebhookURLs) == 0 {
		return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
	}
	if hasSMTP && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when smtp is in ALERT_MODE")
	}
	if hasSMTP && len(c.SMTPTo) == 0 {
		return fmt.Errorf("SMTP_TO is required when smtp is in ALERT_MODE")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
