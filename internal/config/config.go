package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string

	// Database
	DatabaseURL string

	// Redis backs the per-IP rate limiter when set; otherwise it is in memory.
	RedisURL string

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string

	// Bearer token verification. Either or both may be configured; with
	// neither every caller is anonymous.
	OIDCIssuer   string
	OIDCClientID string
	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string

	// CORS
	CORSOrigins string // Comma-separated allowed origins, e.g. "https://example.com,https://app.example.com"

	// Completion service (OpenAI-compatible chat completions)
	CompletionBaseURL     string
	CompletionAPIKey      string
	CompletionModel       string
	CompletionTimeout     time.Duration
	CompletionMaxTokens   int
	CompletionTemperature float64

	// Quota
	DailyLimit          int // free actions per identity per UTC day
	LedgerRetentionDays int // durable ledger rows older than this are pruned

	// Research
	MaxKeywords int // keywords analyzed per research action

	// Rate limiting
	RateLimitPerMinute int // per IP, 0 disables

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool

	// Janitor
	JanitorInterval time.Duration

	// ConfigFile is the optional YAML file with alias and premium overrides.
	ConfigFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:                   getEnv("ENV", "development"),
		ServerAddr:            getEnv("SERVER_ADDR", ":"+getEnv("PORT", "3000")),
		DatabaseURL:           getEnv("DATABASE_URL", "postgres://localhost:5432/rankwise?sslmode=disable"),
		RedisURL:              getEnv("REDIS_URL", ""),
		TLSEnabled:            getEnv("TLS_ENABLED", "") != "",
		TLSCertFile:           getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:            getEnv("TLS_KEY_FILE", ""),
		OIDCIssuer:            getEnv("OIDC_ISSUER", ""),
		OIDCClientID:          getEnv("OIDC_CLIENT_ID", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTIssuer:             getEnv("JWT_ISSUER", ""),
		JWTAudience:           getEnv("JWT_AUDIENCE", ""),
		CORSOrigins:           getEnv("CORS_ORIGINS", ""),
		CompletionBaseURL:     getEnv("COMPLETION_BASE_URL", "https://api.openai.com/v1"),
		CompletionAPIKey:      getEnv("COMPLETION_API_KEY", ""),
		CompletionModel:       getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		CompletionTimeout:     getEnvDuration("COMPLETION_TIMEOUT", 8*time.Second),
		CompletionMaxTokens:   getEnvInt("COMPLETION_MAX_TOKENS", 1200),
		CompletionTemperature: getEnvFloat("COMPLETION_TEMPERATURE", 0.2),
		DailyLimit:            getEnvInt("DAILY_LIMIT", 5),
		LedgerRetentionDays:   getEnvInt("LEDGER_RETENTION_DAYS", 30),
		MaxKeywords:           getEnvInt("MAX_KEYWORDS", 5),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustProxy:            getEnv("TRUST_PROXY", "") != "",
		JanitorInterval:       getEnvDuration("JANITOR_INTERVAL", time.Hour),
		ConfigFile:            getEnv("CONFIG_FILE", "config.yaml"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt falls back on missing, malformed or negative values.
func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("8s", "1m30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// AllowedOrigins splits CORSOrigins, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// HasBearerAuth reports whether any token verifier is configured.
func (c *Config) HasBearerAuth() bool {
	return c.JWTSecret != "" || c.HasOIDC()
}

// HasOIDC reports whether OIDC token verification is configured.
func (c *Config) HasOIDC() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}
