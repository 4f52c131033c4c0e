package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ClientIDPlaceholder is substituted with the configured client ID in JWKS URL templates.
const ClientIDPlaceholder = "{client_id}"

// MaxRetryDelay caps the JWKS retry backoff. Configurations that would reach it
// are rejected so the delays keep doubling.
const MaxRetryDelay = 30 * time.Second

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string // CORS; empty means development defaults or none
}

// DatabaseConfig holds PostgreSQL database configuration.
// An empty ConnectionString disables the conversation store.
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds bearer-token verification configuration
type AuthConfig struct {
	ClientID         string
	PrimaryJWKSURL   string // may contain {client_id}
	FallbackJWKSURL  string
	PrimaryIssuer    string // empty disables the issuer check for that key set
	FallbackIssuer   string
	ClaimNamespace   string
	AllowedAlgs      []string
	Leeway           time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	JWKSCacheTTL     time.Duration
	JWKSHTTPTimeout  time.Duration

	// RequiredPermission, when set, must appear in a caller's permissions
	// claim to use the conversation routes.
	RequiredPermission string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			ClientID:         getEnv("AUTH_CLIENT_ID", ""),
			PrimaryJWKSURL:   getEnv("AUTH_JWKS_PRIMARY_URL", "https://api.workos.com/sso/jwks/"+ClientIDPlaceholder),
			FallbackJWKSURL:  getEnv("AUTH_JWKS_FALLBACK_URL", "https://api.workos.com/user_management/jwks"),
			PrimaryIssuer:    getEnv("AUTH_PRIMARY_ISSUER", ""),
			FallbackIssuer:   getEnv("AUTH_FALLBACK_ISSUER", ""),
			ClaimNamespace:   getEnv("AUTH_CLAIM_NAMESPACE", ""),
			AllowedAlgs:      getEnvAsList("AUTH_ALLOWED_ALGS", []string{"RS256"}),
			Leeway:           getEnvAsDuration("AUTH_LEEWAY", 0),
			RetryMaxAttempts: getEnvAsInt("AUTH_RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvAsDuration("AUTH_RETRY_BASE_DELAY", 2*time.Second),
			JWKSCacheTTL:     getEnvAsDuration("AUTH_JWKS_CACHE_TTL", time.Hour),
			JWKSHTTPTimeout:  getEnvAsDuration("AUTH_JWKS_HTTP_TIMEOUT", 10*time.Second),

			RequiredPermission: getEnv("AUTH_REQUIRED_PERMISSION", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	var missing []string
	if c.Auth.ClientID == "" {
		missing = append(missing, "AUTH_CLIENT_ID")
	}
	if c.Auth.PrimaryJWKSURL == "" {
		missing = append(missing, "AUTH_JWKS_PRIMARY_URL")
	}
	if c.Auth.FallbackJWKSURL == "" {
		missing = append(missing, "AUTH_JWKS_FALLBACK_URL")
	}
	if len(missing) > 0 {
		return &MissingVariablesError{Vars: missing}
	}

	if c.Auth.RetryMaxAttempts < 1 {
		return fmt.Errorf("AUTH_RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Auth.RetryMaxAttempts)
	}
	if c.Auth.RetryBaseDelay <= 0 {
		return fmt.Errorf("AUTH_RETRY_BASE_DELAY must be positive, got %s", c.Auth.RetryBaseDelay)
	}
	if last := c.Auth.LastRetryDelay(); last > MaxRetryDelay {
		return fmt.Errorf("AUTH_RETRY_MAX_ATTEMPTS=%d with AUTH_RETRY_BASE_DELAY=%s waits %s before the last attempt, above the %s cap",
			c.Auth.RetryMaxAttempts, c.Auth.RetryBaseDelay, last, MaxRetryDelay)
	}
	if c.IsProduction() {
		for _, origin := range c.Server.AllowedOrigins {
			if strings.Contains(origin, "*") {
				return fmt.Errorf("CORS_ALLOWED_ORIGINS must not use wildcards in production, got %q", origin)
			}
		}
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// LastRetryDelay returns the delay before the final attempt, BaseDelay*2^(n-2),
// or zero for a single attempt. Values past MaxRetryDelay saturate.
func (c *AuthConfig) LastRetryDelay() time.Duration {
	if c.RetryMaxAttempts < 2 {
		return 0
	}
	d := c.RetryBaseDelay
	for i := 2; i < c.RetryMaxAttempts; i++ {
		if d > MaxRetryDelay {
			return d
		}
		d *= 2
	}
	return d
}

// PrimaryJWKSEndpoint returns the tenant-scoped JWKS URL with the client ID substituted.
func (c *AuthConfig) PrimaryJWKSEndpoint() string {
	return strings.ReplaceAll(c.PrimaryJWKSURL, ClientIDPlaceholder, url.PathEscape(c.ClientID))
}

// FallbackJWKSEndpoint returns the platform-wide JWKS URL.
func (c *AuthConfig) FallbackJWKSEndpoint() string {
	return strings.ReplaceAll(c.FallbackJWKSURL, ClientIDPlaceholder, url.PathEscape(c.ClientID))
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

var developmentOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}

// CORSOrigins returns the configured origins. Without any, development allows
// local origins and every other environment allows none.
func (c *Config) CORSOrigins() []string {
	if len(c.Server.AllowedOrigins) > 0 {
		return c.Server.AllowedOrigins
	}
	if c.IsDevelopment() {
		return developmentOrigins
	}
	return nil
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != ""
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
