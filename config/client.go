package config

import (
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig holds credentials for test/dev tooling that calls the API as a
// real account.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	Email        string
	Password     string
	APIBaseURL   string // identity provider base URL
	ChatAPIURL   string
	SafetyBuffer time.Duration
	HTTPTimeout  time.Duration
}

// LoadClientConfig reads client credentials from the environment. Every
// missing required variable is listed in the returned error.
func LoadClientConfig() (*ClientConfig, error) {
	_ = godotenv.Load(".env")

	cfg := &ClientConfig{
		ClientID:     getEnv("AUTH_CLIENT_ID", ""),
		ClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),
		Email:        getEnv("AUTH_TEST_EMAIL", ""),
		Password:     getEnv("AUTH_TEST_PASSWORD", ""),
		APIBaseURL:   getEnv("AUTH_API_BASE_URL", "https://api.workos.com"),
		ChatAPIURL:   getEnv("CHAT_API_URL", "http://localhost:8080"),
		SafetyBuffer: getEnvAsDuration("AUTH_SAFETY_BUFFER", 5*time.Minute),
		HTTPTimeout:  getEnvAsDuration("AUTH_HTTP_TIMEOUT", 15*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a MissingVariablesError naming each absent credential.
func (c *ClientConfig) Validate() error {
	var missing []string
	if c.Email == "" {
		missing = append(missing, "AUTH_TEST_EMAIL")
	}
	if c.Password == "" {
		missing = append(missing, "AUTH_TEST_PASSWORD")
	}
	if c.ClientID == "" {
		missing = append(missing, "AUTH_CLIENT_ID")
	}
	if len(missing) > 0 {
		return &MissingVariablesError{Vars: missing}
	}
	return nil
}
