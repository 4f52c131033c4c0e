package tokenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liminal-ai/liminal-chat/config"
)

const maxResponseBytes = 1 << 20

// TokenResponse is the authenticate endpoint's response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Exchanger performs credential grants against the identity provider.
type Exchanger interface {
	RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error)
	PasswordGrant(ctx context.Context, email, password string) (*TokenResponse, error)
}

// HTTPExchanger calls POST {base}/user_management/authenticate.
type HTTPExchanger struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewHTTPExchanger creates an exchanger from client configuration.
func NewHTTPExchanger(cfg config.ClientConfig) *HTTPExchanger {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPExchanger{
		baseURL:      strings.TrimSuffix(cfg.APIBaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// RefreshGrant exchanges a refresh token for a new token pair.
func (e *HTTPExchanger) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return e.authenticate(ctx, GrantRefreshToken, map[string]string{
		"refresh_token": refreshToken,
	})
}

// PasswordGrant authenticates with account credentials.
func (e *HTTPExchanger) PasswordGrant(ctx context.Context, email, password string) (*TokenResponse, error) {
	return e.authenticate(ctx, GrantPassword, map[string]string{
		"email":    email,
		"password": password,
	})
}

func (e *HTTPExchanger) authenticate(ctx context.Context, grant string, fields map[string]string) (*TokenResponse, error) {
	if e.baseURL == "" || e.clientID == "" {
		return nil, fmt.Errorf("token exchanger not configured")
	}

	payload := map[string]string{
		"grant_type": grant,
		"client_id":  e.clientID,
	}
	if e.clientSecret != "" {
		payload["client_secret"] = e.clientSecret
	}
	for k, v := range fields {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", grant, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/user_management/authenticate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", grant, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", grant, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", grant, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GrantError{Grant: grant, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", grant, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%s grant: %w", grant, ErrNoAccessToken)
	}

	return &tokenResp, nil
}
