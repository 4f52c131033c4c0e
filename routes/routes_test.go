package routes

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/liminal-ai/liminal-chat/app"
	"github.com/liminal-ai/liminal-chat/config"
	"github.com/liminal-ai/liminal-chat/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
	key     *rsa.PrivateKey
}

// newTestServer wires the real dependencies against a local JWKS endpoint
// that serves the fallback key set only, so every accepted token exercises
// the primary-then-fallback path.
func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/user_management/") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"keys":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
			{Key: &key.PublicKey, KeyID: "route-key", Algorithm: "RS256", Use: "sig"},
		}})
	}))
	t.Cleanup(jwks.Close)

	cfg := &config.Config{
		Environment: "test",
		Auth: config.AuthConfig{
			ClientID:         "client_routes",
			PrimaryJWKSURL:   jwks.URL + "/sso/jwks/" + config.ClientIDPlaceholder,
			FallbackJWKSURL:  jwks.URL + "/user_management/jwks",
			AllowedAlgs:      []string{"RS256"},
			RetryMaxAttempts: 1,
			RetryBaseDelay:   time.Millisecond,
			JWKSCacheTTL:     time.Hour,
			JWKSHTTPTimeout:  time.Second,
		},
		Observability: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	return &testServer{handler: SetupRoutes(deps), key: key}
}

func (s *testServer) token(t *testing.T, sub string, ttl time.Duration, permissions ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	if len(permissions) > 0 {
		claims["permissions"] = permissions
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "route-key"
	signed, err := tok.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(method, path, authorization, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", "").Code)
}

func TestProtectedRoutes_Unauthenticated(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name          string
		authorization string
		wantMessage   string
	}{
		{"no header", "", "Missing authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "Invalid authorization header"},
		{"empty bearer", "Bearer ", "Missing bearer token"},
		{"garbage token", "Bearer not.a.jwt", "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/v1/me", tt.authorization, "")

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			var resp utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "unauthorized", resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestProtectedRoutes_ExpiredToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/me", "Bearer "+s.token(t, "user_01", -time.Minute), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "fallback")
	assert.NotContains(t, w.Body.String(), "primary")
}

func TestMeRoute_Authenticated(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/me", "Bearer "+s.token(t, "user_01", time.Hour), "")

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.Equal(t, "user_01", envelope.Data.ID)
	assert.Equal(t, "user_01@example.com", envelope.Data.Email)
}

func TestStatusRoute(t *testing.T) {
	s := newTestServer(t)

	anonymous := s.do(http.MethodGet, "/api/v1/status", "", "")
	assert.Equal(t, http.StatusOK, anonymous.Code)
	assert.Contains(t, anonymous.Body.String(), `"authenticated":false`)

	invalid := s.do(http.MethodGet, "/api/v1/status", "Bearer not.a.jwt", "")
	assert.Equal(t, http.StatusOK, invalid.Code)
	assert.Contains(t, invalid.Body.String(), `"authenticated":false`)

	authed := s.do(http.MethodGet, "/api/v1/status", "Bearer "+s.token(t, "user_02", time.Hour), "")
	assert.Equal(t, http.StatusOK, authed.Code)
	assert.Contains(t, authed.Body.String(), `"authenticated":true`)
	assert.Contains(t, authed.Body.String(), `"user_id":"user_02"`)
}

func TestConversationRoutes_StoreDisabled(t *testing.T) {
	s := newTestServer(t)
	bearer := "Bearer " + s.token(t, "user_01", time.Hour)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/v1/conversations", bearer, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/v1/conversations", bearer, `{"title":"hi"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/conversations", "", "").Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "endpoint not found")
}

func TestConversationRoutes_RequiredPermission(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.RequiredPermission = "chat:write"
	})

	without := s.do(http.MethodGet, "/api/v1/conversations", "Bearer "+s.token(t, "user_01", time.Hour), "")
	assert.Equal(t, http.StatusForbidden, without.Code)

	with := s.do(http.MethodGet, "/api/v1/conversations", "Bearer "+s.token(t, "user_01", time.Hour, "chat:write"), "")
	assert.Equal(t, http.StatusServiceUnavailable, with.Code)

	me := s.do(http.MethodGet, "/api/v1/me", "Bearer "+s.token(t, "user_01", time.Hour), "")
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestCORS(t *testing.T) {
	preflight := func(s *testServer, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/me", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)
		return w
	}

	t.Run("configured origin", func(t *testing.T) {
		s := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.AllowedOrigins = []string{"https://chat.example.com"}
		})

		w := preflight(s, "https://chat.example.com")
		assert.Equal(t, "https://chat.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

		other := preflight(s, "https://evil.example.net")
		assert.Empty(t, other.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("development defaults to local origins", func(t *testing.T) {
		s := newTestServer(t, func(cfg *config.Config) {
			cfg.Environment = "development"
		})

		assert.Equal(t, "http://localhost:5173", preflight(s, "http://localhost:5173").Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, preflight(s, "https://chat.example.com").Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins outside development", func(t *testing.T) {
		s := newTestServer(t)

		assert.Empty(t, preflight(s, "http://localhost:5173").Header().Get("Access-Control-Allow-Origin"))
	})
}
