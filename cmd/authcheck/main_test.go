package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/liminal-ai/liminal-chat/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend serves both the authenticate endpoint and /api/v1/me.
type fakeBackend struct {
	srv    *httptest.Server
	grants atomic.Int32
	token  atomic.Value
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user_management/authenticate":
			n := b.grants.Add(1)
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "user_01",
				"exp": time.Now().Add(time.Hour).Unix(),
				"n":   n,
			})
			signed, _ := tok.SignedString([]byte("secret"))
			b.token.Store(signed)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": signed, "refresh_token": "rt"})
		case "/api/v1/me":
			want, _ := b.token.Load().(string)
			if r.Header.Get("Authorization") != "Bearer "+want {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"id":"user_01"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) clientConfig() config.ClientConfig {
	return config.ClientConfig{
		ClientID:     "client_01",
		Email:        "dev@example.com",
		Password:     "hunter2",
		APIBaseURL:   b.srv.URL,
		ChatAPIURL:   b.srv.URL,
		SafetyBuffer: 5 * time.Minute,
		HTTPTimeout:  5 * time.Second,
	}
}

func TestCheck_ReusesToken(t *testing.T) {
	b := newFakeBackend(t)
	var out bytes.Buffer

	err := check(context.Background(), b.clientConfig(), options{path: "/api/v1/me", count: 3}, zap.NewNop(), &out)
	require.NoError(t, err)

	assert.Equal(t, int32(1), b.grants.Load())
	assert.Equal(t, 3, strings.Count(out.String(), "-> 200"))
	assert.Contains(t, out.String(), "token valid for")
}

func TestCheck_ForceRefresh(t *testing.T) {
	b := newFakeBackend(t)
	var out bytes.Buffer

	err := check(context.Background(), b.clientConfig(), options{path: "api/v1/me", count: 2, forceRefresh: true}, zap.NewNop(), &out)
	require.NoError(t, err)

	assert.Equal(t, int32(2), b.grants.Load())
	assert.Contains(t, out.String(), "token refreshed")
}

func TestCheck_ReportsFailures(t *testing.T) {
	b := newFakeBackend(t)
	var out bytes.Buffer

	err := check(context.Background(), b.clientConfig(), options{path: "/missing", count: 1}, zap.NewNop(), &out)
	assert.EqualError(t, err, "1 of 1 requests failed")
	assert.Contains(t, out.String(), "-> 404")
}

func TestRun_RejectsBadCount(t *testing.T) {
	err := run([]string{"--count", "0"}, &bytes.Buffer{})
	assert.EqualError(t, err, "--count must be at least 1")
}

func TestRun_MissingCredentials(t *testing.T) {
	t.Setenv("AUTH_CLIENT_ID", "")
	t.Setenv("AUTH_TEST_EMAIL", "")
	t.Setenv("AUTH_TEST_PASSWORD", "")

	err := run(nil, &bytes.Buffer{})
	var missing *config.MissingVariablesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"AUTH_TEST_EMAIL", "AUTH_TEST_PASSWORD", "AUTH_CLIENT_ID"}, missing.Vars)
}
