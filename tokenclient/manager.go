package tokenclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/liminal-ai/liminal-chat/config"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSafetyBuffer is subtracted from a token's exp to decide when the
// cached copy is stale.
const DefaultSafetyBuffer = 5 * time.Minute

// TokenSet is an access/refresh token pair. ExpiresAt already has the safety
// buffer applied.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Manager keeps a valid access token for a long-running client, refreshing
// it before it expires. Safe for concurrent use; concurrent callers that find
// the cache stale share a single refresh.
type Manager struct {
	exchanger    Exchanger
	email        string
	password     string
	safetyBuffer time.Duration
	logger       *zap.Logger
	metrics      observability.Metrics
	now          func() time.Time

	mu     sync.RWMutex
	tokens *TokenSet

	group singleflight.Group
}

// NewManager validates cfg and creates an empty manager. A nil exchanger
// means the HTTP exchanger built from cfg.
func NewManager(cfg config.ClientConfig, exchanger Exchanger, logger *zap.Logger, metrics observability.Metrics) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exchanger == nil {
		exchanger = NewHTTPExchanger(cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	buffer := cfg.SafetyBuffer
	if buffer < 0 {
		return nil, fmt.Errorf("safety buffer must not be negative: %s", buffer)
	}

	return &Manager{
		exchanger:    exchanger,
		email:        cfg.Email,
		password:     cfg.Password,
		safetyBuffer: buffer,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}, nil
}

// ValidToken returns the cached access token, refreshing first when there is
// none or it has passed ExpiresAt.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	ts := m.tokens
	m.mu.RUnlock()

	if ts != nil && m.now().Before(ts.ExpiresAt) {
		return ts.AccessToken, nil
	}

	ts, err := m.refresh(ctx, ts, false)
	if err != nil {
		return "", err
	}
	return ts.AccessToken, nil
}

// AuthHeaders returns the headers for an authenticated JSON request.
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	token, err := m.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}, nil
}

// HasToken reports whether a token set is cached, stale or not.
func (m *Manager) HasToken() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens != nil
}

// TimeUntilExpiry returns how long the cached token remains usable, or zero.
func (m *Manager) TimeUntilExpiry() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens == nil {
		return 0
	}
	if d := m.tokens.ExpiresAt.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}

// ClearTokens drops the cached token set.
func (m *Manager) ClearTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
}

// ForceRefresh refreshes regardless of the cached expiry.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	_, err := m.refresh(ctx, nil, true)
	return err
}

// refresh runs one refresh for all concurrent callers. The first caller's
// context governs the shared round trip. observed is the token set the caller
// found stale; unless force is set, a newer set that is still fresh is
// returned without another exchange.
func (m *Manager) refresh(ctx context.Context, observed *TokenSet, force bool) (*TokenSet, error) {
	v, err, shared := m.group.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx, observed, force)
	})
	if shared {
		m.logger.Debug("joined in-flight token refresh")
	}
	if err != nil {
		return nil, err
	}
	return v.(*TokenSet), nil
}

func (m *Manager) doRefresh(ctx context.Context, observed *TokenSet, force bool) (*TokenSet, error) {
	m.mu.RLock()
	current := m.tokens
	m.mu.RUnlock()

	// Another flight replaced the set between the caller's read and now.
	if !force && current != nil && current != observed && m.now().Before(current.ExpiresAt) {
		m.logger.Debug("token refreshed by an earlier caller, skipping exchange")
		return current, nil
	}

	var refreshErr error
	if current != nil && current.RefreshToken != "" {
		resp, err := m.exchanger.RefreshGrant(ctx, current.RefreshToken)
		if err == nil {
			m.metrics.RecordTokenRefresh(ctx, GrantRefreshToken, "ok")
			return m.store(resp), nil
		}
		m.metrics.RecordTokenRefresh(ctx, GrantRefreshToken, "error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		refreshErr = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		m.logger.Warn("refresh grant failed, re-authenticating with credentials", zap.Error(err))
	}

	resp, err := m.exchanger.PasswordGrant(ctx, m.email, m.password)
	if err != nil {
		m.metrics.RecordTokenRefresh(ctx, GrantPassword, "error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.ClearTokens()
		m.logger.Error("credential re-authentication failed, cleared cached tokens",
			zap.Bool("refresh_attempted", refreshErr != nil),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, errors.Join(refreshErr, err))
	}

	m.metrics.RecordTokenRefresh(ctx, GrantPassword, "ok")
	return m.store(resp), nil
}

// store replaces the cached token set with one built from resp.
func (m *Manager) store(resp *TokenResponse) *TokenSet {
	ts := &TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    m.expiresAt(resp),
	}

	m.mu.Lock()
	m.tokens = ts
	m.mu.Unlock()

	m.logger.Info("access token updated",
		zap.Time("expires_at", ts.ExpiresAt),
		zap.Bool("has_refresh_token", ts.RefreshToken != ""),
	)
	return ts
}

// expiresAt prefers the access token's exp claim, then expires_in. With
// neither the token is treated as already stale.
func (m *Manager) expiresAt(resp *TokenResponse) time.Time {
	if exp, ok := tokenExpiry(resp.AccessToken); ok {
		return exp.Add(-m.safetyBuffer)
	}
	now := m.now()
	if resp.ExpiresIn > 0 {
		return now.Add(time.Duration(resp.ExpiresIn)*time.Second - m.safetyBuffer)
	}
	m.logger.Warn("access token carries no expiry, it will be refreshed on next use")
	return now
}

// tokenExpiry reads exp without verifying the signature; the client only
// needs it to schedule refreshes.
func tokenExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
