package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxJWKSBytes = 1 << 20

var (
	// ErrJWKSFetchFailed is returned when a key set endpoint cannot be read
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// KeySetOptions configures how key sets are fetched and cached.
type KeySetOptions struct {
	HTTPClient *http.Client
	CacheTTL   time.Duration

	// MinRefreshInterval bounds how often an unknown key id may force a
	// refetch before the cache expires.
	MinRefreshInterval time.Duration

	Logger  *zap.Logger
	Metrics observability.Metrics
}

func (o KeySetOptions) withDefaults() KeySetOptions {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Hour
	}
	if o.MinRefreshInterval <= 0 {
		o.MinRefreshInterval = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = observability.NopMetrics()
	}
	return o
}

// KeySet is a lazily fetched, cached set of public verification keys served
// from one JWKS URL. Concurrent callers share a single in-flight fetch.
type KeySet struct {
	url  string
	opts KeySetOptions

	mu        sync.RWMutex
	keys      keyfunc.Keyfunc
	keyCount  int
	fetchedAt time.Time

	group singleflight.Group
	now   func() time.Time
}

// NewKeySet creates a key set for url. Nothing is fetched until first use.
func NewKeySet(url string, opts KeySetOptions) (*KeySet, error) {
	if url == "" {
		return nil, newError(KindConfiguration, "key set URL is required", nil)
	}
	return &KeySet{
		url:  url,
		opts: opts.withDefaults(),
		now:  time.Now,
	}, nil
}

// URL returns the JWKS endpoint backing this key set.
func (k *KeySet) URL() string {
	return k.url
}

// Keyfunc returns a jwt.Keyfunc that resolves signing keys from this set.
// An unknown key id triggers at most one rate-limited refetch.
func (k *KeySet) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kf, err := k.current(ctx)
		if err != nil {
			return nil, err
		}

		key, err := kf.Keyfunc(token)
		if err == nil {
			return key, nil
		}
		if !k.canRefetch() {
			return nil, err
		}

		k.opts.Logger.Debug("signing key not found in cached JWKS, refetching",
			zap.String("jwks_url", k.url),
			zap.Any("kid", token.Header["kid"]),
		)
		kf, ferr := k.refresh(ctx)
		if ferr != nil {
			return nil, ferr
		}
		return kf.Keyfunc(token)
	}
}

func (k *KeySet) current(ctx context.Context) (keyfunc.Keyfunc, error) {
	k.mu.RLock()
	kf, fetchedAt := k.keys, k.fetchedAt
	k.mu.RUnlock()

	if kf != nil && k.now().Sub(fetchedAt) < k.opts.CacheTTL {
		return kf, nil
	}

	fresh, err := k.refresh(ctx)
	if err != nil {
		if kf != nil && IsTransient(err) {
			k.opts.Logger.Warn("JWKS refresh failed, serving cached keys",
				zap.String("jwks_url", k.url),
				zap.Error(err),
			)
			return kf, nil
		}
		return nil, err
	}
	return fresh, nil
}

func (k *KeySet) canRefetch() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.now().Sub(k.fetchedAt) >= k.opts.MinRefreshInterval
}

// refresh fetches the remote set once for all concurrent callers. The first
// caller's context governs the shared request.
func (k *KeySet) refresh(ctx context.Context) (keyfunc.Keyfunc, error) {
	v, err, _ := k.group.Do(k.url, func() (any, error) {
		raw, err := k.FetchJWKS(ctx)
		if err != nil {
			k.opts.Metrics.RecordJWKSFetch(ctx, k.url, "error")
			return nil, err
		}

		kf, err := keyfunc.NewJWKSetJSON(raw)
		if err != nil {
			k.opts.Metrics.RecordJWKSFetch(ctx, k.url, "invalid")
			return nil, fmt.Errorf("failed to parse JWKS from %s: %w", k.url, err)
		}

		stored, err := kf.Storage().KeyReadAll(ctx)
		if err != nil {
			k.opts.Metrics.RecordJWKSFetch(ctx, k.url, "invalid")
			return nil, fmt.Errorf("failed to read keys parsed from %s: %w", k.url, err)
		}

		k.mu.Lock()
		k.keys = kf
		k.keyCount = len(stored)
		k.fetchedAt = k.now()
		k.mu.Unlock()

		k.opts.Metrics.RecordJWKSFetch(ctx, k.url, "ok")
		k.opts.Logger.Info("JWKS fetched",
			zap.String("jwks_url", k.url),
			zap.Int("keys", len(stored)),
		)
		return kf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(keyfunc.Keyfunc), nil
}

// FetchJWKS reads the raw key set document. Connection failures, 429 and 5xx
// responses are returned as *TransientError.
func (k *KeySet) FetchJWKS(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.opts.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, ctxErr)
		}
		return nil, &TransientError{Endpoint: k.url, Err: fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, &TransientError{Endpoint: k.url, Err: statusErr}
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, &TransientError{Endpoint: k.url, Err: fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrJWKSFetchFailed)
	}
	return json.RawMessage(body), nil
}

// GetCacheStats returns cache statistics
func (k *KeySet) GetCacheStats() map[string]interface{} {
	k.mu.RLock()
	defer k.mu.RUnlock()

	stats := map[string]interface{}{
		"jwks_url":    k.url,
		"jwks_cached": k.keys != nil,
		"keys_count":  k.keyCount,
	}
	if k.keys != nil {
		stats["jwks_expires_at"] = k.fetchedAt.Add(k.opts.CacheTTL)
	}
	return stats
}

// KeySetRegistry hands out one KeySet per URL for the life of the process.
type KeySetRegistry struct {
	opts KeySetOptions

	mu   sync.Mutex
	sets map[string]*KeySet
}

// NewKeySetRegistry creates an empty registry whose key sets share opts.
func NewKeySetRegistry(opts KeySetOptions) *KeySetRegistry {
	return &KeySetRegistry{
		opts: opts.withDefaults(),
		sets: make(map[string]*KeySet),
	}
}

// Get returns the key set for url, creating it on first request.
func (r *KeySetRegistry) Get(url string) (*KeySet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ks, ok := r.sets[url]; ok {
		return ks, nil
	}
	ks, err := NewKeySet(url, r.opts)
	if err != nil {
		return nil, err
	}
	r.sets[url] = ks
	return ks, nil
}

// Len reports how many distinct key sets have been created.
func (r *KeySetRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}
