package auth

import (
	"net/http"

	"github.com/liminal-ai/liminal-chat/config"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"go.uber.org/zap"
)

// Endpoint names used in logs and metrics.
const (
	EndpointPrimary  = "primary"
	EndpointFallback = "fallback"
)

// Service is the process-wide authentication boundary. Build it once at
// startup and share it with every handler.
type Service struct {
	*Gate

	Verifier *Verifier
	registry *KeySetRegistry
}

// NewService wires the primary and fallback key sets, verifier and gate from
// cfg. A missing client ID is a configuration error.
func NewService(cfg config.AuthConfig, logger *zap.Logger, metrics observability.Metrics) (*Service, error) {
	if cfg.ClientID == "" {
		return nil, newError(KindConfiguration, "client ID is required to construct key sets", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := NewKeySetRegistry(KeySetOptions{
		HTTPClient: &http.Client{Timeout: cfg.JWKSHTTPTimeout},
		CacheTTL:   cfg.JWKSCacheTTL,
		Logger:     logger.Named("jwks"),
		Metrics:    metrics,
	})

	primary, err := registry.Get(cfg.PrimaryJWKSEndpoint())
	if err != nil {
		return nil, err
	}
	fallback, err := registry.Get(cfg.FallbackJWKSEndpoint())
	if err != nil {
		return nil, err
	}

	retry := DefaultRetryPolicy()
	retry.MaxDelay = config.MaxRetryDelay
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		retry.BaseDelay = cfg.RetryBaseDelay
	}

	verifier, err := NewVerifier([]Endpoint{
		{Name: EndpointPrimary, Keys: primary, Issuer: cfg.PrimaryIssuer},
		{Name: EndpointFallback, Keys: fallback, Issuer: cfg.FallbackIssuer},
	}, VerifierConfig{
		AllowedAlgs:    cfg.AllowedAlgs,
		Leeway:         cfg.Leeway,
		ClaimNamespace: cfg.ClaimNamespace,
		Retry:          retry,
	}, logger.Named("verifier"), metrics)
	if err != nil {
		return nil, err
	}

	logger.Info("authentication configured",
		zap.String("primary_jwks_url", primary.URL()),
		zap.String("fallback_jwks_url", fallback.URL()),
		zap.Strings("allowed_algs", verifier.cfg.AllowedAlgs),
	)

	return &Service{
		Gate:     NewGate(verifier, logger.Named("gate")),
		Verifier: verifier,
		registry: registry,
	}, nil
}

// KeySetStats reports the cache state of every key set.
func (s *Service) KeySetStats() []map[string]interface{} {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	stats := make([]map[string]interface{}, 0, len(s.registry.sets))
	for _, ks := range s.registry.sets {
		stats = append(stats, ks.GetCacheStats())
	}
	return stats
}
