package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"go.uber.org/zap"
)

// Endpoint is one trusted key set a token may be verified against.
type Endpoint struct {
	Name   string
	Keys   *KeySet
	Issuer string
}

// VerifierConfig holds the validation rules shared by every endpoint.
type VerifierConfig struct {
	AllowedAlgs    []string
	Leeway         time.Duration
	ClaimNamespace string
	Retry          RetryPolicy
}

// Verification is a successfully verified token.
type Verification struct {
	User     User
	Endpoint string
	Claims   jwt.MapClaims
}

// Verifier checks bearer tokens against an ordered list of key sets. Any
// failure on one endpoint moves on to the next.
type Verifier struct {
	endpoints []Endpoint
	cfg       VerifierConfig
	logger    *zap.Logger
	metrics   observability.Metrics
}

// NewVerifier creates a verifier trying endpoints in order.
func NewVerifier(endpoints []Endpoint, cfg VerifierConfig, logger *zap.Logger, metrics observability.Metrics) (*Verifier, error) {
	if len(endpoints) == 0 {
		return nil, newError(KindConfiguration, "at least one key set endpoint is required", nil)
	}
	for _, ep := range endpoints {
		if ep.Keys == nil {
			return nil, newError(KindConfiguration, fmt.Sprintf("endpoint %q has no key set", ep.Name), nil)
		}
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256"}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}

	return &Verifier{
		endpoints: endpoints,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Verify validates token, which may carry a leading "Bearer " prefix. It
// returns an error of kind KindMissingToken for an empty token and
// KindInvalidToken when every endpoint rejects it.
func (v *Verifier) Verify(ctx context.Context, token string) (*Verification, error) {
	token = stripBearer(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var failures []error
	for i, ep := range v.endpoints {
		claims, err := v.verifyWith(ctx, ep, token)
		if err == nil {
			v.metrics.RecordVerification(ctx, ep.Name, "ok")
			return &Verification{
				User:     FromPayload(claims, v.cfg.ClaimNamespace),
				Endpoint: ep.Name,
				Claims:   claims,
			}, nil
		}

		class := FailureClass(err)
		v.metrics.RecordVerification(ctx, ep.Name, class)
		failures = append(failures, fmt.Errorf("%s: %w", ep.Name, err))

		if i < len(v.endpoints)-1 {
			v.logger.Info("token verification failed, trying next key set",
				zap.String("endpoint", ep.Name),
				zap.String("failure", class),
				zap.String("next_endpoint", v.endpoints[i+1].Name),
				zap.Error(err),
			)
		} else {
			v.logger.Info("token verification failed",
				zap.String("endpoint", ep.Name),
				zap.String("failure", class),
				zap.Error(err),
			)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return nil, newError(KindInvalidToken, ErrInvalidToken.Message, errors.Join(failures...))
}

func (v *Verifier) verifyWith(ctx context.Context, ep Endpoint, token string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if ep.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ep.Issuer))
	}
	parser := jwt.NewParser(opts...)

	retry := v.cfg.Retry
	retry.OnRetry = func(err error, attempt int, delay time.Duration) {
		v.logger.Warn("transient error verifying token, retrying",
			zap.String("endpoint", ep.Name),
			zap.String("jwks_url", ep.Keys.URL()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var claims jwt.MapClaims
	err := retry.Do(ctx, func(ctx context.Context) error {
		parsed, err := parser.Parse(token, ep.Keys.Keyfunc(ctx))
		if err != nil {
			return err
		}
		mc, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || !parsed.Valid {
			return jwt.ErrTokenInvalidClaims
		}
		claims = mc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// FailureClass names the category of a verification failure for logs and
// metrics.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "network"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer_mismatch"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	}
	return "invalid"
}

func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	scheme, rest, found := strings.Cut(token, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return token
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(rest)
}
