package auth

import (
	"context"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"go.uber.org/zap"
)

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Verification, error)
}

// Gate turns an Authorization header value into an authenticated User.
type Gate struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewGate creates a gate backed by verifier.
func NewGate(verifier TokenVerifier, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{verifier: verifier, logger: logger}
}

// RequireAuth returns the user for header or an *Error describing why the
// caller is unauthenticated. Transient verification trouble that outlasts
// retries is reported as an invalid token.
func (g *Gate) RequireAuth(ctx context.Context, header string) (*User, error) {
	requestID := chimw.GetReqID(ctx)

	token, err := BearerToken(header)
	if err != nil {
		g.logger.Debug("authorization header rejected",
			zap.String("request_id", requestID),
			zap.String("reason", string(KindOf(err))),
		)
		return nil, err
	}

	result, err := g.verifier.Verify(ctx, token)
	if err != nil {
		kind := KindOf(err)
		g.logger.Warn("authentication failed",
			zap.String("request_id", requestID),
			zap.String("reason", string(kind)),
			zap.String("failure", FailureClass(err)),
		)
		if kind == KindMissingToken || kind == KindInvalidToken {
			return nil, err
		}
		return nil, newError(KindInvalidToken, ErrInvalidToken.Message, err)
	}

	user := result.User
	g.logger.Info("request authenticated",
		zap.String("request_id", requestID),
		zap.String("endpoint", result.Endpoint),
		zap.String("subject", observability.TruncateID(user.ID)),
	)
	return &user, nil
}

// OptionalAuth is RequireAuth that reports every failure as an anonymous
// caller.
func (g *Gate) OptionalAuth(ctx context.Context, header string) *User {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	user, err := g.RequireAuth(ctx, header)
	if err != nil {
		g.logger.Debug("optional authentication failed, continuing anonymously",
			zap.String("request_id", chimw.GetReqID(ctx)),
			zap.String("reason", string(KindOf(err))),
		)
		return nil
	}
	return user
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingHeader
	}

	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedHeader
	}

	token := strings.TrimSpace(rest)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
