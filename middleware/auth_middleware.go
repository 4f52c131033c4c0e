package middleware

import (
	"context"
	"net/http"

	"github.com/liminal-ai/liminal-chat/auth"
	"github.com/liminal-ai/liminal-chat/utils"
	"go.uber.org/zap"
)

// Authenticator resolves an Authorization header to a user
type Authenticator interface {
	RequireAuth(ctx context.Context, header string) (*auth.User, error)
	OptionalAuth(ctx context.Context, header string) *auth.User
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireAuth rejects requests without a valid bearer token with 401
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := m.authenticator.RequireAuth(ctx, r.Header.Get("Authorization"))
		if err != nil {
			if !auth.IsUnauthenticated(err) {
				m.logger.Error("authentication error",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.Error(err))
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="liminal-chat"`)
			_ = utils.WriteUnauthorized(w, UnauthorizedMessage(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
	})
}

// OptionalAuth attaches the user when the token verifies and otherwise lets
// the request through anonymously
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if user := m.authenticator.OptionalAuth(ctx, r.Header.Get("Authorization")); user != nil {
			ctx = WithUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission is a middleware that requires a specific permission claim.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			user := GetUserFromContext(ctx)
			if user == nil {
				m.logger.Error("user not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !user.HasPermission(permission) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_permission", permission))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UnauthorizedMessage is the client-facing text for an authentication
// failure. It never says which key set rejected the token.
func UnauthorizedMessage(err error) string {
	switch auth.KindOf(err) {
	case auth.KindMissingHeader:
		return "Missing authorization header"
	case auth.KindMalformedHeader:
		return "Invalid authorization header"
	case auth.KindMissingToken:
		return "Missing bearer token"
	}
	return "Invalid or expired token"
}
