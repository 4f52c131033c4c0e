package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/liminal-ai/liminal-chat/app"
	"github.com/liminal-ai/liminal-chat/config"
	"github.com/liminal-ai/liminal-chat/utils"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(corsOptions(deps.Config)))

	r.Get("/healthz", deps.Health.HandleHealth)
	r.Get("/readyz", deps.Health.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(deps.AuthMiddleware.OptionalAuth).Get("/status", deps.Me.HandleStatus)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.Get("/me", deps.Me.HandleMe)

			r.Route("/conversations", func(r chi.Router) {
				if perm := deps.Config.Auth.RequiredPermission; perm != "" {
					r.Use(deps.AuthMiddleware.RequirePermission(perm))
				}
				r.Get("/", deps.ConversationsHTTP.HandleList)
				r.Post("/", deps.ConversationsHTTP.HandleCreate)
				r.Get("/{id}", deps.ConversationsHTTP.HandleGet)
				r.Delete("/{id}", deps.ConversationsHTTP.HandleDelete)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// corsOptions allows bearer-token requests from the configured origins. No
// cookies are involved, so credentials are never allowed.
func corsOptions(cfg *config.Config) cors.Options {
	opts := cors.Options{
		AllowedOrigins: cfg.CORSOrigins(),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID", "WWW-Authenticate"},
		MaxAge:         300,
	}
	if len(opts.AllowedOrigins) == 0 {
		// cors treats an empty list as "*".
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
	}
	return opts
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
