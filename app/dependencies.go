package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/liminal-ai/liminal-chat/auth"
	"github.com/liminal-ai/liminal-chat/config"
	"github.com/liminal-ai/liminal-chat/handlers"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"github.com/liminal-ai/liminal-chat/middleware"
	"github.com/liminal-ai/liminal-chat/repositories"
	"github.com/liminal-ai/liminal-chat/repositories/postgres"
	"github.com/liminal-ai/liminal-chat/services"
	"go.uber.org/zap"
)

// Dependencies holds everything the HTTP surface needs. It is the single
// place where components are constructed and wired together.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics observability.Metrics

	// Nil when DATABASE_URL is unset
	RepoFactory *postgres.RepositoryFactory

	// Auth
	Auth           *auth.Service
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	Conversations *services.ConversationService

	// Handlers
	Health            *handlers.HealthHandler
	Me                *handlers.MeHandler
	ConversationsHTTP *handlers.ConversationHandler

	shutdownMetrics func(context.Context) error
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initMetrics(cfg.Observability); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := deps.initAuth(cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initStore(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("environment", cfg.Environment),
		zap.Bool("conversations_enabled", deps.Conversations.Available()))
	return deps, nil
}

func (d *Dependencies) initMetrics(cfg config.ObservabilityConfig) error {
	provider, shutdown, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(provider)
	if err != nil {
		_ = shutdown(context.Background())
		return err
	}
	d.Metrics = metrics
	d.shutdownMetrics = shutdown
	return nil
}

func (d *Dependencies) initAuth(cfg config.AuthConfig) error {
	svc, err := auth.NewService(cfg, d.Logger.Named("auth"), d.Metrics)
	if err != nil {
		return err
	}
	d.Auth = svc
	d.AuthMiddleware = middleware.NewAuthMiddleware(svc, d.Logger.Named("http"))
	return nil
}

// initStore connects the conversation store when a database is configured.
func (d *Dependencies) initStore(ctx context.Context, cfg config.DatabaseConfig) error {
	var repo repositories.ConversationRepository

	if cfg.Enabled() {
		factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger.Named("postgres"))
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.RepoFactory = factory
		repo = factory.NewRepositories().Conversations
	} else {
		d.Logger.Warn("DATABASE_URL not set, conversation endpoints disabled")
	}

	d.Conversations = services.NewConversationService(repo, d.Logger.Named("conversations"))
	return nil
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	var db handlers.HealthChecker
	if d.RepoFactory != nil {
		db = d.RepoFactory.DB()
	}

	d.Health = handlers.NewHealthHandler(db, d.Logger)
	d.Me = handlers.NewMeHandler(cfg.Environment, d.Logger)
	d.ConversationsHTTP = handlers.NewConversationHandler(d.Conversations, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.shutdownMetrics != nil {
		if err := d.shutdownMetrics(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush metrics: %w", err))
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
