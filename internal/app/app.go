// Package app wires storage, services and HTTP handlers from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/interaction-tracker/internal/api/http"
	"github.com/spec-kit/interaction-tracker/internal/api/http/handlers"
	"github.com/spec-kit/interaction-tracker/internal/auth"
	"github.com/spec-kit/interaction-tracker/internal/config"
	"github.com/spec-kit/interaction-tracker/internal/events"
	"github.com/spec-kit/interaction-tracker/internal/flash"
	"github.com/spec-kit/interaction-tracker/internal/observability"
	"github.com/spec-kit/interaction-tracker/internal/persistence"
	"github.com/spec-kit/interaction-tracker/internal/repository"
	"github.com/spec-kit/interaction-tracker/internal/repository/memory"
	"github.com/spec-kit/interaction-tracker/internal/service"
)

// Repositories groups the storage backend behind the repository interfaces.
type Repositories struct {
	Tx           repository.TxRunner
	Users        repository.UserRepository
	Clients      repository.ClientRepository
	Interactions repository.InteractionRepository
	History      repository.InteractionHistoryRepository
	Reports      repository.ReportRepository
}

// NewRepositories returns Postgres-backed repositories when a pool is
// configured and the in-memory store otherwise.
func NewRepositories(pg *persistence.Postgres) Repositories {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return Repositories{
			Tx:           repository.NewTxManager(pool),
			Users:        repository.NewUserRepository(pool),
			Clients:      repository.NewClientRepository(pool),
			Interactions: repository.NewInteractionRepository(pool),
			History:      repository.NewInteractionHistoryRepository(pool),
			Reports:      repository.NewReportRepository(pool),
		}
	}
	store := memory.NewStore()
	return Repositories{
		Tx:           store,
		Users:        store.Users(),
		Clients:      store.Clients(),
		Interactions: store.Interactions(),
		History:      store.History(),
		Reports:      store.Reports(),
	}
}

// Services holds the application services.
type Services struct {
	Policy       auth.Policy
	Tokens       *auth.TokenManager
	Revoked      auth.RevocationList
	Auth         *service.AuthService
	Interactions *service.InteractionService
	Clients      *service.ClientService
	Users        *service.UserService
	Reports      *service.ReportService
}

// NewServices builds every service on top of repos. Redis backs the
// revocation list when available.
func NewServices(cfg *config.Config, repos Repositories, rdb *persistence.Redis, logger *zap.Logger) (*Services, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	policy := auth.NewPolicy(cfg.Features.LockResolvedInteractions)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
	revoked := auth.NewMemoryRevocationList()
	if rdb.Enabled() {
		revoked = auth.NewRedisRevocationList(rdb.Client)
	}

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	return &Services{
		Policy:  policy,
		Tokens:  tokens,
		Revoked: revoked,
		Auth: service.NewAuthService(service.AuthDependencies{
			Users:       repos.Users,
			Hasher:      hasher,
			Tokens:      tokens,
			Revoked:     revoked,
			SessionTTL:  cfg.Auth.SessionTTL(),
			RememberTTL: cfg.Auth.RememberTTL(),
		}),
		Interactions: service.NewInteractionService(service.InteractionDependencies{
			Tx:             repos.Tx,
			Interactions:   repos.Interactions,
			Clients:        repos.Clients,
			History:        repos.History,
			Dispatcher:     dispatcher,
			Policy:         policy,
			HistoryEnabled: cfg.Features.HistoryEnabled,
			Location:       loc,
			Clock:          time.Now,
		}),
		Clients: service.NewClientService(repos.Clients),
		Users:   service.NewUserService(repos.Users, hasher, policy, dispatcher),
		Reports: service.NewReportService(service.ReportDependencies{
			Reports:      repos.Reports,
			Users:        repos.Users,
			Interactions: repos.Interactions,
			Policy:       policy,
			Location:     loc,
		}),
	}, nil
}

// NewHTTPServer assembles the fiber app.
func NewHTTPServer(cfg *config.Config, svc *Services, repos Repositories, pg *persistence.Postgres, rdb *persistence.Redis, logger *zap.Logger) *fiber.App {
	var store flash.Store = flash.NewMemoryStore()
	if rdb.Enabled() {
		store = flash.NewRedisStore(rdb.Client)
	}
	flashes := handlers.NewFlashes(store, logger, cfg.Auth.CookieSecure)
	metrics := observability.NewMetrics()

	return httptransport.NewServer(cfg.App.Name, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Flashes:     flashes,
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb, metrics),
		Auth:           handlers.NewAuthHandler(svc.Auth, flashes, cfg.Auth),
		Interactions:   handlers.NewInteractionsHandler(svc.Interactions, svc.Clients, flashes),
		Admin:          handlers.NewAdminHandler(svc.Interactions, svc.Reports, svc.Users, flashes),
		Clients:        handlers.NewClientsHandler(svc.Clients, flashes),
		AuthMiddleware: auth.NewAuthMiddleware(svc.Tokens, repos.Users, svc.Revoked, cfg.Auth.CookieName),
		Policy:         svc.Policy,
	})
}

// Open connects the configured backends and runs migrations when asked to.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*persistence.Postgres, *persistence.Redis, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return pg, persistence.NewRedis(ctx, cfg.Redis, logger), nil
}
