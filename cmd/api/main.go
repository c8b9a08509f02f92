package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/authkit/auth-service/internal/api/http"
	"github.com/authkit/auth-service/internal/api/http/handlers"
	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/config"
	"github.com/authkit/auth-service/internal/events"
	"github.com/authkit/auth-service/internal/observability"
	"github.com/authkit/auth-service/internal/persistence"
	"github.com/authkit/auth-service/internal/repository"
	"github.com/authkit/auth-service/internal/service"
	"github.com/authkit/auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var userRepo repository.UserRepository
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		SigningKey:         []byte(cfg.Auth.JWTSecret),
		TTL:                cfg.Auth.TokenTTL(),
		ClockSkewTolerance: cfg.Auth.ClockSkew(),
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	auditService := service.NewAuditService(redis.Client, cfg.Redis.AuditStream)
	auditWorker := worker.StartAuditWorker(dispatcher, auditService, metrics, logger, worker.AuditWorkerConfig{
		BufferSize: cfg.Redis.AuditBufferSize,
	})

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	authService := service.NewAuthService(service.AuthDependencies{
		Users:  userRepo,
		Hasher: hasher,
		Tokens: tokens,
		Events: dispatcher,
		Logger: logger,
	})
	userService := service.NewUserService(userRepo, hasher, dispatcher, logger)
	authMiddleware := auth.NewAuthMiddleware(authService)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService, userService, auditService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := auditWorker.Stop(stopCtx); err != nil {
		logger.Warn("audit worker did not drain", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
