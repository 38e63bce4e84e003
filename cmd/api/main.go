package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/tracklite-io/tracklite/internal/api/http"
	"github.com/tracklite-io/tracklite/internal/api/http/handlers"
	"github.com/tracklite-io/tracklite/internal/auth"
	"github.com/tracklite-io/tracklite/internal/config"
	"github.com/tracklite-io/tracklite/internal/events"
	"github.com/tracklite-io/tracklite/internal/observability"
	"github.com/tracklite-io/tracklite/internal/persistence"
	"github.com/tracklite-io/tracklite/internal/push"
	"github.com/tracklite-io/tracklite/internal/repository"
	"github.com/tracklite-io/tracklite/internal/service"
	"github.com/tracklite-io/tracklite/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	registry := push.NewRegistry()
	bridge := push.NewBridge(redis.ClientHandle(), registry, logger)

	authService := service.NewAuthService(*cfg, store)
	projectService := service.NewProjectService(store)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Registry:   registry,
		Bridge:     bridge,
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Notification,
	})

	worker.StartNotificationWorker(ctx, notificationService, bridge)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		ErrorHandler: httptransport.NewErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Auth:          authMiddleware,
		Users:         handlers.NewUsersHandler(authService),
		Projects:      handlers.NewProjectsHandler(projectService),
		Tickets:       handlers.NewTicketsHandler(ticketService),
		Notifications: handlers.NewNotificationsHandler(notificationService),
		Stream:        handlers.NewStreamHandler(registry, cfg.Notification, logger),
		Health:        handlers.NewHealthHandler(pg, redis, metrics, cfg.App.Version),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
