package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/handoff-service/internal/api/http"
	"github.com/spec-kit/handoff-service/internal/api/http/handlers"
	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/config"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/handoff"
	"github.com/spec-kit/handoff-service/internal/observability"
	"github.com/spec-kit/handoff-service/internal/persistence"
	"github.com/spec-kit/handoff-service/internal/repository"
	"github.com/spec-kit/handoff-service/internal/service"
	"github.com/spec-kit/handoff-service/internal/settings"
	"github.com/spec-kit/handoff-service/internal/transport"
	"github.com/spec-kit/handoff-service/internal/worker"
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

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	sessionRepo := repository.NewSessionRepository(pool)
	transcriptRepo := repository.NewTranscriptRepository(pool)

	resolver := settings.NewStaticResolver(cfg.Provider)

	limiter := transport.NewLimiter(cfg.Handoff.StandardRequestsPerMinute, cfg.Handoff.BurstRequestsPerSecond)
	sessionClient := transport.NewSessionClient(limiter, transport.DefaultRetryPolicy(), logger)
	relay := transport.NewRelay(redis.Client, cfg.Handoff.KeepAlive(), logger)
	streams := transport.NewStreams(relay, cfg.Handoff.PollInterval(), logger)

	registry := handoff.NewRegistry()
	handoffService := service.NewHandoffService(cfg, service.HandoffDependencies{
		Resolver:   resolver,
		Registry:   registry,
		Sessions:   sessionClient,
		Streams:    streams,
		Dispatcher: dispatcher,
	}, logger)

	notificationService := service.NewNotificationService(dispatcher, logger)
	transcriptService := service.NewTranscriptService(service.TranscriptDependencies{
		SessionRepo:    sessionRepo,
		TranscriptRepo: transcriptRepo,
		Dispatcher:     dispatcher,
	}, logger)
	worker.StartEventConsumers(notificationService, transcriptService)

	sessionMiddleware := auth.NewSessionMiddleware(handoffService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	handoffHandler := handlers.NewHandoffHandler(handoffService)
	webhookHandler := handlers.NewWebhookHandler(resolver, relay, logger)
	streamHandler := handlers.NewStreamHandler(handoffService, metrics, logger, cfg.Handoff.KeepAlive())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            healthHandler,
		Handoff:           handoffHandler,
		Webhook:           webhookHandler,
		Stream:            streamHandler,
		SessionMiddleware: sessionMiddleware,
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
