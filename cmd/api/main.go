package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-waitlist/internal/api/http"
	"github.com/spec-kit/ticket-waitlist/internal/api/http/handlers"
	"github.com/spec-kit/ticket-waitlist/internal/auth"
	"github.com/spec-kit/ticket-waitlist/internal/clock"
	"github.com/spec-kit/ticket-waitlist/internal/config"
	"github.com/spec-kit/ticket-waitlist/internal/domain"
	"github.com/spec-kit/ticket-waitlist/internal/events"
	"github.com/spec-kit/ticket-waitlist/internal/observability"
	"github.com/spec-kit/ticket-waitlist/internal/persistence"
	"github.com/spec-kit/ticket-waitlist/internal/ratelimit"
	"github.com/spec-kit/ticket-waitlist/internal/repository"
	"github.com/spec-kit/ticket-waitlist/internal/scheduler"
	"github.com/spec-kit/ticket-waitlist/internal/service"
	"github.com/spec-kit/ticket-waitlist/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	clk := clock.NewSystem()
	taskRepo := repository.NewTaskRepository(pool)
	historyRepo := repository.NewEntryHistoryRepository(pool)
	dispatcher := events.NewInMemoryDispatcher()

	var filter ratelimit.Filter = ratelimit.Noop{}
	if cfg.RateLimit.Enabled() {
		filter = ratelimit.NewRedisWindow(redis.Client, cfg.RateLimit.JoinMax, cfg.RateLimit.Window(), logger)
		logger.Info("join rate limit enabled",
			zap.Int("max", cfg.RateLimit.JoinMax),
			zap.Duration("window", cfg.RateLimit.Window()))
	}

	deps := service.Dependencies{
		Tx:         repository.NewTxManager(pool),
		EventRepo:  repository.NewEventRepository(pool),
		TicketRepo: repository.NewTicketRepository(pool),
		EntryRepo:  repository.NewWaitingListRepository(pool),
		Scheduler:  scheduler.New(taskRepo, clk),
		Dispatcher: dispatcher,
		Filter:     filter,
		Clock:      clk,
		Logger:     logger,
		Metrics:    metrics,
		OfferTTL:   cfg.Offer.TTL(),
	}

	admissionService := service.NewAdmissionService(deps)
	expiryService := service.NewExpiryService(deps)
	purchaseService := service.NewPurchaseService(deps)
	eventService := service.NewEventService(deps)
	worker.StartAuditWorker(service.NewAuditService(dispatcher, historyRepo, logger))

	runner := scheduler.NewRunner(taskRepo, clk, logger,
		scheduler.WithPollInterval(cfg.Scheduler.PollInterval()),
		scheduler.WithLease(cfg.Scheduler.Lease()),
		scheduler.WithBatchSize(cfg.Scheduler.BatchSize),
		scheduler.WithRetryPolicy(scheduler.DefaultRetryPolicy(cfg.Scheduler.MaxAttempts, cfg.Scheduler.RetryBase())),
		scheduler.WithMetrics(metrics),
	)
	runner.Register(domain.TaskExpireOffer, expiryService.HandleExpireTask)
	sweeper := worker.NewOfferSweeper(expiryService, cfg.Scheduler.SweeperInterval(), cfg.Scheduler.BatchSize, logger)

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		runner.Run(ctx)
	}()
	go func() {
		defer workers.Done()
		sweeper.Run(ctx)
	}()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, Immutable: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, taskRepo),
		Metrics:        metrics,
		Events:         handlers.NewEventsHandler(eventService),
		Waitlist:       handlers.NewWaitlistHandler(admissionService, purchaseService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	cancel()
	workers.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
