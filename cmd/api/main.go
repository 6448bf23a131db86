package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/webhook-dispatch/internal/config"
	"github.com/kursadbilgin/webhook-dispatch/internal/handler"
	"github.com/kursadbilgin/webhook-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/webhook-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/webhook-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/webhook-dispatch/internal/observability"
	"github.com/kursadbilgin/webhook-dispatch/internal/provider"
	"github.com/kursadbilgin/webhook-dispatch/internal/queue"
	"github.com/kursadbilgin/webhook-dispatch/internal/repository"
	"github.com/kursadbilgin/webhook-dispatch/internal/retry"
	"github.com/kursadbilgin/webhook-dispatch/internal/service"
	"github.com/kursadbilgin/webhook-dispatch/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	genericVendorName = "generic"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close() //nolint:errcheck

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}

	publisher := queue.NewRabbitMQPublisher(broker)
	defer publisher.Close() //nolint:errcheck

	notificationRepo := repository.NewGormNotificationRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	genericAdapter, err := provider.NewGenericHTTPAdapter(genericVendorName, cfg.HTTPTimeout)
	if err != nil {
		logger.Fatal("failed to build generic adapter", zap.Error(err))
	}
	registry, err := provider.NewRegistry(genericAdapter)
	if err != nil {
		logger.Fatal("failed to build adapter registry", zap.Error(err))
	}

	calculator, err := retry.NewCalculator(cfg.InitialRetryDelay, cfg.MaxRetryDelay)
	if err != nil {
		logger.Fatal("failed to build retry calculator", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	notificationService, err := service.NewNotificationService(notificationRepo, publisher, logger)
	if err != nil {
		logger.Fatal("failed to build notification service", zap.Error(err))
	}

	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)
	workerService, err := service.NewWorkerService(
		notificationRepo,
		attemptRepo,
		consumer,
		publisher,
		registry,
		calculator,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to build worker service", zap.Error(err))
	}
	workerService.SetMetrics(metrics)

	sweeperLock, err := infraredis.NewSweeperLock(rdb, 0)
	if err != nil {
		logger.Fatal("failed to build sweeper lock", zap.Error(err))
	}
	sweeper, err := service.NewSweeper(notificationRepo, publisher, sweeperLock, cfg.SweeperInterval, 0, logger)
	if err != nil {
		logger.Fatal("failed to build sweeper", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(app, notificationService, attemptRepo, cfg.RetryAdminTokenHash); err != nil {
		logger.Fatal("failed to register notification routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return workerService.Start(groupCtx)
	})
	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("webhook-dispatch api started", zap.Int("port", cfg.APIPort))
		return app.Listen(":" + strconv.Itoa(cfg.APIPort))
	})

	<-groupCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("fiber shutdown error", zap.Error(err))
	}
	if err := consumer.Close(); err != nil {
		logger.Error("consumer close error", zap.Error(err))
	}

	if err := g.Wait(); err != nil && groupCtx.Err() == nil {
		logger.Error("service exited with error", zap.Error(err))
	}
}
