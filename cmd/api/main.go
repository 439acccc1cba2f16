package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/notice-engine/internal/bootstrap"
	"github.com/kursadbilgin/notice-engine/internal/config"
	"github.com/kursadbilgin/notice-engine/internal/handler"
	"github.com/kursadbilgin/notice-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/notice-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notice-engine/internal/infra/redis"
	"github.com/kursadbilgin/notice-engine/internal/noticestore"
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/queue"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"github.com/kursadbilgin/notice-engine/internal/service"
	"github.com/kursadbilgin/notice-engine/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "api")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, cfg.DBMaxOpenConns, logger)
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
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL, cfg.DeliveryConcurrency)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	source, err := bootstrap.NoticeSource(cfg, metrics, logger)
	if err != nil {
		logger.Fatal("notice scraper initialization failed", zap.Error(err))
	}

	cache, closeCache, err := bootstrap.NoticeCache(ctx, cfg, rdb)
	if err != nil {
		logger.Fatal("notice cache initialization failed", zap.Error(err))
	}
	defer closeCache() //nolint:errcheck

	noticeClient := noticestore.NewClient(source, cache, noticestore.WithLogger(logger))
	board := noticestore.NewBoard(noticeClient)
	refresher := noticestore.NewRefresher(noticeClient, cfg.RefreshInterval(), nil, board.Set, logger)

	sender, err := bootstrap.PushSender(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Fatal("push sender initialization failed", zap.Error(err))
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	subscriptionRepo := repository.NewGormSubscriptionRepo(db)
	seenRepo := repository.NewGormSeenNoticeRepo(db)
	historyRepo := repository.NewGormHistoryRepo(db)

	subscriptionService, err := service.NewSubscriptionService(subscriptionRepo, logger)
	if err != nil {
		logger.Fatal("subscription service initialization failed", zap.Error(err))
	}

	sweeper, err := service.NewStaleSweeper(subscriptionRepo, logger)
	if err != nil {
		logger.Fatal("stale sweeper initialization failed", zap.Error(err))
	}

	broadcaster, err := service.NewBroadcaster(
		subscriptionRepo,
		historyRepo,
		sender,
		rateLimiter,
		cfg.DeliveryConcurrency,
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("broadcaster initialization failed", zap.Error(err))
	}

	checker, err := service.NewNoticeChecker(
		subscriptionRepo,
		seenRepo,
		historyRepo,
		source,
		broadcaster,
		cfg.Dedup(),
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("notice checker initialization failed", zap.Error(err))
	}

	probes := []handler.Probe{handler.PostgresProbe(sqlDB), handler.RedisProbe(rdb)}

	var jobs handler.JobQueue
	if cfg.QueueMode() {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer rabbit.Close()
		probes = append(probes, handler.BrokerProbe(rabbit.Healthy))

		publisher, err := service.NewJobPublisher(queue.NewRabbitMQPublisher(rabbit))
		if err != nil {
			logger.Fatal("job publisher initialization failed", zap.Error(err))
		}
		jobs = publisher
	}

	adminHandler, err := handler.NewAdminHandler(broadcaster, checker, jobs, subscriptionService, sweeper, historyRepo)
	if err != nil {
		logger.Fatal("admin handler initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(transport.CorrelationID())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, probes...)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNoticeRoutes(app, board); err != nil {
		logger.Fatal("notice routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterPushRoutes(app, subscriptionService, sender.PublicKey()); err != nil {
		logger.Fatal("push routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterAdminRoutes(app, adminHandler); err != nil {
		logger.Fatal("admin routes registration failed", zap.Error(err))
	}
	handler.RegisterProxyRoutes(app, nil)

	go func() {
		if err := refresher.Start(ctx); err != nil {
			logger.Error("notice refresher stopped", zap.Error(err))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("notice-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.String("dispatch_mode", cfg.DispatchMode),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("notice-engine api stopped")
}
