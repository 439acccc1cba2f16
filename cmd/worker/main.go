package main

import (
	"context"
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
	"github.com/kursadbilgin/notice-engine/internal/observability"
	"github.com/kursadbilgin/notice-engine/internal/queue"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"github.com/kursadbilgin/notice-engine/internal/service"
	"github.com/kursadbilgin/notice-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "worker")
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

	scheduler, err := service.NewCheckScheduler(checker, cfg.CheckInterval(), logger)
	if err != nil {
		logger.Fatal("check scheduler initialization failed", zap.Error(err))
	}

	probes := []handler.Probe{handler.PostgresProbe(sqlDB), handler.RedisProbe(rdb)}
	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Start(groupCtx)
	})

	if cfg.QueueMode() {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer rabbit.Close()
		probes = append(probes, handler.BrokerProbe(rabbit.Healthy))

		consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
		defer consumer.Close()

		worker, err := service.NewDispatchWorker(consumer, broadcaster, checker, cfg.WorkerConcurrency, logger)
		if err != nil {
			logger.Fatal("dispatch worker initialization failed", zap.Error(err))
		}

		g.Go(func() error {
			return worker.Start(groupCtx)
		})
	}

	metricsApp := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	handler.RegisterHealthRoutes(metricsApp, probes...)
	metricsApp.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	g.Go(func() error {
		return metricsApp.Listen(fmt.Sprintf(":%d", cfg.WorkerMetricsPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsApp.ShutdownWithContext(shutdownCtx)
	})

	logger.Info("notice-engine worker started",
		zap.String("dispatch_mode", cfg.DispatchMode),
		zap.Duration("check_interval", cfg.CheckInterval()),
		zap.Int("concurrency", cfg.WorkerConcurrency),
	)

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}

	logger.Info("notice-engine worker stopped")
}
