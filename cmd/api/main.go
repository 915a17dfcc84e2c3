package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medivuno/scheduler/cmd/mainconfig"
	"github.com/medivuno/scheduler/internal/api/router"
	"github.com/medivuno/scheduler/internal/audit"
	"github.com/medivuno/scheduler/internal/clinic"
	appconfig "github.com/medivuno/scheduler/internal/config"
	"github.com/medivuno/scheduler/internal/directory"
	"github.com/medivuno/scheduler/internal/events"
	"github.com/medivuno/scheduler/internal/notify"
	"github.com/medivuno/scheduler/internal/observability/metrics"
	"github.com/medivuno/scheduler/internal/schedule"
	"github.com/medivuno/scheduler/internal/worker/notifications"
	"github.com/medivuno/scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage. Without DATABASE_URL the service runs fully in memory, which is
	// how local development and the demo environment operate.
	var (
		repo      schedule.Repository
		statsRepo *schedule.StatsRepository
	)
	var trail *audit.Trail
	var processedStore *events.ProcessedStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		repo = schedule.NewPostgresRepository(pool)
		statsRepo = schedule.NewStatsRepository(pool)
		processedStore = events.NewProcessedStore(pool)

		sqlDB := stdlib.OpenDBFromPool(pool)
		defer func() { _ = sqlDB.Close() }()
		trail = audit.NewTrail(sqlDB)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory appointment store")
		repo = schedule.NewInMemoryRepository()
	}

	// Doctor settings live in redis; without it "today" falls back to UTC days.
	var settingsStore *clinic.Store
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		settingsStore = clinic.NewStore(redis.NewClient(redisOpts))
	} else {
		logger.Warn("REDIS_ADDR not set, doctor settings disabled")
	}

	// Queue. SQS in production, in-process channel for local development.
	var queue events.Queue
	var awsAvailable bool
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("failed to load AWS config", "error", err)
	} else {
		awsAvailable = true
	}
	if cfg.UseMemoryQueue || !awsAvailable || cfg.NotificationQueueURL == "" {
		logger.Info("using in-memory notification queue")
		queue = events.NewMemoryQueue(256)
	} else {
		queue = events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL)
	}
	publisher := events.NewPublisher(queue, logger)

	var lookup directory.Lookup
	if cfg.DirectoryBaseURL != "" {
		client, err := directory.NewHTTPClient(directory.Config{
			BaseURL: cfg.DirectoryBaseURL,
			Timeout: cfg.DirectoryTimeout,
		})
		if err != nil {
			logger.Error("failed to configure directory client", "error", err)
			os.Exit(1)
		}
		lookup = client
	}

	schedMetrics := metrics.NewSchedulerMetrics(nil)

	svcCfg := schedule.ServiceConfig{
		Repo:      repo,
		Logger:    logger,
		Metrics:   schedMetrics,
		Publisher: publisher,
	}
	if trail != nil {
		svcCfg.Audit = trail
	}
	if settingsStore != nil {
		svcCfg.DayBounds = settingsStore
	}
	svc := schedule.NewService(svcCfg)

	var history schedule.HistoryLister
	if trail != nil {
		history = trail
	}
	scheduleHandler := schedule.NewHandler(svc, statsRepo, history, lookup, logger)

	var clinicHandler *clinic.Handler
	if settingsStore != nil {
		clinicHandler = clinic.NewHandler(settingsStore, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		ScheduleHandler:    scheduleHandler,
		ClinicHandler:      clinicHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		DoctorAuthSecret:   cfg.DoctorJWTSecret,
		RateLimitPerSec:    cfg.RateLimitPerSec,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	// With the in-memory queue no separate worker process can see the events,
	// so the notification worker runs inside the API process.
	if cfg.NotificationsEnabled {
		if _, inline := queue.(*events.MemoryQueue); inline {
			notifier := buildNotifier(cfg, awsCfg, awsAvailable, settingsStore, lookup, logger)
			worker := notifications.New(queue, notifier, dedupe(processedStore), logger, notifications.Config{
				Workers:         cfg.WorkerCount,
				ReceiveWaitSecs: 1,
			})
			worker.Start(ctx)
			defer worker.Wait()
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildNotifier assembles the notification service from whichever email
// provider and delivery log the environment configures.
func buildNotifier(cfg *appconfig.Config, awsCfg aws.Config, awsAvailable bool, settings *clinic.Store, lookup directory.Lookup, logger *logging.Logger) *notify.Service {
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			sender = s
		}
	case "ses":
		if awsAvailable {
			if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger); s != nil {
				sender = s
			}
		}
	}
	if sender == nil {
		sender = notify.NewStubEmailSender(logger)
	}

	var deliveries notify.DeliveryRecorder
	if cfg.DeliveryLogEnabled && awsAvailable {
		deliveries = notify.NewDeliveryLog(dynamodb.NewFromConfig(awsCfg), cfg.DeliveryLogTable, logger)
	}

	var settingsStore notify.SettingsStore
	if settings != nil {
		settingsStore = settings
	}
	return notify.NewService(sender, settingsStore, lookup, deliveries, logger)
}

// dedupe narrows the nil check so a nil *ProcessedStore never becomes a
// non-nil Deduper interface.
func dedupe(store *events.ProcessedStore) notifications.Deduper {
	if store == nil {
		return nil
	}
	return store
}
