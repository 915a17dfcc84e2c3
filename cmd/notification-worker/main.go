package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/medivuno/scheduler/cmd/mainconfig"
	"github.com/medivuno/scheduler/internal/clinic"
	appconfig "github.com/medivuno/scheduler/internal/config"
	"github.com/medivuno/scheduler/internal/directory"
	"github.com/medivuno/scheduler/internal/events"
	"github.com/medivuno/scheduler/internal/notify"
	"github.com/medivuno/scheduler/internal/worker/notifications"
	"github.com/medivuno/scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting notification worker", "env", cfg.Env)

	if cfg.UseMemoryQueue {
		logger.Error("notification worker cannot run with USE_MEMORY_QUEUE=true; the API process runs inline workers instead")
		os.Exit(1)
	}
	if cfg.NotificationQueueURL == "" {
		logger.Error("NOTIFICATION_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL)

	// Dedupe state lives in postgres; without it redeliveries send twice.
	var dedupe notifications.Deduper
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dedupe = events.NewProcessedStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, event dedupe disabled")
	}

	var settingsStore notify.SettingsStore
	if cfg.RedisAddr != "" {
		settingsStore = clinic.NewStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}))
	}

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
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			sender = s
		}
	}
	if sender == nil {
		logger.Warn("no email provider configured, using stub sender")
		sender = notify.NewStubEmailSender(logger)
	}

	var deliveries notify.DeliveryRecorder
	if cfg.DeliveryLogEnabled {
		deliveries = notify.NewDeliveryLog(dynamodb.NewFromConfig(awsCfg), cfg.DeliveryLogTable, logger)
	}

	notifier := notify.NewService(sender, settingsStore, lookup, deliveries, logger)

	worker := notifications.New(queue, notifier, dedupe, logger, notifications.Config{
		Workers: cfg.WorkerCount,
	})
	worker.Start(ctx)

	logger.Info("notification worker running", "workers", cfg.WorkerCount)
	<-ctx.Done()
	logger.Info("shutting down notification worker...")
	worker.Wait()
	logger.Info("notification worker stopped")
}
