package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vitigo_crm_backend/internal/adapters"
	"vitigo_crm_backend/internal/adapters/storage"
	emailchannel "vitigo_crm_backend/internal/channels/email"
	"vitigo_crm_backend/internal/email"
	"vitigo_crm_backend/internal/events"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	identityservice "vitigo_crm_backend/internal/identity/service"
	"vitigo_crm_backend/internal/notification"
	"vitigo_crm_backend/internal/notification/outbound"
	"vitigo_crm_backend/internal/query"
	"vitigo_crm_backend/internal/scheduler"
	"vitigo_crm_backend/internal/sms"
	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/db"
	"vitigo_crm_backend/platform/logger"
	"vitigo_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	users := identityrepo.New(pool)
	identitySvc := identityservice.New(pool, users, log)
	resolver := adapters.NewIdentityResolverAdapter(identitySvc)

	notificationModule := notification.NewModule(pool, users, log)
	queryModule := query.NewModule(pool, users, resolver, notificationModule.Fanout(), eventBus, cfg, val, log)

	// Outbox delivery wiring. The mailer attaches stored files when object
	// storage is configured.
	mailer := email.NewSMTPSender(cfg)
	smsClient := sms.NewClient(cfg, log)

	var attachments outbound.AttachmentFetcher
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		attachments = storage.NewAttachmentStore(storageSvc, cfg.GetMinioBucketQueryAttachments(), queryModule.Repository(), log)
	}

	dispatcher := outbound.NewDispatcher(pool, notificationModule.Repository(), mailer, smsClient, attachments, log)

	worker, err := scheduler.NewWorker(cfg, queryModule.Service(), dispatcher, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	pollInterval := time.Duration(0)
	if cfg.GetEmailUser() != "" {
		poller := emailchannel.NewPoller(emailchannel.NewIMAPDialer(cfg), queryModule.Service(), cfg, log)
		worker.SetMailPoller(poller)
		pollInterval = getDurationEnv("EMAIL_POLL_INTERVAL", 5*time.Minute)
		log.Info("mailbox polling enabled", "user", cfg.GetEmailUser(), "interval", pollInterval)
	} else {
		log.Warn("EMAIL_USER not configured; mailbox polling disabled")
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer client.Close()

	sweepInterval := getDurationEnv("SWEEP_INTERVAL", time.Minute)
	dispatchInterval := getDurationEnv("OUTBOX_DISPATCH_INTERVAL", 30*time.Second)
	periodic := scheduler.NewPeriodic(client, sweepInterval, dispatchInterval, pollInterval, log)
	go periodic.Run(ctx)

	worker.Run(ctx)
	log.Info("worker stopped")
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
