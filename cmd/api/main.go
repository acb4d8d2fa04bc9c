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
	"vitigo_crm_backend/internal/channels/webhook"
	"vitigo_crm_backend/internal/events"
	apphttp "vitigo_crm_backend/internal/http"
	"vitigo_crm_backend/internal/http/router"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	identityservice "vitigo_crm_backend/internal/identity/service"
	"vitigo_crm_backend/internal/notification"
	"vitigo_crm_backend/internal/query"
	"vitigo_crm_backend/internal/scheduler"
	"vitigo_crm_backend/migrations"
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

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	users := identityrepo.New(pool)
	identitySvc := identityservice.New(pool, users, log)

	// Notification module owns the in-app inbox and the mail/SMS outbox
	notificationModule := notification.NewModule(pool, users, log)

	// Anti-corruption adapter keeps the query module on its own
	// IdentityResolver interface
	resolver := adapters.NewIdentityResolverAdapter(identitySvc)

	queryModule := query.NewModule(pool, users, resolver, notificationModule.Fanout(), eventBus, cfg, val, log)

	// Attachments need MinIO; without it the upload endpoints stay unregistered
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		bucket := cfg.GetMinioBucketQueryAttachments()
		if err := withRetry(ctx, log, "ensure attachments bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx, bucket)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		queryModule.SetAttachmentStore(storage.NewAttachmentStore(storageSvc, bucket, queryModule.Repository(), log))
		log.Info("storage service initialized", "attachmentsBucket", bucket)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; attachment uploads disabled")
	}

	// Messaging channels drive the same lifecycle engine as the HTTP intake
	webhookModule := webhook.NewModule(pool, queryModule.Service(), queryModule.Service(), users, cfg, log)

	// With Redis configured, domain events nudge the worker to flush the
	// notification outbox promptly instead of waiting for the next tick
	if cfg.GetRedisURL() != "" {
		dispatchClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer dispatchClient.Close()
		scheduler.NewEventTrigger(dispatchClient, log).RegisterHandlers(eventBus)
		log.Info("outbox dispatch trigger registered")
	} else {
		log.Warn("REDIS_URL not configured; outbox dispatch relies on the worker's periodic sweep")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			queryModule,
			notificationModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
