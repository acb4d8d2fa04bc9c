package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vitigo_crm_backend/internal/adapters"
	emailchannel "vitigo_crm_backend/internal/channels/email"
	"vitigo_crm_backend/internal/events"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	identityservice "vitigo_crm_backend/internal/identity/service"
	"vitigo_crm_backend/internal/notification"
	"vitigo_crm_backend/internal/query"
	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/db"
	"vitigo_crm_backend/platform/logger"
	"vitigo_crm_backend/platform/validator"
)

// One-shot mailbox poll, for cron setups that do not run the worker binary.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	if cfg.GetEmailUser() == "" {
		log.Error("EMAIL_USER not configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	users := identityrepo.New(pool)
	identitySvc := identityservice.New(pool, users, log)
	resolver := adapters.NewIdentityResolverAdapter(identitySvc)

	notificationModule := notification.NewModule(pool, users, log)
	queryModule := query.NewModule(pool, users, resolver, notificationModule.Fanout(), eventBus, cfg, val, log)

	poller := emailchannel.NewPoller(emailchannel.NewIMAPDialer(cfg), queryModule.Service(), cfg, log)

	res, err := poller.Poll(ctx)
	if err != nil {
		log.Error("mailbox poll failed", "error", err)
		os.Exit(1)
	}

	log.Info("mailbox poll complete",
		"logged", res.Logged,
		"ingested", res.Ingested,
		"duplicates", res.Duplicates,
		"errors", res.Errors,
	)
	if res.Errors > 0 {
		os.Exit(1)
	}
}
