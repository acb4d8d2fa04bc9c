package scheduler

import (
	"context"
	"fmt"

	emailchannel "vitigo_crm_backend/internal/channels/email"
	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Sweeper runs the query timer sweeps. Implemented by the query service.
type Sweeper interface {
	SweepFollowUps(ctx context.Context) (int, error)
	SweepOverdue(ctx context.Context) (int, error)
}

// OutboxDispatcher delivers pending email/SMS notification rows.
type OutboxDispatcher interface {
	DispatchPending(ctx context.Context) (sent, failed int, err error)
}

// MailPoller ingests unseen marked messages from the support mailbox.
type MailPoller interface {
	Poll(ctx context.Context) (emailchannel.PollResult, error)
}

// Worker consumes background tasks from the shared queue.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	sweeper    Sweeper
	dispatcher OutboxDispatcher
	poller     MailPoller
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper Sweeper, dispatcher OutboxDispatcher, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		sweeper:    sweeper,
		dispatcher: dispatcher,
		log:        log,
	}

	mux.HandleFunc(TaskSweepFollowUps, w.handleSweepFollowUps)
	mux.HandleFunc(TaskSweepOverdue, w.handleSweepOverdue)
	mux.HandleFunc(TaskDispatchNotifications, w.handleDispatchNotifications)
	mux.HandleFunc(TaskPollEmail, w.handlePollEmail)

	return w, nil
}

// SetMailPoller enables the email poll task. Without it the task is a no-op,
// so deployments without a mailbox run the same worker.
func (w *Worker) SetMailPoller(p MailPoller) {
	w.poller = p
}

func (w *Worker) handleSweepFollowUps(ctx context.Context, _ *asynq.Task) error {
	n, err := w.sweeper.SweepFollowUps(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("follow-up sweep complete", "notified", n)
		return w.dispatchAfterSweep(ctx)
	}
	return nil
}

func (w *Worker) handleSweepOverdue(ctx context.Context, _ *asynq.Task) error {
	n, err := w.sweeper.SweepOverdue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("overdue sweep complete", "notified", n)
		return w.dispatchAfterSweep(ctx)
	}
	return nil
}

func (w *Worker) handleDispatchNotifications(ctx context.Context, _ *asynq.Task) error {
	sent, failed, err := w.dispatcher.DispatchPending(ctx)
	if err != nil {
		return err
	}
	if sent > 0 || failed > 0 {
		w.log.Info("notification dispatch complete", "sent", sent, "failed", failed)
	}
	return nil
}

func (w *Worker) handlePollEmail(ctx context.Context, _ *asynq.Task) error {
	if w.poller == nil {
		return nil
	}
	res, err := w.poller.Poll(ctx)
	if err != nil {
		return err
	}
	w.log.Info("mailbox poll complete",
		"logged", res.Logged, "ingested", res.Ingested,
		"duplicates", res.Duplicates, "errors", res.Errors)
	if res.Ingested > 0 {
		return w.dispatchAfterSweep(ctx)
	}
	return nil
}

// dispatchAfterSweep delivers the outbox rows the preceding step produced.
func (w *Worker) dispatchAfterSweep(ctx context.Context) error {
	_, _, err := w.dispatcher.DispatchPending(ctx)
	return err
}

// Run blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
