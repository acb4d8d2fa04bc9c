package scheduler

import (
	"context"
	"time"

	"vitigo_crm_backend/platform/logger"
)

// Periodic enqueues the recurring tasks: timer sweeps, outbox delivery and
// mailbox polls. It runs in the worker process next to the asynq server.
type Periodic struct {
	client           *Client
	sweepInterval    time.Duration
	dispatchInterval time.Duration
	pollInterval     time.Duration
	log              *logger.Logger
}

func NewPeriodic(client *Client, sweepInterval, dispatchInterval, pollInterval time.Duration, log *logger.Logger) *Periodic {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if dispatchInterval <= 0 {
		dispatchInterval = 30 * time.Second
	}
	return &Periodic{
		client:           client,
		sweepInterval:    sweepInterval,
		dispatchInterval: dispatchInterval,
		pollInterval:     pollInterval,
		log:              log,
	}
}

// Run blocks until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.client == nil {
		return
	}

	sweep := time.NewTicker(p.sweepInterval)
	defer sweep.Stop()
	dispatch := time.NewTicker(p.dispatchInterval)
	defer dispatch.Stop()

	var poll <-chan time.Time
	if p.pollInterval > 0 {
		pollTicker := time.NewTicker(p.pollInterval)
		defer pollTicker.Stop()
		poll = pollTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if err := p.client.EnqueueSweepFollowUps(ctx); err != nil {
				p.log.Warn("enqueue follow-up sweep failed", "error", err)
			}
			if err := p.client.EnqueueSweepOverdue(ctx); err != nil {
				p.log.Warn("enqueue overdue sweep failed", "error", err)
			}
		case <-dispatch.C:
			if err := p.client.EnqueueDispatchNotifications(ctx); err != nil {
				p.log.Warn("enqueue notification dispatch failed", "error", err)
			}
		case <-poll:
			if err := p.client.EnqueuePollEmail(ctx); err != nil {
				p.log.Warn("enqueue mailbox poll failed", "error", err)
			}
		}
	}
}
