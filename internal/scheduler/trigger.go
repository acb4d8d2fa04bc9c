package scheduler

import (
	"context"

	"vitigo_crm_backend/internal/events"
	"vitigo_crm_backend/platform/logger"
)

// EventTrigger subscribes to query lifecycle events and nudges the worker
// so pending outbox rows are delivered promptly instead of waiting for the
// next periodic pass.
type EventTrigger struct {
	trigger DispatchTrigger
	log     *logger.Logger
}

func NewEventTrigger(trigger DispatchTrigger, log *logger.Logger) *EventTrigger {
	return &EventTrigger{trigger: trigger, log: log}
}

// RegisterHandlers subscribes to every event kind that can produce
// notification rows.
func (t *EventTrigger) RegisterHandlers(bus events.Bus) {
	names := []string{
		events.QueryCreated{}.EventName(),
		events.QueryAssigned{}.EventName(),
		events.QueryStatusUpdated{}.EventName(),
		events.QueryResolved{}.EventName(),
		events.QueryFollowUpDue{}.EventName(),
		events.QueryOverdue{}.EventName(),
	}
	for _, name := range names {
		bus.Subscribe(name, t)
	}
}

// Handle implements events.Handler.
func (t *EventTrigger) Handle(ctx context.Context, _ events.Event) error {
	if err := t.trigger.EnqueueDispatchNotifications(ctx); err != nil {
		t.log.Warn("dispatch trigger failed", "error", err)
	}
	return nil
}
