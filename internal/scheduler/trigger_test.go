package scheduler

import (
	"context"
	"errors"
	"testing"

	"vitigo_crm_backend/internal/events"
	"vitigo_crm_backend/platform/logger"
)

type fakeDispatchTrigger struct {
	calls int
	err   error
}

func (f *fakeDispatchTrigger) EnqueueDispatchNotifications(context.Context) error {
	f.calls++
	return f.err
}

func TestEventTriggerEnqueuesOnLifecycleEvents(t *testing.T) {
	fake := &fakeDispatchTrigger{}
	trigger := NewEventTrigger(fake, logger.New("development"))
	bus := events.NewInMemoryBus(logger.New("development"))
	trigger.RegisterHandlers(bus)

	published := []events.Event{
		events.QueryCreated{BaseEvent: events.NewBaseEvent(), QueryID: 1},
		events.QueryAssigned{BaseEvent: events.NewBaseEvent(), QueryID: 1},
		events.QueryResolved{BaseEvent: events.NewBaseEvent(), QueryID: 1},
	}
	for _, e := range published {
		if err := bus.PublishSync(context.Background(), e); err != nil {
			t.Fatalf("PublishSync: %v", err)
		}
	}

	if fake.calls != len(published) {
		t.Errorf("enqueue calls = %d, want %d", fake.calls, len(published))
	}
}

func TestEventTriggerSwallowsEnqueueError(t *testing.T) {
	fake := &fakeDispatchTrigger{err: errors.New("redis down")}
	trigger := NewEventTrigger(fake, logger.New("development"))

	// The event fires inside the lifecycle path; a broken queue must not
	// surface as a handler error.
	if err := trigger.Handle(context.Background(), events.QueryCreated{BaseEvent: events.NewBaseEvent()}); err != nil {
		t.Errorf("Handle returned %v, want nil", err)
	}
	if fake.calls != 1 {
		t.Errorf("enqueue calls = %d", fake.calls)
	}
}
