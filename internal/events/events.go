// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	platformevents "vitigo_crm_backend/platform/events"
	"vitigo_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = platformevents.Event
	Bus         = platformevents.Bus
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	BaseEvent   = platformevents.BaseEvent
	InMemoryBus = platformevents.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = platformevents.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// =============================================================================
// Query Domain Events
// =============================================================================

// QueryCreated is published after a query is persisted, regardless of channel.
type QueryCreated struct {
	BaseEvent
	QueryID      int64      `json:"queryId"`
	Subject      string     `json:"subject"`
	Source       string     `json:"source"`
	Priority     string     `json:"priority"`
	QueryType    string     `json:"queryType"`
	UserID       *uuid.UUID `json:"userId,omitempty"`
	AssignedToID *uuid.UUID `json:"assignedToId,omitempty"`
	ContactEmail string     `json:"contactEmail,omitempty"`
	ContactPhone string     `json:"contactPhone,omitempty"`
	IsNewUser    bool       `json:"isNewUser"`
}

func (e QueryCreated) EventName() string { return "queries.query.created" }

// QueryAssigned is published when a query is assigned or reassigned to staff.
type QueryAssigned struct {
	BaseEvent
	QueryID          int64      `json:"queryId"`
	Subject          string     `json:"subject"`
	AssignedToID     uuid.UUID  `json:"assignedToId"`
	AssignedToName   string     `json:"assignedToName"`
	PreviousAssignee *uuid.UUID `json:"previousAssignee,omitempty"`
	OwnerID          *uuid.UUID `json:"ownerId,omitempty"`
}

func (e QueryAssigned) EventName() string { return "queries.query.assigned" }

// QueryStatusUpdated is published on every validated status transition that
// does not terminate the query.
type QueryStatusUpdated struct {
	BaseEvent
	QueryID      int64      `json:"queryId"`
	Subject      string     `json:"subject"`
	OldStatus    string     `json:"oldStatus"`
	NewStatus    string     `json:"newStatus"`
	AssignedToID *uuid.UUID `json:"assignedToId,omitempty"`
	OwnerID      *uuid.UUID `json:"ownerId,omitempty"`
}

func (e QueryStatusUpdated) EventName() string { return "queries.query.status_updated" }

// QueryResolved is published when a query reaches RESOLVED or CLOSED.
type QueryResolved struct {
	BaseEvent
	QueryID           int64      `json:"queryId"`
	Subject           string     `json:"subject"`
	Status            string     `json:"status"`
	ResolutionSummary string     `json:"resolutionSummary,omitempty"`
	ResponseTimeSecs  int64      `json:"responseTimeSecs"`
	AssignedToID      *uuid.UUID `json:"assignedToId,omitempty"`
	OwnerID           *uuid.UUID `json:"ownerId,omitempty"`
}

func (e QueryResolved) EventName() string { return "queries.query.resolved" }

// QueryFollowUpDue is published when a scheduled follow-up comes due on a
// non-terminal query.
type QueryFollowUpDue struct {
	BaseEvent
	QueryID      int64      `json:"queryId"`
	Subject      string     `json:"subject"`
	AssignedToID *uuid.UUID `json:"assignedToId,omitempty"`
	OwnerID      *uuid.UUID `json:"ownerId,omitempty"`
}

func (e QueryFollowUpDue) EventName() string { return "queries.query.followup_due" }

// QueryOverdue is published by the SLA sweep for queries past their expected
// response date and still open.
type QueryOverdue struct {
	BaseEvent
	QueryID      int64      `json:"queryId"`
	Subject      string     `json:"subject"`
	AssignedToID *uuid.UUID `json:"assignedToId,omitempty"`
}

func (e QueryOverdue) EventName() string { return "queries.query.overdue" }
