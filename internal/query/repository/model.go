package repository

import (
	"time"

	"github.com/google/uuid"

	"vitigo_crm_backend/internal/query/transport"
)

// Query is the central entity: one inbound request tracked through its
// lifecycle. Derived fields (response time, overdue) are computed from the
// primary columns on read, never stored.
type Query struct {
	ID                   int64
	Subject              string
	Description          string
	Source               transport.Source
	Priority             transport.Priority
	Status               transport.Status
	QueryType            transport.QueryType
	IsAnonymous          bool
	IsPatient            bool
	ContactEmail         string
	ContactPhone         string
	UserID               *uuid.UUID
	AssignedToID         *uuid.UUID
	ExpectedResponseDate *time.Time
	FollowUpDate         *time.Time
	SatisfactionRating   *int
	ConversionStatus     transport.ConversionStatus
	ResolutionSummary    string
	FollowUpNotified     bool
	OverdueNotified      bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ResolvedAt           *time.Time
	Tags                 []string
}

// ResponseTime is resolved_at minus created_at, nil while unresolved.
func (q *Query) ResponseTime() *time.Duration {
	if q.ResolvedAt == nil {
		return nil
	}
	d := q.ResolvedAt.Sub(q.CreatedAt)
	return &d
}

// IsOverdue reports whether the SLA deadline has passed while the query is
// still open.
func (q *Query) IsOverdue(now time.Time) bool {
	return q.ExpectedResponseDate != nil &&
		now.After(*q.ExpectedResponseDate) &&
		!q.Status.IsTerminal()
}

// SLACompliant reports whether the query was resolved before its deadline.
func (q *Query) SLACompliant() bool {
	return q.ResolvedAt != nil &&
		q.ExpectedResponseDate != nil &&
		q.ResolvedAt.Before(*q.ExpectedResponseDate)
}

// Update is an append-only audit/conversation entry on a query.
type Update struct {
	ID        int64
	QueryID   int64
	AuthorID  *uuid.UUID
	Content   string
	CreatedAt time.Time
}

// Attachment is a pointer to a stored file attached to a query.
type Attachment struct {
	ID          int64
	QueryID     int64
	FileName    string
	FileKey     string
	ContentType string
	SizeBytes   int64
	UploadedAt  time.Time
}
