// Package transport defines the wire types shared by the query handlers,
// services and channel adapters.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the channel a query entered through.
type Source string

const (
	SourceWebsite     Source = "WEBSITE"
	SourceChatbot     Source = "CHATBOT"
	SourceSocialMedia Source = "SOCIAL_MEDIA"
	SourcePhone       Source = "PHONE"
	SourceIVR         Source = "IVR"
	SourceEmail       Source = "EMAIL"
	SourceWalkIn      Source = "WALK_IN"
	SourceMobileApp   Source = "MOBILE_APP"
	SourceWhatsApp    Source = "WHATSAPP"
	SourceFacebook    Source = "FACEBOOK"
	SourceInstagram   Source = "INSTAGRAM"
)

// Priority is the triage level of a query. A is highest.
type Priority string

const (
	PriorityHigh   Priority = "A"
	PriorityMedium Priority = "B"
	PriorityLow    Priority = "C"
)

// Status is the primary lifecycle state of a query.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusWaiting    Status = "WAITING"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// IsTerminal reports whether the status ends the active lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// QueryType is the coarse category assigned by the classifier.
type QueryType string

const (
	TypeGeneral     QueryType = "GENERAL"
	TypeAppointment QueryType = "APPOINTMENT"
	TypeTreatment   QueryType = "TREATMENT"
	TypeBilling     QueryType = "BILLING"
	TypeComplaint   QueryType = "COMPLAINT"
	TypeFeedback    QueryType = "FEEDBACK"
	TypeOther       QueryType = "OTHER"
)

// ConversionStatus tracks whether an inquiry converted into a patient.
// The zero value means unknown.
type ConversionStatus string

const (
	ConversionUnknown      ConversionStatus = ""
	ConversionConverted    ConversionStatus = "CONVERTED"
	ConversionNotConverted ConversionStatus = "NOT_CONVERTED"
)

// EventKind names a lifecycle event for notification fan-out.
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventAssigned      EventKind = "assigned"
	EventStatusUpdated EventKind = "status_updated"
	EventResolved      EventKind = "resolved"
	EventFollowUpDue   EventKind = "follow_up_due"
	EventOverdue       EventKind = "overdue"
)

// SimpleQueryRequest is the body of POST /api/query/simple/.
type SimpleQueryRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Description string `json:"description" validate:"required"`
}

// SimpleQueryResponse is returned on successful simple intake.
type SimpleQueryResponse struct {
	Status    string `json:"status"`
	QueryID   int64  `json:"query_id"`
	UserEmail string `json:"user_email"`
	IsNewUser bool   `json:"is_new_user"`
}

// CreateQueryRequest is the staff-facing create body.
type CreateQueryRequest struct {
	Subject              string     `json:"subject" validate:"required,max=255"`
	Description          string     `json:"description" validate:"required"`
	Source               Source     `json:"source" validate:"required"`
	ContactEmail         string     `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone         string     `json:"contactPhone"`
	UserID               *uuid.UUID `json:"userId"`
	IsAnonymous          bool       `json:"isAnonymous"`
	ExpectedResponseDate *time.Time `json:"expectedResponseDate"`
	FollowUpDate         *time.Time `json:"followUpDate"`
	Tags                 []string   `json:"tags" validate:"max=20,dive,max=50"`
}

// AddUpdateRequest appends a conversation/audit entry.
type AddUpdateRequest struct {
	Content   string  `json:"content" validate:"required"`
	NewStatus *Status `json:"newStatus"`
}

// SetStatusRequest changes the primary lifecycle state.
type SetStatusRequest struct {
	Status            Status `json:"status" validate:"required"`
	ResolutionSummary string `json:"resolutionSummary"`
}

// AssignRequest assigns or reassigns a query. When StaffID is nil the
// dispatcher picks an assignee.
type AssignRequest struct {
	StaffID *uuid.UUID `json:"staffId"`
}

// SetPriorityRequest changes the triage level.
type SetPriorityRequest struct {
	Priority Priority `json:"priority" validate:"required"`
}

// UpdateDetailsRequest is a partial update of timers and outcome fields.
type UpdateDetailsRequest struct {
	ExpectedResponseDate *time.Time        `json:"expectedResponseDate"`
	FollowUpDate         *time.Time        `json:"followUpDate"`
	SatisfactionRating   *int              `json:"satisfactionRating" validate:"omitempty,min=1,max=5"`
	ConversionStatus     *ConversionStatus `json:"conversionStatus"`
}

// SatisfactionRequest lets the query owner rate the resolution.
type SatisfactionRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// ListQueriesRequest carries the query-string filters of the list endpoint.
type ListQueriesRequest struct {
	Status     string `form:"status"`
	UserID     string `form:"userId"`
	AssignedTo string `form:"assignedTo"`
	Overdue    bool   `form:"overdue"`
	FollowUp   bool   `form:"followUp"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// AttachmentResponse is the API projection of a stored attachment.
type AttachmentResponse struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// QueryResponse is the API projection of a query.
type QueryResponse struct {
	ID                   int64            `json:"id"`
	Subject              string           `json:"subject"`
	Description          string           `json:"description"`
	Source               Source           `json:"source"`
	Priority             Priority         `json:"priority"`
	Status               Status           `json:"status"`
	QueryType            QueryType        `json:"queryType"`
	IsAnonymous          bool             `json:"isAnonymous"`
	IsPatient            bool             `json:"isPatient"`
	ContactEmail         string           `json:"contactEmail,omitempty"`
	ContactPhone         string           `json:"contactPhone,omitempty"`
	UserID               *uuid.UUID       `json:"userId,omitempty"`
	AssignedToID         *uuid.UUID       `json:"assignedToId,omitempty"`
	ExpectedResponseDate *time.Time       `json:"expectedResponseDate,omitempty"`
	FollowUpDate         *time.Time       `json:"followUpDate,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
	ResolvedAt           *time.Time       `json:"resolvedAt,omitempty"`
	ResponseTimeSecs     *int64           `json:"responseTimeSecs,omitempty"`
	SatisfactionRating   *int             `json:"satisfactionRating,omitempty"`
	ConversionStatus     ConversionStatus `json:"conversionStatus,omitempty"`
	ResolutionSummary    string           `json:"resolutionSummary,omitempty"`
	IsOverdue            bool             `json:"isOverdue"`
	Tags                 []string         `json:"tags"`
}

// UpdateResponse is the API projection of a query update entry.
type UpdateResponse struct {
	ID        int64      `json:"id"`
	AuthorID  *uuid.UUID `json:"authorId,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ListQueriesFilter carries the supported list filters.
type ListQueriesFilter struct {
	Status     *Status
	UserID     *uuid.UUID
	AssignedTo *uuid.UUID
	Overdue    bool
	FollowUp   bool
	Limit      int
	Offset     int
}
