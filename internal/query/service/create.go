package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vitigo_crm_backend/internal/events"
	"vitigo_crm_backend/internal/query/classify"
	"vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/apperr"
)

// NewPatientTag is attached to queries whose identity resolution created a
// new user in the same unit of work.
const NewPatientTag = "New Patient"

// ErrDuplicate is returned when the channel dedup key was already ingested.
var ErrDuplicate = repository.ErrDuplicateIngest

// IngestKey is the channel-scoped idempotency key persisted alongside the
// query. Replays of the same key create no second query.
type IngestKey struct {
	Channel    transport.Source
	ExternalID string
	RawPayload []byte
}

// CreateParams drives query creation from every channel: adapters resolve
// contact details, the UI passes an explicit owner, the simple API both.
type CreateParams struct {
	Subject     string
	Description string
	Source      transport.Source

	// Priority and QueryType are classified from subject/body when empty.
	Priority  transport.Priority
	QueryType transport.QueryType

	ContactEmail string
	ContactPhone string
	CountryCode  string
	FirstName    string
	LastName     string

	// ResolveIdentity maps the contact to a user, creating one when needed.
	// When false and UserID is nil the query is anonymous.
	ResolveIdentity bool
	UserID          *uuid.UUID

	ExpectedResponseDate *time.Time
	FollowUpDate         *time.Time
	Tags                 []string

	// AutoAssign runs the dispatcher after insert.
	AutoAssign bool

	Ingest *IngestKey
}

// CreateResult reports what creation did beyond the query itself.
type CreateResult struct {
	Query     *repository.Query
	UserEmail string
	IsNewUser bool
}

// Create runs the full intake path in one transaction: identity resolution,
// classification, insert, tags, idempotency record, dispatch and the
// in-transaction inbox notifications. Returns ErrDuplicate when the ingest
// key was already seen.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if p.Subject == "" && p.Description == "" {
		return nil, apperr.Validation("query needs a subject or a description")
	}

	if p.Priority == "" || p.QueryType == "" {
		priority, qtype := classify.Classify(p.Subject, p.Description)
		if p.Priority == "" {
			p.Priority = priority
		}
		if p.QueryType == "" {
			p.QueryType = qtype
		}
	}

	// Fast-path dedup before opening the transaction; the unique constraint
	// inside the transaction remains the authority.
	if p.Ingest != nil {
		if _, seen, err := s.repo.FindIngest(ctx, p.Ingest.Channel, p.Ingest.ExternalID); err != nil {
			return nil, err
		} else if seen {
			return nil, ErrDuplicate
		}
	}

	var (
		res       CreateResult
		createdEv events.QueryCreated
		assignEv  *events.QueryAssigned
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)

		ownerID := p.UserID
		isPatient := false
		if p.ResolveIdentity && ownerID == nil {
			user, created, err := s.resolver.ResolveInTx(ctx, tx, ResolveInput{
				Email:       p.ContactEmail,
				Phone:       p.ContactPhone,
				CountryCode: p.CountryCode,
				FirstName:   p.FirstName,
				LastName:    p.LastName,
			})
			if err != nil {
				return err
			}
			ownerID = &user.ID
			isPatient = !user.IsStaff
			res.UserEmail = user.Email
			res.IsNewUser = created
			if created {
				p.Tags = append(p.Tags, NewPatientTag)
			}
		} else if ownerID != nil {
			user, err := s.users.WithTx(tx).GetByID(ctx, *ownerID)
			if err != nil {
				return apperr.NotFound("query owner not found")
			}
			isPatient = !user.IsStaff
			res.UserEmail = user.Email
		}

		isAnonymous := ownerID == nil
		if isAnonymous && p.ContactEmail == "" && p.ContactPhone == "" {
			return apperr.Validation("anonymous query needs a contact email or phone")
		}

		expected := p.ExpectedResponseDate
		if expected == nil && s.defaultSLA > 0 {
			t := time.Now().Add(s.defaultSLA)
			expected = &t
		}

		q := &repository.Query{
			Subject:              p.Subject,
			Description:          p.Description,
			Source:               p.Source,
			Priority:             p.Priority,
			Status:               transport.StatusNew,
			QueryType:            p.QueryType,
			IsAnonymous:          isAnonymous,
			IsPatient:            isPatient,
			ContactEmail:         p.ContactEmail,
			ContactPhone:         p.ContactPhone,
			UserID:               ownerID,
			ExpectedResponseDate: expected,
			FollowUpDate:         p.FollowUpDate,
		}
		if err := repo.Create(ctx, q); err != nil {
			return err
		}
		if err := repo.AttachTags(ctx, q.ID, p.Tags); err != nil {
			return err
		}
		if p.Ingest != nil {
			err := repo.RecordIngest(ctx, p.Ingest.Channel, p.Ingest.ExternalID, q.ID, p.Ingest.RawPayload)
			if err != nil {
				return err
			}
		}

		if p.AutoAssign {
			ev, err := s.assignInTx(ctx, tx, q, nil)
			if err != nil && !errors.Is(err, ErrNoStaffAvailable) {
				return err
			}
			assignEv = ev
		}

		if err := repo.Save(ctx, q); err != nil {
			return err
		}
		q.Tags = p.Tags

		if ownerID != nil {
			if err := s.notifier.Notify(ctx, tx, transport.EventCreated, q, ownerID, nil); err != nil {
				return err
			}
		}

		res.Query = q
		createdEv = events.QueryCreated{
			BaseEvent:    events.NewBaseEvent(),
			QueryID:      q.ID,
			Subject:      q.Subject,
			Source:       string(q.Source),
			Priority:     string(q.Priority),
			QueryType:    string(q.QueryType),
			UserID:       q.UserID,
			AssignedToID: q.AssignedToID,
			ContactEmail: q.ContactEmail,
			ContactPhone: q.ContactPhone,
			IsNewUser:    res.IsNewUser,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("query created",
		"query_id", res.Query.ID, "source", res.Query.Source,
		"priority", res.Query.Priority, "query_type", res.Query.QueryType,
		"assigned", res.Query.AssignedToID != nil)

	s.bus.Publish(ctx, createdEv)
	if assignEv != nil {
		s.bus.Publish(ctx, *assignEv)
	}
	return &res, nil
}

// CreateSimple implements the public intake endpoint: a minimal form that
// resolves the sender and builds the subject from their name.
func (s *Service) CreateSimple(ctx context.Context, req transport.SimpleQueryRequest) (*CreateResult, error) {
	return s.Create(ctx, CreateParams{
		Subject:         fmt.Sprintf("Query from %s %s", req.FirstName, req.LastName),
		Description:     req.Description,
		Source:          transport.SourceWebsite,
		ContactEmail:    req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ResolveIdentity: true,
		AutoAssign:      true,
	})
}
