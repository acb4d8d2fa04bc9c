package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"vitigo_crm_backend/internal/events"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	"vitigo_crm_backend/internal/query/dispatch"
	"vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/apperr"
)

// ErrNoStaffAvailable is returned when the dispatch pool is empty; the query
// stays unassigned.
var ErrNoStaffAvailable = errors.New("no staff available for assignment")

// Assign assigns or reassigns a query. When staffID is nil the dispatcher
// picks from the staff pool; first assignment moves NEW to IN_PROGRESS.
func (s *Service) Assign(ctx context.Context, id int64, staffID, actor *uuid.UUID) (*repository.Query, error) {
	var (
		q        *repository.Query
		assignEv *events.QueryAssigned
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		q, err = s.lockQuery(ctx, tx, id)
		if err != nil {
			return err
		}
		if q.Status.IsTerminal() {
			return apperr.Conflict(fmt.Sprintf("cannot assign query in %s state", q.Status))
		}
		assignEv, err = s.assignInTx(ctx, tx, q, staffID)
		if err != nil {
			return err
		}
		return s.repo.WithTx(tx).Save(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	if assignEv != nil {
		s.bus.Publish(ctx, *assignEv)
	}
	return q, nil
}

// assignInTx mutates q in memory, records the audit entry and the inbox
// notifications. The caller persists q and publishes the returned event
// after commit.
func (s *Service) assignInTx(ctx context.Context, tx pgx.Tx, q *repository.Query, staffID *uuid.UUID) (*events.QueryAssigned, error) {
	pool, err := s.users.WithTx(tx).ListActiveStaff(ctx, dispatch.StaffRoles)
	if err != nil {
		return nil, err
	}

	var staff *identityrepo.User
	if staffID != nil {
		i := slices.IndexFunc(pool, func(u identityrepo.User) bool { return u.ID == *staffID })
		if i < 0 {
			return nil, apperr.Validation("user is not an active staff member")
		}
		staff = &pool[i]
	} else {
		staff = s.strategy.Pick(pool)
	}
	if staff == nil {
		s.log.Warn("dispatch pool empty, query left unassigned", "query_id", q.ID)
		return nil, ErrNoStaffAvailable
	}

	prev := q.AssignedToID
	q.AssignedToID = &staff.ID
	if q.Status == transport.StatusNew {
		q.Status = transport.StatusInProgress
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.AddUpdate(ctx, q.ID, nil, "Query assigned to "+staff.FullName()); err != nil {
		return nil, err
	}
	if err := s.notifier.Notify(ctx, tx, transport.EventAssigned, q, &staff.ID, map[string]string{
		"assignee_name": staff.FullName(),
	}); err != nil {
		return nil, err
	}
	// A reassignment also tells the previous assignee and the owner.
	if prev != nil && *prev != staff.ID {
		if err := s.notifier.Notify(ctx, tx, transport.EventStatusUpdated, q, prev, map[string]string{
			"change": "reassigned to " + staff.FullName(),
		}); err != nil {
			return nil, err
		}
		if q.UserID != nil && *q.UserID != *prev && *q.UserID != staff.ID {
			if err := s.notifier.Notify(ctx, tx, transport.EventStatusUpdated, q, q.UserID, map[string]string{
				"change": "reassigned to " + staff.FullName(),
			}); err != nil {
				return nil, err
			}
		}
	}

	return &events.QueryAssigned{
		BaseEvent:        events.NewBaseEvent(),
		QueryID:          q.ID,
		Subject:          q.Subject,
		AssignedToID:     staff.ID,
		AssignedToName:   staff.FullName(),
		PreviousAssignee: prev,
		OwnerID:          q.UserID,
	}, nil
}

// SetStatus moves the query along a validated lifecycle edge. Terminal
// states set resolved_at; the response time is derived from it.
func (s *Service) SetStatus(ctx context.Context, id int64, newStatus transport.Status, resolutionSummary string, actor *uuid.UUID) (*repository.Query, error) {
	var (
		q  *repository.Query
		ev events.Event
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		q, err = s.lockQuery(ctx, tx, id)
		if err != nil {
			return err
		}
		ev, err = s.applyStatus(ctx, tx, q, newStatus, resolutionSummary, actor, true)
		if err != nil {
			return err
		}
		return s.repo.WithTx(tx).Save(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, ev)
	return q, nil
}

func (s *Service) applyStatus(ctx context.Context, tx pgx.Tx, q *repository.Query, newStatus transport.Status, resolutionSummary string, actor *uuid.UUID, recordEntry bool) (events.Event, error) {
	if err := ValidateTransition(q.Status, newStatus); err != nil {
		return nil, err
	}

	oldStatus := q.Status
	q.Status = newStatus
	if newStatus.IsTerminal() {
		now := time.Now()
		q.ResolvedAt = &now
		if resolutionSummary != "" {
			q.ResolutionSummary = resolutionSummary
		}
	}

	if recordEntry {
		content := fmt.Sprintf("Status changed from %s to %s", oldStatus, newStatus)
		if _, err := s.repo.WithTx(tx).AddUpdate(ctx, q.ID, actor, content); err != nil {
			return nil, err
		}
	}

	if newStatus.IsTerminal() {
		// The resolved notice goes to the query owner; staff already acted.
		if err := s.notifier.Notify(ctx, tx, transport.EventResolved, q, q.UserID, map[string]string{
			"resolution_summary": q.ResolutionSummary,
		}); err != nil {
			return nil, err
		}
		var secs int64
		if rt := q.ResponseTime(); rt != nil {
			secs = int64(rt.Seconds())
		}
		return events.QueryResolved{
			BaseEvent:         events.NewBaseEvent(),
			QueryID:           q.ID,
			Subject:           q.Subject,
			Status:            string(q.Status),
			ResolutionSummary: q.ResolutionSummary,
			ResponseTimeSecs:  secs,
			AssignedToID:      q.AssignedToID,
			OwnerID:           q.UserID,
		}, nil
	}

	if err := s.notifier.Notify(ctx, tx, transport.EventStatusUpdated, q, nil, map[string]string{
		"old_status": string(oldStatus),
		"new_status": string(newStatus),
	}); err != nil {
		return nil, err
	}
	return events.QueryStatusUpdated{
		BaseEvent:    events.NewBaseEvent(),
		QueryID:      q.ID,
		Subject:      q.Subject,
		OldStatus:    string(oldStatus),
		NewStatus:    string(newStatus),
		AssignedToID: q.AssignedToID,
		OwnerID:      q.UserID,
	}, nil
}

// AddUpdate appends an audit/conversation entry and optionally moves the
// status in the same transaction.
func (s *Service) AddUpdate(ctx context.Context, id int64, author *uuid.UUID, content string, newStatus *transport.Status) (*repository.Update, error) {
	var (
		update *repository.Update
		ev     events.Event
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		q, err := s.lockQuery(ctx, tx, id)
		if err != nil {
			return err
		}
		update, err = s.repo.WithTx(tx).AddUpdate(ctx, q.ID, author, content)
		if err != nil {
			return err
		}
		if newStatus == nil {
			return nil
		}
		// The caller's entry is the audit record for this transition.
		ev, err = s.applyStatus(ctx, tx, q, *newStatus, "", author, false)
		if err != nil {
			return err
		}
		return s.repo.WithTx(tx).Save(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	if ev != nil {
		s.bus.Publish(ctx, ev)
	}
	return update, nil
}

// Reopen moves a RESOLVED or CLOSED query back to IN_PROGRESS and clears the
// resolution fields, including the derived response time.
func (s *Service) Reopen(ctx context.Context, id int64, actor *uuid.UUID) (*repository.Query, error) {
	var (
		q  *repository.Query
		ev events.QueryStatusUpdated
	)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		q, err = s.lockQuery(ctx, tx, id)
		if err != nil {
			return err
		}
		if !q.Status.IsTerminal() {
			return apperr.Conflict(fmt.Sprintf("cannot reopen query in %s state", q.Status))
		}
		oldStatus := q.Status
		q.Status = transport.StatusInProgress
		q.ResolvedAt = nil
		q.ResolutionSummary = ""

		repo := s.repo.WithTx(tx)
		if _, err := repo.AddUpdate(ctx, q.ID, actor, "Query reopened"); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, transport.EventStatusUpdated, q, nil, map[string]string{
			"old_status": string(oldStatus),
			"new_status": string(q.Status),
		}); err != nil {
			return err
		}
		ev = events.QueryStatusUpdated{
			BaseEvent:    events.NewBaseEvent(),
			QueryID:      q.ID,
			Subject:      q.Subject,
			OldStatus:    string(oldStatus),
			NewStatus:    string(q.Status),
			AssignedToID: q.AssignedToID,
			OwnerID:      q.UserID,
		}
		return repo.Save(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, ev)
	return q, nil
}

var priorityRank = map[transport.Priority]int{
	transport.PriorityLow:    1,
	transport.PriorityMedium: 2,
	transport.PriorityHigh:   3,
}

// SetPriority changes the triage level and records the escalation marker
// entry that the reporting side keys on.
func (s *Service) SetPriority(ctx context.Context, id int64, priority transport.Priority, actor *uuid.UUID) (*repository.Query, error) {
	if _, ok := priorityRank[priority]; !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown priority %q", priority))
	}
	var q *repository.Query
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		q, err = s.lockQuery(ctx, tx, id)
		if err != nil {
			return err
		}
		if q.Priority == priority {
			return nil
		}
		direction := "decreased"
		if priorityRank[priority] > priorityRank[q.Priority] {
			direction = "increased"
		}
		content := fmt.Sprintf("priority changed from %s to %s: %s", q.Priority, priority, direction)
		q.Priority = priority

		repo := s.repo.WithTx(tx)
		if _, err := repo.AddUpdate(ctx, q.ID, actor, content); err != nil {
			return err
		}
		return repo.Save(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// DetailsPatch updates scheduling and outcome fields outside the state
// machine.
type DetailsPatch struct {
	ExpectedResponseDate *time.Time
	FollowUpDate         *time.Time
	SatisfactionRating   *int
	ConversionStatus     *transport.ConversionStatus
}

// UpdateDetails applies a partial update of timers, satisfaction and
// conversion tracking.
func (s *Service) UpdateDetails(ctx context.Context, id int64, patch DetailsPatch) (*repository.Query, error) {
	if patch.SatisfactionRating != nil {
		if r := *patch.SatisfactionRating; r < 1 || r > 5 {
			return nil, apperr.Validation("satisfaction rating must be between 1 and 5")
		}
	}
	var q *repository.Query
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		q, err = s.lockQuery(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.ExpectedResponseDate != nil {
			q.ExpectedResponseDate = patch.ExpectedResponseDate
			q.OverdueNotified = false
		}
		if patch.FollowUpDate != nil {
			q.FollowUpDate = patch.FollowUpDate
			q.FollowUpNotified = false
		}
		if patch.SatisfactionRating != nil {
			q.SatisfactionRating = patch.SatisfactionRating
		}
		if patch.ConversionStatus != nil {
			q.ConversionStatus = *patch.ConversionStatus
		}
		return s.repo.WithTx(tx).Save(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}
