package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"vitigo_crm_backend/internal/events"
	"vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/transport"
)

const sweepBatchSize = 100

// SweepFollowUps surfaces open queries whose follow-up timestamp has passed.
// Each query is handled in its own transaction so one failure does not stall
// the batch. Returns the number of queries notified.
func (s *Service) SweepFollowUps(ctx context.Context) (int, error) {
	due, err := s.repo.DueFollowUps(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range due {
		id := due[i].ID
		var ev *events.QueryFollowUpDue
		err := s.withTx(ctx, func(tx pgx.Tx) error {
			q, err := s.lockQuery(ctx, tx, id)
			if err != nil {
				return err
			}
			// Re-check under lock; the query may have been resolved or its
			// follow-up moved since the sweep query ran.
			if q.FollowUpNotified || q.Status.IsTerminal() ||
				q.FollowUpDate == nil || q.FollowUpDate.After(time.Now()) {
				return nil
			}
			if err := s.notifier.Notify(ctx, tx, transport.EventFollowUpDue, q, nil, nil); err != nil {
				return err
			}
			q.FollowUpNotified = true
			if err := s.repo.WithTx(tx).Save(ctx, q); err != nil {
				return err
			}
			ev = &events.QueryFollowUpDue{
				BaseEvent:    events.NewBaseEvent(),
				QueryID:      q.ID,
				Subject:      q.Subject,
				AssignedToID: q.AssignedToID,
				OwnerID:      q.UserID,
			}
			return nil
		})
		if err != nil {
			s.log.Error("follow-up sweep failed for query", "query_id", id, "error", err)
			continue
		}
		if ev != nil {
			notified++
			s.bus.Publish(ctx, *ev)
		}
	}
	return notified, nil
}

// SweepOverdue notifies assignees of open queries past their SLA deadline.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.OverdueUnnotified(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range overdue {
		id := overdue[i].ID
		var ev *events.QueryOverdue
		err := s.withTx(ctx, func(tx pgx.Tx) error {
			q, err := s.lockQuery(ctx, tx, id)
			if err != nil {
				return err
			}
			if q.OverdueNotified || !q.IsOverdue(time.Now()) {
				return nil
			}
			if err := s.notifier.Notify(ctx, tx, transport.EventOverdue, q, q.AssignedToID, nil); err != nil {
				return err
			}
			q.OverdueNotified = true
			if err := s.repo.WithTx(tx).Save(ctx, q); err != nil {
				return err
			}
			ev = &events.QueryOverdue{
				BaseEvent:    events.NewBaseEvent(),
				QueryID:      q.ID,
				Subject:      q.Subject,
				AssignedToID: q.AssignedToID,
			}
			return nil
		})
		if err != nil {
			s.log.Error("overdue sweep failed for query", "query_id", id, "error", err)
			continue
		}
		if ev != nil {
			notified++
			s.bus.Publish(ctx, *ev)
		}
	}
	return notified, nil
}

// PendingFollowUps lists open queries whose follow-up is due, for the staff
// worklist view.
func (s *Service) PendingFollowUps(ctx context.Context, limit int) ([]repository.Query, error) {
	return s.repo.List(ctx, transport.ListQueriesFilter{FollowUp: true, Limit: limit})
}
