// Package service implements notification fan-out: lifecycle events become
// per-recipient inbox, email and SMS records.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vitigo_crm_backend/internal/email"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	"vitigo_crm_backend/internal/notification/repository"
	queryrepo "vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/logger"
)

// smsEnabledKinds is the set of event kinds that also produce an SMS row
// when the recipient has a phone number.
var smsEnabledKinds = map[transport.EventKind]bool{
	transport.EventAssigned:    true,
	transport.EventResolved:    true,
	transport.EventFollowUpDue: true,
	transport.EventOverdue:     true,
}

var notificationTypes = map[transport.EventKind]repository.NotificationType{
	transport.EventCreated:       repository.TypeQueryCreated,
	transport.EventAssigned:      repository.TypeQueryAssigned,
	transport.EventStatusUpdated: repository.TypeQueryStatusUpdated,
	transport.EventResolved:      repository.TypeQueryResolved,
	transport.EventFollowUpDue:   repository.TypeQueryStatusUpdated,
	transport.EventOverdue:       repository.TypeQueryStatusUpdated,
}

// Fanout converts one lifecycle event into notification rows. Inbox rows
// share the lifecycle transaction; email and SMS rows are PENDING outbox
// entries delivered out-of-band.
type Fanout struct {
	repo  *repository.Repository
	users *identityrepo.Repository
	log   *logger.Logger
}

func NewFanout(repo *repository.Repository, users *identityrepo.Repository, log *logger.Logger) *Fanout {
	return &Fanout{repo: repo, users: users, log: log}
}

// Notify resolves the recipient (explicit, else assignee, else owner) and
// writes the per-channel rows on the caller's executor. An event with no
// resolvable recipient is logged and dropped.
func (f *Fanout) Notify(ctx context.Context, db queryrepo.DBTX, kind transport.EventKind, q *queryrepo.Query, recipientID *uuid.UUID, data map[string]string) error {
	id := recipientID
	if id == nil {
		id = q.AssignedToID
	}
	if id == nil {
		id = q.UserID
	}
	if id == nil {
		f.log.Info("notification dropped, no recipient", "query_id", q.ID, "event", string(kind))
		return nil
	}

	recipient, err := f.users.WithExecutor(db).GetByID(ctx, *id)
	if err != nil {
		return fmt.Errorf("resolve notification recipient: %w", err)
	}

	queryID := q.ID
	inbox := &repository.UserNotification{
		UserID:  recipient.ID,
		Type:    notificationTypes[kind],
		Message: inboxMessage(kind, q, data),
		QueryID: &queryID,
	}
	if err := f.repo.CreateUserNotification(ctx, db, inbox); err != nil {
		return err
	}

	if recipient.Email != "" {
		subject := email.SubjectFor(kind, q.ID)
		body, err := email.RenderQueryEmail(kind, emailData(kind, q, recipient, data))
		if err != nil {
			return err
		}
		err = f.repo.CreateEmailNotification(ctx, db, &repository.EmailNotification{
			UserID:    recipient.ID,
			QueryID:   &queryID,
			Recipient: recipient.Email,
			Subject:   subject,
			Body:      body,
		})
		if err != nil {
			return err
		}
	}

	if smsEnabledKinds[kind] && recipient.PhoneNumber != "" {
		err := f.repo.CreateSMSNotification(ctx, db, &repository.SMSNotification{
			UserID:  recipient.ID,
			QueryID: &queryID,
			Phone:   recipient.CountryCode + recipient.PhoneNumber,
			Message: inbox.Message,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func inboxMessage(kind transport.EventKind, q *queryrepo.Query, data map[string]string) string {
	switch kind {
	case transport.EventCreated:
		return fmt.Sprintf("Your query #%d has been received: %s", q.ID, q.Subject)
	case transport.EventAssigned:
		return fmt.Sprintf("Query #%d has been assigned to you: %s", q.ID, q.Subject)
	case transport.EventStatusUpdated:
		if change := data["change"]; change != "" {
			return fmt.Sprintf("Query #%d updated: %s", q.ID, change)
		}
		if newStatus := data["new_status"]; newStatus != "" {
			return fmt.Sprintf("Query #%d status changed to %s", q.ID, newStatus)
		}
		return fmt.Sprintf("Query #%d has been updated", q.ID)
	case transport.EventResolved:
		return fmt.Sprintf("Your query #%d has been resolved", q.ID)
	case transport.EventFollowUpDue:
		return fmt.Sprintf("Follow-up due on query #%d: %s", q.ID, q.Subject)
	case transport.EventOverdue:
		return fmt.Sprintf("Query #%d has passed its expected response date", q.ID)
	default:
		return fmt.Sprintf("Update on query #%d", q.ID)
	}
}

func emailData(kind transport.EventKind, q *queryrepo.Query, recipient *identityrepo.User, data map[string]string) email.QueryEmailData {
	d := email.QueryEmailData{
		Title:         email.SubjectFor(kind, q.ID),
		Heading:       email.SubjectFor(kind, q.ID),
		RecipientName: recipient.FullName(),
		QueryID:       q.ID,
		QuerySubject:  q.Subject,
		Priority:      string(q.Priority),
	}
	if q.ExpectedResponseDate != nil {
		d.ExpectedResponse = q.ExpectedResponseDate.Format(time.RFC1123)
	}
	if data != nil {
		if change := data["change"]; change != "" {
			d.Change = change
		} else if data["new_status"] != "" {
			d.Change = fmt.Sprintf("Status changed from %s to %s", data["old_status"], data["new_status"])
		}
		d.ResolutionSummary = data["resolution_summary"]
	}
	return d
}
