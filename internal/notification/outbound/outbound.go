// Package outbound drains the pending email and SMS outbox rows and records
// per-row delivery results.
package outbound

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"vitigo_crm_backend/internal/email"
	"vitigo_crm_backend/internal/notification/repository"
	"vitigo_crm_backend/internal/sms"
	"vitigo_crm_backend/platform/logger"
)

const claimBatchSize = 50

// AttachmentFetcher loads a query's stored attachments for inclusion in
// outbound email. May be nil when no object storage is configured.
type AttachmentFetcher interface {
	FetchForQuery(ctx context.Context, queryID int64) ([]email.Attachment, error)
}

// Dispatcher sends claimed outbox rows. Delivery is best-effort: a failed
// send marks the row FAILED and never touches query state.
type Dispatcher struct {
	pool        *pgxpool.Pool
	repo        *repository.Repository
	mailer      email.Sender
	sms         sms.Sender
	attachments AttachmentFetcher
	log         *logger.Logger
}

func NewDispatcher(pool *pgxpool.Pool, repo *repository.Repository, mailer email.Sender, smsSender sms.Sender, attachments AttachmentFetcher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		pool:        pool,
		repo:        repo,
		mailer:      mailer,
		sms:         smsSender,
		attachments: attachments,
		log:         log,
	}
}

// DispatchPending claims and sends one batch of each channel. Returns the
// number of rows sent and failed.
func (d *Dispatcher) DispatchPending(ctx context.Context) (sent, failed int, err error) {
	eSent, eFailed, err := d.dispatchEmails(ctx)
	if err != nil {
		return sent, failed, err
	}
	sent += eSent
	failed += eFailed

	sSent, sFailed, err := d.dispatchSMS(ctx)
	if err != nil {
		return sent, failed, err
	}
	sent += sSent
	failed += sFailed
	return sent, failed, nil
}

func (d *Dispatcher) dispatchEmails(ctx context.Context) (sent, failed int, err error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin email dispatch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := d.repo.ClaimPendingEmails(ctx, tx, claimBatchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, row := range rows {
		var attachments []email.Attachment
		if d.attachments != nil && row.QueryID != nil {
			attachments, err = d.attachments.FetchForQuery(ctx, *row.QueryID)
			if err != nil {
				d.log.Error("fetch attachments for email", "notification_id", row.ID, "error", err)
				attachments = nil
			}
		}

		sendErr := d.mailer.Send(ctx, row.Recipient, row.Subject, row.Body, attachments...)
		status := repository.StatusSent
		errText := ""
		if sendErr != nil {
			status = repository.StatusFailed
			errText = sendErr.Error()
			failed++
			d.log.Error("email delivery failed", "notification_id", row.ID, "recipient", row.Recipient, "error", sendErr)
		} else {
			sent++
		}
		if err := d.repo.MarkEmailResult(ctx, tx, row.ID, status, errText); err != nil {
			return sent, failed, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return sent, failed, fmt.Errorf("commit email dispatch tx: %w", err)
	}
	return sent, failed, nil
}

func (d *Dispatcher) dispatchSMS(ctx context.Context) (sent, failed int, err error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin sms dispatch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := d.repo.ClaimPendingSMS(ctx, tx, claimBatchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, row := range rows {
		sendErr := d.sms.SendMessage(ctx, row.Phone, row.Message)
		status := repository.StatusSent
		errText := ""
		if sendErr != nil {
			status = repository.StatusFailed
			errText = sendErr.Error()
			failed++
			d.log.Error("sms delivery failed", "notification_id", row.ID, "phone", row.Phone, "error", sendErr)
		} else {
			sent++
		}
		if err := d.repo.MarkSMSResult(ctx, tx, row.ID, status, errText); err != nil {
			return sent, failed, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return sent, failed, fmt.Errorf("commit sms dispatch tx: %w", err)
	}
	return sent, failed, nil
}
