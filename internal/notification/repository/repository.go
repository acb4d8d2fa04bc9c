// Package repository persists the three notification record kinds: user
// inbox rows and the email/SMS outbox rows with delivery status.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationType categorizes user inbox notifications.
type NotificationType string

const (
	TypeQueryCreated       NotificationType = "QUERY_CREATED"
	TypeQueryAssigned      NotificationType = "QUERY_ASSIGNED"
	TypeQueryStatusUpdated NotificationType = "QUERY_STATUS_UPDATED"
	TypeQueryResolved      NotificationType = "QUERY_RESOLVED"
)

// SendStatus tracks outbound delivery of email and SMS rows.
type SendStatus string

const (
	StatusPending SendStatus = "PENDING"
	StatusSent    SendStatus = "SENT"
	StatusFailed  SendStatus = "FAILED"
)

// UserNotification is an inbox entry, written in the same transaction as
// the lifecycle change it describes.
type UserNotification struct {
	ID        int64
	UserID    uuid.UUID
	Type      NotificationType
	Message   string
	QueryID   *int64
	IsRead    bool
	CreatedAt time.Time
}

// EmailNotification is a pending outbound email with rendered content.
type EmailNotification struct {
	ID        int64
	UserID    uuid.UUID
	QueryID   *int64
	Recipient string
	Subject   string
	Body      string
	Status    SendStatus
	Error     string
	SentAt    *time.Time
	CreatedAt time.Time
}

// SMSNotification is a pending outbound text message.
type SMSNotification struct {
	ID        int64
	UserID    uuid.UUID
	QueryID   *int64
	Phone     string
	Message   string
	Status    SendStatus
	Error     string
	SentAt    *time.Time
	CreatedAt time.Time
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DBTX
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// CreateUserNotification inserts an inbox row using the given executor so
// it can share the lifecycle transaction.
func (r *Repository) CreateUserNotification(ctx context.Context, db DBTX, n *UserNotification) error {
	row := db.QueryRow(ctx, `
		INSERT INTO user_notifications (user_id, notification_type, message, query_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		n.UserID, n.Type, n.Message, n.QueryID)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert user notification: %w", err)
	}
	return nil
}

// CreateEmailNotification inserts a PENDING outbound email row.
func (r *Repository) CreateEmailNotification(ctx context.Context, db DBTX, n *EmailNotification) error {
	n.Status = StatusPending
	row := db.QueryRow(ctx, `
		INSERT INTO email_notifications (user_id, query_id, recipient, subject, body, status)
		VALUES ($1, $2, $3, $4, $5, 'PENDING')
		RETURNING id, created_at`,
		n.UserID, n.QueryID, n.Recipient, n.Subject, n.Body)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert email notification: %w", err)
	}
	return nil
}

// CreateSMSNotification inserts a PENDING outbound SMS row.
func (r *Repository) CreateSMSNotification(ctx context.Context, db DBTX, n *SMSNotification) error {
	n.Status = StatusPending
	row := db.QueryRow(ctx, `
		INSERT INTO sms_notifications (user_id, query_id, phone, message, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		RETURNING id, created_at`,
		n.UserID, n.QueryID, n.Phone, n.Message)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert sms notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's inbox, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]UserNotification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, notification_type, message, query_id, is_read, created_at
		FROM user_notifications
		WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []UserNotification
	for rows.Next() {
		var n UserNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.QueryID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns the number of unread inbox rows for a user.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM user_notifications
		WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one inbox row as read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, userID uuid.UUID, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllRead flags a user's whole inbox as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimPendingEmails locks up to limit PENDING email rows for delivery.
// SKIP LOCKED lets concurrent workers drain the outbox without contention.
func (r *Repository) ClaimPendingEmails(ctx context.Context, tx pgx.Tx, limit int) ([]EmailNotification, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, query_id, recipient, subject, body, status, COALESCE(error, ''), sent_at, created_at
		FROM email_notifications
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending emails: %w", err)
	}
	defer rows.Close()

	var out []EmailNotification
	for rows.Next() {
		var n EmailNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.QueryID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Error, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ClaimPendingSMS locks up to limit PENDING SMS rows for delivery.
func (r *Repository) ClaimPendingSMS(ctx context.Context, tx pgx.Tx, limit int) ([]SMSNotification, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, query_id, phone, message, status, COALESCE(error, ''), sent_at, created_at
		FROM sms_notifications
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending sms: %w", err)
	}
	defer rows.Close()

	var out []SMSNotification
	for rows.Next() {
		var n SMSNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.QueryID, &n.Phone, &n.Message, &n.Status, &n.Error, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sms notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkEmailResult records the delivery outcome of one email row.
func (r *Repository) MarkEmailResult(ctx context.Context, db DBTX, id int64, status SendStatus, sendErr string) error {
	_, err := db.Exec(ctx, `
		UPDATE email_notifications
		SET status = $2, error = NULLIF($3, ''), sent_at = CASE WHEN $2 = 'SENT' THEN now() ELSE sent_at END
		WHERE id = $1`, id, status, sendErr)
	if err != nil {
		return fmt.Errorf("mark email result: %w", err)
	}
	return nil
}

// MarkSMSResult records the delivery outcome of one SMS row.
func (r *Repository) MarkSMSResult(ctx context.Context, db DBTX, id int64, status SendStatus, sendErr string) error {
	_, err := db.Exec(ctx, `
		UPDATE sms_notifications
		SET status = $2, error = NULLIF($3, ''), sent_at = CASE WHEN $2 = 'SENT' THEN now() ELSE sent_at END
		WHERE id = $1`, id, status, sendErr)
	if err != nil {
		return fmt.Errorf("mark sms result: %w", err)
	}
	return nil
}
