// Package repository persists queries, their updates, tags and attachments.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitigo_crm_backend/internal/query/transport"
)

// ErrNotFound is returned when the requested query does not exist.
var ErrNotFound = errors.New("query not found")

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

const queryColumns = `
	q.id, q.subject, q.description, q.source, q.priority, q.status, q.query_type,
	q.is_anonymous, q.is_patient, q.contact_email, q.contact_phone,
	q.user_id, q.assigned_to, q.expected_response_date, q.follow_up_date,
	q.satisfaction_rating, COALESCE(q.conversion_status, ''), q.resolution_summary,
	q.follow_up_notified, q.overdue_notified, q.created_at, q.updated_at, q.resolved_at`

func scanQuery(row pgx.Row) (*Query, error) {
	var q Query
	err := row.Scan(
		&q.ID, &q.Subject, &q.Description, &q.Source, &q.Priority, &q.Status, &q.QueryType,
		&q.IsAnonymous, &q.IsPatient, &q.ContactEmail, &q.ContactPhone,
		&q.UserID, &q.AssignedToID, &q.ExpectedResponseDate, &q.FollowUpDate,
		&q.SatisfactionRating, &q.ConversionStatus, &q.ResolutionSummary,
		&q.FollowUpNotified, &q.OverdueNotified, &q.CreatedAt, &q.UpdatedAt, &q.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Create inserts the query and fills in its generated id and timestamps.
func (r *Repository) Create(ctx context.Context, q *Query) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO queries (
			subject, description, source, priority, status, query_type,
			is_anonymous, is_patient, contact_email, contact_phone,
			user_id, assigned_to, expected_response_date, follow_up_date,
			conversion_status, resolution_summary
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NULLIF($15,''),$16)
		RETURNING id, created_at, updated_at`,
		q.Subject, q.Description, q.Source, q.Priority, q.Status, q.QueryType,
		q.IsAnonymous, q.IsPatient, q.ContactEmail, q.ContactPhone,
		q.UserID, q.AssignedToID, q.ExpectedResponseDate, q.FollowUpDate,
		string(q.ConversionStatus), q.ResolutionSummary)

	if err := row.Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

// GetByID returns the query with its tags.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Query, error) {
	q, err := scanQuery(r.db.QueryRow(ctx, `
		SELECT `+queryColumns+` FROM queries q WHERE q.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get query: %w", err)
	}
	q.Tags, err = r.tagsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetForUpdate loads the query row under a row-level lock. Callers must hold
// an open transaction; lifecycle transitions use this to serialize per query.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Query, error) {
	q, err := scanQuery(r.db.QueryRow(ctx, `
		SELECT `+queryColumns+` FROM queries q WHERE q.id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock query: %w", err)
	}
	return q, nil
}

// Save writes back the mutable lifecycle fields and bumps updated_at.
func (r *Repository) Save(ctx context.Context, q *Query) error {
	row := r.db.QueryRow(ctx, `
		UPDATE queries SET
			subject = $2, description = $3, priority = $4, status = $5,
			query_type = $6, contact_email = $7, contact_phone = $8,
			user_id = $9, assigned_to = $10,
			expected_response_date = $11, follow_up_date = $12,
			satisfaction_rating = $13, conversion_status = NULLIF($14, ''),
			resolution_summary = $15, follow_up_notified = $16,
			overdue_notified = $17, resolved_at = $18, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		q.ID, q.Subject, q.Description, q.Priority, q.Status,
		q.QueryType, q.ContactEmail, q.ContactPhone,
		q.UserID, q.AssignedToID,
		q.ExpectedResponseDate, q.FollowUpDate,
		q.SatisfactionRating, string(q.ConversionStatus),
		q.ResolutionSummary, q.FollowUpNotified,
		q.OverdueNotified, q.ResolvedAt)

	if err := row.Scan(&q.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("save query: %w", err)
	}
	return nil
}

// AddUpdate appends an audit/conversation entry.
func (r *Repository) AddUpdate(ctx context.Context, queryID int64, authorID *uuid.UUID, content string) (*Update, error) {
	u := Update{QueryID: queryID, AuthorID: authorID, Content: content}
	row := r.db.QueryRow(ctx, `
		INSERT INTO query_updates (query_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, queryID, authorID, content)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert query update: %w", err)
	}
	return &u, nil
}

// ListUpdates returns a query's updates newest first.
func (r *Repository) ListUpdates(ctx context.Context, queryID int64) ([]Update, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, query_id, author_id, content, created_at
		FROM query_updates
		WHERE query_id = $1
		ORDER BY created_at DESC, id DESC`, queryID)
	if err != nil {
		return nil, fmt.Errorf("list query updates: %w", err)
	}
	defer rows.Close()

	var updates []Update
	for rows.Next() {
		var u Update
		if err := rows.Scan(&u.ID, &u.QueryID, &u.AuthorID, &u.Content, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// AttachTags links the named tags to the query, creating missing tag rows.
func (r *Repository) AttachTags(ctx context.Context, queryID int64, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, err := r.db.Exec(ctx, `
			WITH tag AS (
				INSERT INTO query_tags (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			)
			INSERT INTO query_tag_links (query_id, tag_id)
			SELECT $2, tag.id FROM tag
			ON CONFLICT DO NOTHING`, name, queryID)
		if err != nil {
			return fmt.Errorf("attach tag %q: %w", name, err)
		}
	}
	return nil
}

func (r *Repository) tagsFor(ctx context.Context, queryID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.name
		FROM query_tag_links l
		JOIN query_tags t ON t.id = l.tag_id
		WHERE l.query_id = $1
		ORDER BY t.name`, queryID)
	if err != nil {
		return nil, fmt.Errorf("list query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// List returns queries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f transport.ListQueriesFilter) ([]Query, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != nil {
		where = append(where, "q.status = "+arg(*f.Status))
	}
	if f.UserID != nil {
		where = append(where, "q.user_id = "+arg(*f.UserID))
	}
	if f.AssignedTo != nil {
		where = append(where, "q.assigned_to = "+arg(*f.AssignedTo))
	}
	if f.Overdue {
		where = append(where, "q.expected_response_date < now() AND q.status NOT IN ('RESOLVED','CLOSED')")
	}
	if f.FollowUp {
		where = append(where, "q.follow_up_date <= now() AND q.status NOT IN ('RESOLVED','CLOSED')")
	}

	sql := "SELECT " + queryColumns + " FROM queries q"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY q.created_at DESC, q.id DESC"
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sql += " LIMIT " + arg(limit)
	if f.Offset > 0 {
		sql += " OFFSET " + arg(f.Offset)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var queries []Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

// DueFollowUps returns open queries whose follow-up timestamp has passed and
// that have not yet been surfaced by the follow-up sweep.
func (r *Repository) DueFollowUps(ctx context.Context, now time.Time, limit int) ([]Query, error) {
	return r.sweep(ctx, `
		SELECT `+queryColumns+` FROM queries q
		WHERE q.follow_up_date <= $1
		  AND q.status NOT IN ('RESOLVED','CLOSED')
		  AND q.follow_up_notified = FALSE
		ORDER BY q.follow_up_date
		LIMIT $2`, now, limit)
}

// OverdueUnnotified returns open queries past their SLA deadline that have
// not yet produced an overdue notification.
func (r *Repository) OverdueUnnotified(ctx context.Context, now time.Time, limit int) ([]Query, error) {
	return r.sweep(ctx, `
		SELECT `+queryColumns+` FROM queries q
		WHERE q.expected_response_date < $1
		  AND q.status NOT IN ('RESOLVED','CLOSED')
		  AND q.overdue_notified = FALSE
		ORDER BY q.expected_response_date
		LIMIT $2`, now, limit)
}

func (r *Repository) sweep(ctx context.Context, sql string, now time.Time, limit int) ([]Query, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, sql, now, limit)
	if err != nil {
		return nil, fmt.Errorf("timer sweep: %w", err)
	}
	defer rows.Close()

	var queries []Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

// Delete removes the query; updates, attachments and idempotency rows go
// with it via ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM queries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAttachment records a stored file against the query.
func (r *Repository) AddAttachment(ctx context.Context, a *Attachment) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO query_attachments (query_id, file_name, file_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at`,
		a.QueryID, a.FileName, a.FileKey, a.ContentType, a.SizeBytes)
	if err := row.Scan(&a.ID, &a.UploadedAt); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// ListAttachments returns a query's attachments oldest first.
func (r *Repository) ListAttachments(ctx context.Context, queryID int64) ([]Attachment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, query_id, file_name, file_key, content_type, size_bytes, uploaded_at
		FROM query_attachments
		WHERE query_id = $1
		ORDER BY uploaded_at, id`, queryID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.QueryID, &a.FileName, &a.FileKey, &a.ContentType, &a.SizeBytes, &a.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
