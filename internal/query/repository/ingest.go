package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vitigo_crm_backend/internal/query/transport"
)

// ErrDuplicateIngest is returned when a channel event was already ingested.
var ErrDuplicateIngest = errors.New("channel event already ingested")

const uniqueViolation = "23505"

// RecordIngest pins a channel-scoped external message id to the query it
// produced. The unique constraint on (channel, external_id) is the
// exactly-once guarantee; replays surface as ErrDuplicateIngest.
func (r *Repository) RecordIngest(ctx context.Context, channel transport.Source, externalID string, queryID int64, raw []byte) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO channel_ingests (channel, external_id, query_id, raw_payload)
		VALUES ($1, $2, $3, $4)`,
		channel, externalID, queryID, raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateIngest
		}
		return fmt.Errorf("record ingest: %w", err)
	}
	return nil
}

// FindIngest returns the query id an external message already produced.
func (r *Repository) FindIngest(ctx context.Context, channel transport.Source, externalID string) (int64, bool, error) {
	var queryID int64
	err := r.db.QueryRow(ctx, `
		SELECT query_id FROM channel_ingests
		WHERE channel = $1 AND external_id = $2`, channel, externalID).Scan(&queryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find ingest: %w", err)
	}
	return queryID, true, nil
}
