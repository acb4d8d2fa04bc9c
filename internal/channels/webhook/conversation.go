package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitigo_crm_backend/internal/query/transport"
)

// ConversationState is the per-sender position in the guided messaging flow.
type ConversationState string

const (
	StateMenu                ConversationState = "MENU"
	StateNewQuery            ConversationState = "NEW_QUERY"
	StateViewQueries         ConversationState = "VIEW_QUERIES"
	StateAwaitingSubject     ConversationState = "AWAITING_SUBJECT"
	StateAwaitingDescription ConversationState = "AWAITING_DESCRIPTION"
)

// Conversation carries the state and the fields that state needs; only
// AWAITING_DESCRIPTION uses the collected subject.
type Conversation struct {
	ID        int64
	Channel   transport.Source
	SenderID  string
	State     ConversationState
	Subject   string
	UpdatedAt time.Time
}

// ConversationRepository persists per-sender conversation state keyed by
// (channel, sender_id).
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Get returns the sender's conversation, defaulting to MENU for new senders.
func (r *ConversationRepository) Get(ctx context.Context, channel transport.Source, senderID string) (*Conversation, error) {
	c := Conversation{Channel: channel, SenderID: senderID, State: StateMenu}
	err := r.pool.QueryRow(ctx, `
		SELECT id, state, subject, updated_at
		FROM channel_conversations
		WHERE channel = $1 AND sender_id = $2`, channel, senderID).
		Scan(&c.ID, &c.State, &c.Subject, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// Save upserts the sender's conversation state.
func (r *ConversationRepository) Save(ctx context.Context, c *Conversation) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO channel_conversations (channel, sender_id, state, subject, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (channel, sender_id)
		DO UPDATE SET state = EXCLUDED.state, subject = EXCLUDED.subject, updated_at = now()
		RETURNING id, updated_at`,
		c.Channel, c.SenderID, c.State, c.Subject).
		Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
