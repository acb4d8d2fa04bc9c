package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	identityrepo "vitigo_crm_backend/internal/identity/repository"
	queryrepo "vitigo_crm_backend/internal/query/repository"
	queryservice "vitigo_crm_backend/internal/query/service"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/logger"
	"vitigo_crm_backend/platform/phone"
)

const (
	menuReply = "Welcome to VitiGo Patient Care.\n" +
		"Reply 1 to raise a new query.\n" +
		"Reply 2 to view your open queries."
	subjectPrompt     = "What is your query about? Please send a short subject."
	descriptionPrompt = "Thanks. Now describe your query in detail."
)

// QueryCreator is the slice of the lifecycle engine the webhook flow drives.
type QueryCreator interface {
	Create(ctx context.Context, p queryservice.CreateParams) (*queryservice.CreateResult, error)
}

// QueryLister lists a user's queries for the view flow.
type QueryLister interface {
	List(ctx context.Context, f transport.ListQueriesFilter) ([]queryrepo.Query, error)
}

// ConversationStore persists per-sender conversation state.
type ConversationStore interface {
	Get(ctx context.Context, channel transport.Source, senderID string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
}

// UserFinder looks up existing users for the view-queries flow.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*identityrepo.User, error)
	FindByPhone(ctx context.Context, countryCode, phoneNumber string) (*identityrepo.User, error)
}

// Service drives the per-sender conversation state machine for the
// messaging channels.
type Service struct {
	conversations ConversationStore
	queries       QueryCreator
	lister        QueryLister
	users         UserFinder
	log           *logger.Logger
}

func NewService(conversations ConversationStore, queries QueryCreator, lister QueryLister, users UserFinder, log *logger.Logger) *Service {
	return &Service{
		conversations: conversations,
		queries:       queries,
		lister:        lister,
		users:         users,
		log:           log,
	}
}

// ProcessMessage advances the sender's conversation by one turn and returns
// the reply text.
func (s *Service) ProcessMessage(ctx context.Context, msg InboundMessage) (string, error) {
	conv, err := s.conversations.Get(ctx, msg.Source, msg.SenderID)
	if err != nil {
		return "", err
	}

	switch conv.State {
	case StateNewQuery, StateAwaitingSubject:
		return s.captureSubject(ctx, conv, msg)
	case StateAwaitingDescription:
		return s.assembleQuery(ctx, conv, msg)
	default:
		// MENU; a stale VIEW_QUERIES state also lands here.
		return s.handleMenu(ctx, conv, msg)
	}
}

func (s *Service) handleMenu(ctx context.Context, conv *Conversation, msg InboundMessage) (string, error) {
	switch normalize(msg.Text) {
	case "1", "new", "new query":
		conv.State = StateNewQuery
		if err := s.conversations.Save(ctx, conv); err != nil {
			return "", err
		}
		return subjectPrompt, nil
	case "2", "view", "status", "my queries":
		conv.State = StateViewQueries
		reply, err := s.listQueries(ctx, msg)
		if err != nil {
			return "", err
		}
		conv.State = StateMenu
		if err := s.conversations.Save(ctx, conv); err != nil {
			return "", err
		}
		return reply, nil
	default:
		if conv.State != StateMenu {
			conv.State = StateMenu
			if err := s.conversations.Save(ctx, conv); err != nil {
				return "", err
			}
		}
		return menuReply, nil
	}
}

func (s *Service) captureSubject(ctx context.Context, conv *Conversation, msg InboundMessage) (string, error) {
	conv.Subject = truncate(msg.Text, 255)
	conv.State = StateAwaitingDescription
	if err := s.conversations.Save(ctx, conv); err != nil {
		return "", err
	}
	return descriptionPrompt, nil
}

func (s *Service) assembleQuery(ctx context.Context, conv *Conversation, msg InboundMessage) (string, error) {
	contactPhone := msg.Phone
	if contactPhone != "" && !strings.HasPrefix(contactPhone, "+") {
		// WhatsApp sender ids are E.164 digits without the plus.
		contactPhone = "+" + contactPhone
	}
	params := queryservice.CreateParams{
		Subject:         conv.Subject,
		Description:     msg.Text,
		Source:          msg.Source,
		ContactPhone:    contactPhone,
		FirstName:       firstWord(msg.SenderName),
		LastName:        restWords(msg.SenderName),
		ResolveIdentity: true,
		AutoAssign:      true,
		Ingest: &queryservice.IngestKey{
			Channel:    msg.Source,
			ExternalID: msg.MessageID,
			RawPayload: msg.Raw,
		},
	}
	if msg.Phone == "" {
		// Page-scoped sender ids have no phone or email; a channel-scoped
		// address keeps the identity stable across conversations.
		params.ContactEmail = channelAddress(msg.Source, msg.SenderID)
	}

	res, err := s.queries.Create(ctx, params)
	if errors.Is(err, queryservice.ErrDuplicate) {
		// Platform retry of an already-processed message.
		return "", nil
	}
	if err != nil {
		return "", err
	}

	conv.State = StateMenu
	conv.Subject = ""
	if err := s.conversations.Save(ctx, conv); err != nil {
		return "", err
	}

	s.log.IngestEvent(string(msg.Source), msg.MessageID, false, res.Query.ID)
	return fmt.Sprintf("Your query #%d has been registered. Our team will get back to you soon.", res.Query.ID), nil
}

func (s *Service) listQueries(ctx context.Context, msg InboundMessage) (string, error) {
	var user *identityrepo.User
	var err error
	if msg.Phone != "" {
		cc, national := phone.Split("+" + strings.TrimPrefix(msg.Phone, "+"))
		user, err = s.users.FindByPhone(ctx, cc, national)
	} else {
		user, err = s.users.FindByEmail(ctx, channelAddress(msg.Source, msg.SenderID))
	}
	if err != nil {
		return "", err
	}
	if user == nil {
		return "You have no queries yet. Reply 1 to raise one.", nil
	}

	queries, err := s.lister.List(ctx, transport.ListQueriesFilter{UserID: &user.ID, Limit: 5})
	if err != nil {
		return "", err
	}
	if len(queries) == 0 {
		return "You have no queries yet. Reply 1 to raise one.", nil
	}

	var b strings.Builder
	b.WriteString("Your recent queries:\n")
	for _, q := range queries {
		fmt.Fprintf(&b, "#%d [%s] %s\n", q.ID, q.Status, truncate(q.Subject, 60))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func channelAddress(source transport.Source, senderID string) string {
	return fmt.Sprintf("%s@%s.vitigo.local", senderID, strings.ToLower(string(source)))
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstWord(s string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	return first
}

func restWords(s string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	return strings.TrimSpace(rest)
}
