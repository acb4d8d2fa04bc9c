package webhook

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	identityrepo "vitigo_crm_backend/internal/identity/repository"
	queryrepo "vitigo_crm_backend/internal/query/repository"
	queryservice "vitigo_crm_backend/internal/query/service"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/logger"
)

type fakeConversations struct {
	byKey map[string]*Conversation
}

func convKey(channel transport.Source, senderID string) string {
	return string(channel) + "/" + senderID
}

func (f *fakeConversations) Get(_ context.Context, channel transport.Source, senderID string) (*Conversation, error) {
	if c, ok := f.byKey[convKey(channel, senderID)]; ok {
		cp := *c
		return &cp, nil
	}
	return &Conversation{Channel: channel, SenderID: senderID, State: StateMenu}, nil
}

func (f *fakeConversations) Save(_ context.Context, c *Conversation) error {
	if f.byKey == nil {
		f.byKey = map[string]*Conversation{}
	}
	cp := *c
	f.byKey[convKey(c.Channel, c.SenderID)] = &cp
	return nil
}

type fakeCreator struct {
	created []queryservice.CreateParams
	keys    map[string]bool
}

func (c *fakeCreator) Create(_ context.Context, p queryservice.CreateParams) (*queryservice.CreateResult, error) {
	if c.keys == nil {
		c.keys = map[string]bool{}
	}
	if p.Ingest != nil {
		if c.keys[p.Ingest.ExternalID] {
			return nil, queryservice.ErrDuplicate
		}
		c.keys[p.Ingest.ExternalID] = true
	}
	c.created = append(c.created, p)
	return &queryservice.CreateResult{
		Query: &queryrepo.Query{ID: int64(len(c.created))},
	}, nil
}

type fakeLister struct {
	queries []queryrepo.Query
	lastF   transport.ListQueriesFilter
}

func (l *fakeLister) List(_ context.Context, f transport.ListQueriesFilter) ([]queryrepo.Query, error) {
	l.lastF = f
	return l.queries, nil
}

type fakeUsers struct {
	byPhone map[string]*identityrepo.User
	byEmail map[string]*identityrepo.User
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*identityrepo.User, error) {
	return f.byEmail[email], nil
}

func (f *fakeUsers) FindByPhone(_ context.Context, _, phoneNumber string) (*identityrepo.User, error) {
	return f.byPhone[phoneNumber], nil
}

func newTestService(creator *fakeCreator, lister *fakeLister, users *fakeUsers) (*Service, *fakeConversations) {
	convs := &fakeConversations{}
	if creator == nil {
		creator = &fakeCreator{}
	}
	if lister == nil {
		lister = &fakeLister{}
	}
	if users == nil {
		users = &fakeUsers{}
	}
	return NewService(convs, creator, lister, users, logger.New("development")), convs
}

func whatsappMsg(text, messageID string) InboundMessage {
	return InboundMessage{
		Source:     transport.SourceWhatsApp,
		SenderID:   "31612345678",
		SenderName: "Jan de Vries",
		Phone:      "31612345678",
		MessageID:  messageID,
		Text:       text,
		Raw:        []byte(`{"entry":[{"id":"` + messageID + `"}]}`),
	}
}

func TestMenuShownForUnknownInput(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)

	reply, err := svc.ProcessMessage(context.Background(), whatsappMsg("hi there", "wamid.0"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply != menuReply {
		t.Errorf("reply = %q, want menu", reply)
	}
}

func TestNewQueryFlow(t *testing.T) {
	creator := &fakeCreator{}
	svc, convs := newTestService(creator, nil, nil)
	ctx := context.Background()

	reply, err := svc.ProcessMessage(ctx, whatsappMsg("1", "wamid.1"))
	if err != nil {
		t.Fatalf("menu choice: %v", err)
	}
	if reply != subjectPrompt {
		t.Errorf("reply = %q, want subject prompt", reply)
	}

	reply, err = svc.ProcessMessage(ctx, whatsappMsg("Pigmentation on hands", "wamid.2"))
	if err != nil {
		t.Fatalf("subject turn: %v", err)
	}
	if reply != descriptionPrompt {
		t.Errorf("reply = %q, want description prompt", reply)
	}

	reply, err = svc.ProcessMessage(ctx, whatsappMsg("White patches appeared two weeks ago.", "wamid.3"))
	if err != nil {
		t.Fatalf("description turn: %v", err)
	}
	if !strings.Contains(reply, "#1") {
		t.Errorf("confirmation reply = %q, want query number", reply)
	}

	if len(creator.created) != 1 {
		t.Fatalf("expected 1 created query, got %d", len(creator.created))
	}
	p := creator.created[0]
	if p.Subject != "Pigmentation on hands" {
		t.Errorf("subject = %q", p.Subject)
	}
	if p.Description != "White patches appeared two weeks ago." {
		t.Errorf("description = %q", p.Description)
	}
	if p.Source != transport.SourceWhatsApp {
		t.Errorf("source = %s", p.Source)
	}
	if p.ContactPhone != "+31612345678" {
		t.Errorf("contact phone = %q, want E.164", p.ContactPhone)
	}
	if p.FirstName != "Jan" || p.LastName != "de Vries" {
		t.Errorf("name = %q %q", p.FirstName, p.LastName)
	}
	if !p.ResolveIdentity || !p.AutoAssign {
		t.Error("webhook queries resolve identity and auto-assign")
	}
	if p.Ingest == nil || p.Ingest.ExternalID != "wamid.3" {
		t.Errorf("ingest key = %+v", p.Ingest)
	}
	if p.Ingest != nil && len(p.Ingest.RawPayload) == 0 {
		t.Error("ingest record missing the raw envelope")
	}

	conv, _ := convs.Get(ctx, transport.SourceWhatsApp, "31612345678")
	if conv.State != StateMenu || conv.Subject != "" {
		t.Errorf("conversation not reset: state=%s subject=%q", conv.State, conv.Subject)
	}
}

func TestDuplicateDeliveryNoReply(t *testing.T) {
	creator := &fakeCreator{}
	svc, _ := newTestService(creator, nil, nil)
	ctx := context.Background()

	if _, err := svc.ProcessMessage(ctx, whatsappMsg("1", "wamid.1")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessMessage(ctx, whatsappMsg("Subject", "wamid.2")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessMessage(ctx, whatsappMsg("Description", "wamid.3")); err != nil {
		t.Fatal(err)
	}

	// Platform retries the last delivery; the conversation is back at the
	// menu so re-enter the flow with the same final message id.
	if _, err := svc.ProcessMessage(ctx, whatsappMsg("1", "wamid.4")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessMessage(ctx, whatsappMsg("Subject", "wamid.5")); err != nil {
		t.Fatal(err)
	}
	reply, err := svc.ProcessMessage(ctx, whatsappMsg("Description", "wamid.3"))
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if reply != "" {
		t.Errorf("duplicate delivery reply = %q, want empty", reply)
	}
	if len(creator.created) != 1 {
		t.Errorf("expected 1 created query, got %d", len(creator.created))
	}
}

func TestMessengerSenderGetsChannelAddress(t *testing.T) {
	creator := &fakeCreator{}
	svc, _ := newTestService(creator, nil, nil)
	ctx := context.Background()
	msg := InboundMessage{
		Source:    transport.SourceFacebook,
		SenderID:  "page-user-1",
		MessageID: "m.1",
		Text:      "1",
	}

	if _, err := svc.ProcessMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	msg.Text, msg.MessageID = "Subject", "m.2"
	if _, err := svc.ProcessMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	msg.Text, msg.MessageID = "Description", "m.3"
	if _, err := svc.ProcessMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	if len(creator.created) != 1 {
		t.Fatalf("expected 1 created query, got %d", len(creator.created))
	}
	p := creator.created[0]
	if p.ContactEmail != "page-user-1@facebook.vitigo.local" {
		t.Errorf("contact email = %q", p.ContactEmail)
	}
	if p.ContactPhone != "" {
		t.Errorf("contact phone = %q, want empty", p.ContactPhone)
	}
}

func TestViewQueriesWithoutUser(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)

	reply, err := svc.ProcessMessage(context.Background(), whatsappMsg("2", "wamid.1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(reply, "no queries yet") {
		t.Errorf("reply = %q", reply)
	}
}

func TestViewQueriesListsRecent(t *testing.T) {
	userID := uuid.New()
	users := &fakeUsers{byPhone: map[string]*identityrepo.User{
		"612345678": {ID: userID},
	}}
	lister := &fakeLister{queries: []queryrepo.Query{
		{ID: 7, Status: transport.StatusInProgress, Subject: "Pigmentation on hands"},
		{ID: 3, Status: transport.StatusResolved, Subject: "Appointment reschedule"},
	}}
	svc, _ := newTestService(nil, lister, users)

	reply, err := svc.ProcessMessage(context.Background(), whatsappMsg("2", "wamid.1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(reply, "#7") || !strings.Contains(reply, "#3") {
		t.Errorf("reply = %q", reply)
	}
	if lister.lastF.UserID == nil || *lister.lastF.UserID != userID {
		t.Errorf("filter user = %v", lister.lastF.UserID)
	}
	if lister.lastF.Limit != 5 {
		t.Errorf("filter limit = %d", lister.lastF.Limit)
	}
}
