package email

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vitigo_crm_backend/internal/query/repository"
	queryservice "vitigo_crm_backend/internal/query/service"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/logger"
)

type fakeMailbox struct {
	messages []Message
	seen     map[int]bool
}

func (m *fakeMailbox) MessagesOn(time.Time) ([]Message, error) { return m.messages, nil }
func (m *fakeMailbox) MarkSeen(uid int) error {
	if m.seen == nil {
		m.seen = map[int]bool{}
	}
	m.seen[uid] = true
	return nil
}
func (m *fakeMailbox) Close() error { return nil }

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
		Query: &repository.Query{ID: int64(len(c.created))},
	}, nil
}

func newTestPoller(t *testing.T, mb Mailbox, creator QueryCreator) *Poller {
	t.Helper()
	return &Poller{
		dial:    func() (Mailbox, error) { return mb, nil },
		queries: creator,
		logPath: filepath.Join(t.TempDir(), "email_logs.txt"),
		marker:  "[VITIGO-QUERY]",
		log:     logger.New("development"),
	}
}

func TestPollIngestsMarkedUnseenMessages(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{
			UID:       7,
			MessageID: "<abc@mail>",
			Subject:   "[VITIGO-QUERY] Urgent appointment help",
			From:      "jane@example.com",
			Body:      "Name: Jane Doe\nContact: +919812345678\nI need an urgent appointment.",
			Sent:      time.Now(),
		},
		{UID: 8, MessageID: "<skip@mail>", Subject: "Lunch on friday?", From: "bob@example.com", Body: "hi"},
		{UID: 9, MessageID: "<read@mail>", Subject: "[VITIGO-QUERY] already handled", From: "x@example.com", Seen: true},
	}}
	creator := &fakeCreator{}

	res, err := newTestPoller(t, mb, creator).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Logged != 3 || res.Ingested != 1 || res.Errors != 0 {
		t.Fatalf("result = %+v, want 3 logged, 1 ingested", res)
	}
	if len(creator.created) != 1 {
		t.Fatalf("created %d queries, want 1", len(creator.created))
	}

	p := creator.created[0]
	if p.Subject != "Urgent appointment help" {
		t.Errorf("subject = %q, marker not stripped", p.Subject)
	}
	if p.Source != transport.SourceEmail {
		t.Errorf("source = %s, want EMAIL", p.Source)
	}
	if !strings.HasSuffix(p.Description, "\n\nMessage-ID: <abc@mail>") {
		t.Errorf("description missing Message-ID suffix: %q", p.Description)
	}
	if strings.Count(p.Description, "Message-ID:") != 1 {
		t.Errorf("description carries more than one Message-ID marker: %q", p.Description)
	}
	if p.ContactEmail != "jane@example.com" || p.ContactPhone != "+919812345678" {
		t.Errorf("contact = (%q, %q)", p.ContactEmail, p.ContactPhone)
	}
	if p.FirstName != "Jane" || p.LastName != "Doe" {
		t.Errorf("name = (%q, %q), want (Jane, Doe)", p.FirstName, p.LastName)
	}
	if p.Ingest == nil || p.Ingest.ExternalID != "<abc@mail>" {
		t.Errorf("ingest key = %+v", p.Ingest)
	}
	if !mb.seen[7] {
		t.Error("ingested message not flagged seen")
	}
	if mb.seen[8] {
		t.Error("unmarked message should not be flagged")
	}
}

func TestPollRerunIsNoOp(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{{
		UID:       1,
		MessageID: "<once@mail>",
		Subject:   "[vitigo-query] follow up please",
		From:      "a@b.c",
		Body:      "ping",
	}}}
	creator := &fakeCreator{}
	poller := newTestPoller(t, mb, creator)

	if _, err := poller.Poll(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	// Upstream flagging may lag; the dedup key alone must prevent a second
	// query even when the replayed snapshot still says unread.
	res, err := poller.Poll(context.Background())
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(creator.created) != 1 {
		t.Fatalf("replay created %d queries, want 1", len(creator.created))
	}
	if res.Duplicates != 1 {
		t.Errorf("second poll duplicates = %d, want 1", res.Duplicates)
	}
	if !mb.seen[1] {
		t.Error("message should stay flagged seen")
	}
}

func TestPollIsolatesPerMessageFailure(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{UID: 1, MessageID: "<bad@mail>", Subject: "[VITIGO-QUERY] broken", From: "a@b.c", Body: "x"},
		{UID: 2, MessageID: "<good@mail>", Subject: "[VITIGO-QUERY] fine", From: "c@d.e", Body: "y"},
	}}
	creator := &failingFirstCreator{}

	res, err := newTestPoller(t, mb, creator).Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Errors != 1 || res.Ingested != 1 {
		t.Fatalf("result = %+v, want one error and one ingested", res)
	}
}

type failingFirstCreator struct {
	calls int
}

func (c *failingFirstCreator) Create(context.Context, queryservice.CreateParams) (*queryservice.CreateResult, error) {
	c.calls++
	if c.calls == 1 {
		return nil, context.DeadlineExceeded
	}
	return &queryservice.CreateResult{Query: &repository.Query{ID: int64(c.calls)}}, nil
}

func TestStripMarker(t *testing.T) {
	cases := []struct{ in, want string }{
		{"[VITIGO-QUERY] Urgent appointment help", "Urgent appointment help"},
		{"Re: [vitigo-query] billing", "Re:  billing"},
		{"no marker here", "no marker here"},
	}
	for _, tc := range cases {
		if got := stripMarker(tc.in, "[VITIGO-QUERY]"); strings.TrimSpace(got) != strings.TrimSpace(tc.want) {
			t.Errorf("stripMarker(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseContact(t *testing.T) {
	body := "Name: Jane Doe\nContact: +91 98123-45678\nhelp"
	if got := parseContact(body); got != "+91 98123-45678" {
		t.Errorf("parseContact = %q", got)
	}
	if got := parseContact("no contact line"); got != "" {
		t.Errorf("parseContact on plain body = %q, want empty", got)
	}
}
