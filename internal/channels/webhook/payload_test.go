package webhook

import (
	"testing"

	"vitigo_crm_backend/internal/query/transport"
)

const whatsappBody = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "31612345678", "profile": {"name": "Jan de Vries"}}],
        "messages": [
          {"id": "wamid.1", "from": "31612345678", "type": "text", "text": {"body": " Hello "}},
          {"id": "wamid.2", "from": "31612345678", "type": "image"},
          {"id": "", "from": "31612345678", "type": "text", "text": {"body": "no id"}}
        ]
      }
    }]
  }]
}`

func TestParseWhatsAppPayload(t *testing.T) {
	msgs, err := ParsePayload(ChannelWhatsApp, []byte(whatsappBody))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Source != transport.SourceWhatsApp {
		t.Errorf("source = %s", m.Source)
	}
	if m.SenderID != "31612345678" || m.Phone != "31612345678" {
		t.Errorf("sender = %q phone = %q", m.SenderID, m.Phone)
	}
	if m.SenderName != "Jan de Vries" {
		t.Errorf("sender name = %q", m.SenderName)
	}
	if m.MessageID != "wamid.1" {
		t.Errorf("message id = %q", m.MessageID)
	}
	if m.Text != "Hello" {
		t.Errorf("text = %q", m.Text)
	}
	if string(m.Raw) != whatsappBody {
		t.Errorf("raw envelope not carried through: %q", m.Raw)
	}
}

func TestParseWhatsAppStatusCallback(t *testing.T) {
	body := `{"entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.9", "status": "delivered"}]}}]}]}`
	msgs, err := ParsePayload(ChannelWhatsApp, []byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestParseMessengerPayload(t *testing.T) {
	body := `{
	  "entry": [{
	    "messaging": [
	      {"sender": {"id": "page-user-1"}, "message": {"mid": "m.1", "text": "I need help"}},
	      {"sender": {"id": "page-user-1"}, "message": {"mid": "m.2", "text": "echoed", "is_echo": true}},
	      {"sender": {"id": "page-user-2"}, "message": {"mid": "m.3", "text": "  "}}
	    ]
	  }]
	}`
	msgs, err := ParsePayload(ChannelFacebook, []byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Source != transport.SourceFacebook {
		t.Errorf("source = %s", m.Source)
	}
	if m.SenderID != "page-user-1" || m.MessageID != "m.1" || m.Text != "I need help" {
		t.Errorf("unexpected message: %+v", m)
	}
	if m.Phone != "" {
		t.Errorf("messenger message should carry no phone, got %q", m.Phone)
	}
}

func TestParsePayloadUnknownChannel(t *testing.T) {
	if _, err := ParsePayload("telegram", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestParsePayloadMalformedBody(t *testing.T) {
	if _, err := ParsePayload(ChannelWhatsApp, []byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestSourceFor(t *testing.T) {
	cases := map[string]transport.Source{
		ChannelWhatsApp:  transport.SourceWhatsApp,
		ChannelFacebook:  transport.SourceFacebook,
		ChannelInstagram: transport.SourceInstagram,
	}
	for channel, want := range cases {
		got, ok := SourceFor(channel)
		if !ok || got != want {
			t.Errorf("SourceFor(%q) = %q, %v", channel, got, ok)
		}
	}
	if _, ok := SourceFor("sms"); ok {
		t.Error("SourceFor(sms) should not resolve")
	}
}
