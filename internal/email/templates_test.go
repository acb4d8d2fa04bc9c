package email

import (
	"strings"
	"testing"

	"vitigo_crm_backend/internal/query/transport"
)

func TestRenderQueryEmail(t *testing.T) {
	data := QueryEmailData{
		Title:         "We received your query",
		Heading:       "Query received",
		RecipientName: "Jan",
		QueryID:       42,
		QuerySubject:  "Pigmentation on hands",
		Priority:      "A",
	}

	for kind := range eventTemplates {
		body, err := RenderQueryEmail(kind, data)
		if err != nil {
			t.Errorf("RenderQueryEmail(%s): %v", kind, err)
			continue
		}
		if !strings.Contains(body, "Pigmentation on hands") {
			t.Errorf("%s body missing subject", kind)
		}
		if !strings.Contains(body, "Jan") {
			t.Errorf("%s body missing recipient name", kind)
		}
	}
}

func TestRenderQueryEmailEscapesHTML(t *testing.T) {
	body, err := RenderQueryEmail(transport.EventCreated, QueryEmailData{
		QuerySubject: `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("RenderQueryEmail: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("template did not escape user content")
	}
}

func TestRenderQueryEmailUnknownKind(t *testing.T) {
	if _, err := RenderQueryEmail(transport.EventKind("NOPE"), QueryEmailData{}); err == nil {
		t.Fatal("expected error for unknown event kind")
	}
}

func TestSubjectFor(t *testing.T) {
	cases := []struct {
		kind transport.EventKind
		want string
	}{
		{transport.EventCreated, "We received your query #7"},
		{transport.EventAssigned, "Query #7 has been assigned to you"},
		{transport.EventStatusUpdated, "Update on query #7"},
		{transport.EventResolved, "Your query #7 has been resolved"},
		{transport.EventFollowUpDue, "Follow-up due on query #7"},
		{transport.EventOverdue, "Query #7 is overdue"},
	}
	for _, tc := range cases {
		if got := SubjectFor(tc.kind, 7); got != tc.want {
			t.Errorf("SubjectFor(%s) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}
