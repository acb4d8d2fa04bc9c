package service

import (
	"strings"
	"testing"
	"time"

	identityrepo "vitigo_crm_backend/internal/identity/repository"
	queryrepo "vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/transport"
)

func TestInboxMessage(t *testing.T) {
	q := &queryrepo.Query{ID: 12, Subject: "Pigmentation on hands"}

	cases := []struct {
		kind transport.EventKind
		data map[string]string
		want string
	}{
		{transport.EventCreated, nil, "Your query #12 has been received: Pigmentation on hands"},
		{transport.EventAssigned, nil, "Query #12 has been assigned to you: Pigmentation on hands"},
		{transport.EventStatusUpdated, map[string]string{"new_status": "IN_PROGRESS"}, "Query #12 status changed to IN_PROGRESS"},
		{transport.EventStatusUpdated, map[string]string{"change": "Priority raised to A"}, "Query #12 updated: Priority raised to A"},
		{transport.EventStatusUpdated, nil, "Query #12 has been updated"},
		{transport.EventResolved, nil, "Your query #12 has been resolved"},
		{transport.EventFollowUpDue, nil, "Follow-up due on query #12: Pigmentation on hands"},
		{transport.EventOverdue, nil, "Query #12 has passed its expected response date"},
	}
	for _, tc := range cases {
		if got := inboxMessage(tc.kind, q, tc.data); got != tc.want {
			t.Errorf("inboxMessage(%s, %v) = %q, want %q", tc.kind, tc.data, got, tc.want)
		}
	}
}

func TestEmailData(t *testing.T) {
	due := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	q := &queryrepo.Query{
		ID:                   5,
		Subject:              "Appointment reschedule",
		Priority:             transport.PriorityHigh,
		ExpectedResponseDate: &due,
	}
	recipient := &identityrepo.User{FirstName: "Jan", LastName: "de Vries"}

	d := emailData(transport.EventStatusUpdated, q, recipient, map[string]string{
		"old_status": "NEW",
		"new_status": "IN_PROGRESS",
	})

	if d.RecipientName != "Jan de Vries" {
		t.Errorf("recipient name = %q", d.RecipientName)
	}
	if d.QueryID != 5 || d.QuerySubject != "Appointment reschedule" {
		t.Errorf("query fields = %d %q", d.QueryID, d.QuerySubject)
	}
	if d.Priority != "A" {
		t.Errorf("priority = %q", d.Priority)
	}
	if d.Change != "Status changed from NEW to IN_PROGRESS" {
		t.Errorf("change = %q", d.Change)
	}
	if !strings.Contains(d.ExpectedResponse, "2026") {
		t.Errorf("expected response = %q", d.ExpectedResponse)
	}
}

func TestEmailDataPrefersExplicitChange(t *testing.T) {
	q := &queryrepo.Query{ID: 1}
	recipient := &identityrepo.User{FirstName: "Jan"}

	d := emailData(transport.EventStatusUpdated, q, recipient, map[string]string{
		"change":     "Reopened by patient",
		"new_status": "IN_PROGRESS",
	})
	if d.Change != "Reopened by patient" {
		t.Errorf("change = %q", d.Change)
	}
}

func TestSMSEnabledKinds(t *testing.T) {
	if smsEnabledKinds[transport.EventCreated] || smsEnabledKinds[transport.EventStatusUpdated] {
		t.Error("creation and status updates should not page by SMS")
	}
	for _, kind := range []transport.EventKind{
		transport.EventAssigned,
		transport.EventResolved,
		transport.EventFollowUpDue,
		transport.EventOverdue,
	} {
		if !smsEnabledKinds[kind] {
			t.Errorf("%s should produce SMS", kind)
		}
	}
}
