package repository

import (
	"testing"
	"time"

	"vitigo_crm_backend/internal/query/transport"
)

func TestResponseTime(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	q := Query{CreatedAt: created, Status: transport.StatusInProgress}
	if q.ResponseTime() != nil {
		t.Fatal("unresolved query should have no response time")
	}

	resolved := created.Add(2 * time.Hour)
	q.ResolvedAt = &resolved
	q.Status = transport.StatusResolved
	if got := q.ResponseTime(); got == nil || *got != 2*time.Hour {
		t.Fatalf("ResponseTime = %v, want 2h", got)
	}
}

func TestIsOverdue(t *testing.T) {
	deadline := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	q := Query{Status: transport.StatusNew, ExpectedResponseDate: &deadline}

	if q.IsOverdue(deadline.Add(-time.Minute)) {
		t.Error("query overdue before its deadline")
	}
	if !q.IsOverdue(deadline.Add(time.Minute)) {
		t.Error("open query past deadline should be overdue")
	}

	q.Status = transport.StatusResolved
	if q.IsOverdue(deadline.Add(time.Hour)) {
		t.Error("resolved query must never be overdue")
	}

	q = Query{Status: transport.StatusNew}
	if q.IsOverdue(time.Now()) {
		t.Error("query without a deadline cannot be overdue")
	}
}

func TestSLACompliant(t *testing.T) {
	deadline := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	early := deadline.Add(-time.Hour)
	late := deadline.Add(time.Hour)

	q := Query{ExpectedResponseDate: &deadline}
	if q.SLACompliant() {
		t.Error("unresolved query cannot be SLA compliant")
	}
	q.ResolvedAt = &early
	if !q.SLACompliant() {
		t.Error("resolution before deadline should be compliant")
	}
	q.ResolvedAt = &late
	if q.SLACompliant() {
		t.Error("resolution after deadline should not be compliant")
	}
}
