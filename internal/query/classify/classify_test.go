package classify

import (
	"testing"

	"vitigo_crm_backend/internal/query/transport"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		subject  string
		body     string
		priority transport.Priority
		qtype    transport.QueryType
	}{
		{"urgent appointment", "Urgent appointment help", "I need an urgent appointment.", transport.PriorityHigh, transport.TypeAppointment},
		{"emergency in body", "Hello", "This is an EMERGENCY, please call back", transport.PriorityHigh, transport.TypeGeneral},
		{"feedback low priority", "Feedback on my visit", "Great service", transport.PriorityLow, transport.TypeFeedback},
		{"general inquiry", "General inquiry", "Opening hours?", transport.PriorityLow, transport.TypeGeneral},
		{"billing default medium", "Question about my bill", "How much does the session cost?", transport.PriorityMedium, transport.TypeBilling},
		{"treatment", "Prescription refill", "Need my medicine renewed", transport.PriorityMedium, transport.TypeTreatment},
		{"complaint", "Problem with booking system", "", transport.PriorityMedium, transport.TypeAppointment},
		{"complaint without booking words", "I have a problem", "The staff were late", transport.PriorityMedium, transport.TypeComplaint},
		{"empty falls through", "", "", transport.PriorityMedium, transport.TypeGeneral},
		{"urgent beats feedback order", "urgent feedback", "", transport.PriorityHigh, transport.TypeFeedback},
		{"case insensitive", "URGENT Schedule", "", transport.PriorityHigh, transport.TypeAppointment},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, q := Classify(tc.subject, tc.body)
			if p != tc.priority {
				t.Errorf("priority = %s, want %s", p, tc.priority)
			}
			if q != tc.qtype {
				t.Errorf("query type = %s, want %s", q, tc.qtype)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	p1, q1 := Classify("Payment issue", "card declined")
	for i := 0; i < 10; i++ {
		p2, q2 := Classify("Payment issue", "card declined")
		if p1 != p2 || q1 != q2 {
			t.Fatalf("classification drifted: (%s,%s) vs (%s,%s)", p1, q1, p2, q2)
		}
	}
}
