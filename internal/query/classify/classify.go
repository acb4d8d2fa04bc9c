// Package classify implements the deterministic keyword classifier that
// assigns a priority and a query type to inbound queries.
package classify

import (
	"strings"

	"vitigo_crm_backend/internal/query/transport"
)

var priorityRules = []struct {
	keywords []string
	priority transport.Priority
}{
	{[]string{"urgent", "emergency", "immediate", "critical"}, transport.PriorityHigh},
	{[]string{"feedback", "suggestion", "general", "inquiry"}, transport.PriorityLow},
}

var typeRules = []struct {
	keywords []string
	qtype    transport.QueryType
}{
	{[]string{"appointment", "schedule", "booking"}, transport.TypeAppointment},
	{[]string{"treatment", "medicine", "prescription"}, transport.TypeTreatment},
	{[]string{"bill", "payment", "cost", "price"}, transport.TypeBilling},
	{[]string{"complaint", "issue", "problem"}, transport.TypeComplaint},
	{[]string{"feedback", "suggestion"}, transport.TypeFeedback},
}

// Classify derives (priority, query_type) from the subject and body.
// Matching is case-insensitive over the concatenated text; rules are
// evaluated in order and the first match wins.
func Classify(subject, body string) (transport.Priority, transport.QueryType) {
	text := strings.ToLower(subject + " " + body)

	priority := transport.PriorityMedium
	for _, rule := range priorityRules {
		if containsAny(text, rule.keywords) {
			priority = rule.priority
			break
		}
	}

	qtype := transport.TypeGeneral
	for _, rule := range typeRules {
		if containsAny(text, rule.keywords) {
			qtype = rule.qtype
			break
		}
	}

	return priority, qtype
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
