package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"vitigo_crm_backend/internal/query/transport"
)

//go:embed templates/*.html
var templateFS embed.FS

// QueryEmailData feeds every query-event template; unused fields render as
// empty blocks.
type QueryEmailData struct {
	Title             string
	Heading           string
	RecipientName     string
	QueryID           int64
	QuerySubject      string
	Priority          string
	Change            string
	ResolutionSummary string
	ExpectedResponse  string
}

var eventTemplates = map[transport.EventKind]string{
	transport.EventCreated:       "query_created.html",
	transport.EventAssigned:      "query_assigned.html",
	transport.EventStatusUpdated: "query_status_updated.html",
	transport.EventResolved:      "query_resolved.html",
	transport.EventFollowUpDue:   "query_follow_up.html",
	transport.EventOverdue:       "query_overdue.html",
}

// RenderQueryEmail renders the HTML body for a lifecycle event.
func RenderQueryEmail(kind transport.EventKind, data QueryEmailData) (string, error) {
	name, ok := eventTemplates[kind]
	if !ok {
		return "", fmt.Errorf("no email template for event kind %q", kind)
	}
	tmpl, err := template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// SubjectFor returns the email subject line for a lifecycle event.
func SubjectFor(kind transport.EventKind, queryID int64) string {
	switch kind {
	case transport.EventCreated:
		return fmt.Sprintf(subjectQueryCreatedFmt, queryID)
	case transport.EventAssigned:
		return fmt.Sprintf(subjectQueryAssignedFmt, queryID)
	case transport.EventStatusUpdated:
		return fmt.Sprintf(subjectQueryStatusUpdatedFmt, queryID)
	case transport.EventResolved:
		return fmt.Sprintf(subjectQueryResolvedFmt, queryID)
	case transport.EventFollowUpDue:
		return fmt.Sprintf(subjectQueryFollowUpFmt, queryID)
	case transport.EventOverdue:
		return fmt.Sprintf(subjectQueryOverdueFmt, queryID)
	default:
		return fmt.Sprintf("Update on your query #%d", queryID)
	}
}
