package email

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	queryservice "vitigo_crm_backend/internal/query/service"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/logger"
)

// QueryCreator is the slice of the lifecycle engine the poller drives.
type QueryCreator interface {
	Create(ctx context.Context, p queryservice.CreateParams) (*queryservice.CreateResult, error)
}

var (
	nameRe    = regexp.MustCompile(`(?mi)^Name:\s*([^\n]+)`)
	contactRe = regexp.MustCompile(`(?mi)^(?:Contact|Phone|Mobile):\s*([+\d][\d\s-]*)`)
)

// Poller runs the two-phase mail intake: phase A snapshots today's messages
// into the poll log, phase B replays the log and ingests every unseen
// message whose subject carries the query marker. Re-running after a crash
// re-logs the day and re-processes only what is still unseen.
type Poller struct {
	dial    Dialer
	queries QueryCreator
	logPath string
	marker  string
	log     *logger.Logger
}

func NewPoller(dial Dialer, queries QueryCreator, cfg config.IMAPConfig, log *logger.Logger) *Poller {
	return &Poller{
		dial:    dial,
		queries: queries,
		logPath: cfg.GetEmailPollLogPath(),
		marker:  cfg.GetQuerySubjectMarker(),
		log:     log,
	}
}

// PollResult summarizes one poll run.
type PollResult struct {
	Logged     int
	Ingested   int
	Duplicates int
	Errors     int
}

// Poll executes both phases against one mailbox connection.
func (p *Poller) Poll(ctx context.Context) (PollResult, error) {
	var res PollResult

	mailbox, err := p.dial()
	if err != nil {
		return res, err
	}
	defer mailbox.Close()

	messages, err := mailbox.MessagesOn(time.Now())
	if err != nil {
		return res, err
	}
	if err := writePollLog(p.logPath, messages); err != nil {
		return res, err
	}
	res.Logged = len(messages)

	err = readPollLog(p.logPath, func(entry LogEntry) error {
		if entry.IsRead || !containsMarker(entry.Subject, p.marker) {
			return nil
		}
		switch err := p.ingest(ctx, mailbox, entry); {
		case errors.Is(err, queryservice.ErrDuplicate):
			res.Duplicates++
			// Already ingested on a previous run; just re-flag upstream.
			if err := mailbox.MarkSeen(entry.UID); err != nil {
				p.log.Error("mark seen after duplicate", "uid", entry.UID, "error", err)
			}
			return nil
		case err != nil:
			res.Errors++
			return err
		default:
			res.Ingested++
			return nil
		}
	}, func(line int, err error) {
		// Per-message isolation: a bad entry must not abort the batch.
		p.log.Error("email poll entry failed", "line", line, "error", err)
	})
	if err != nil {
		return res, err
	}

	p.log.Info("email poll complete",
		"logged", res.Logged, "ingested", res.Ingested,
		"duplicates", res.Duplicates, "errors", res.Errors)
	return res, nil
}

func (p *Poller) ingest(ctx context.Context, mailbox Mailbox, entry LogEntry) error {
	subject := stripMarker(entry.Subject, p.marker)
	firstName, lastName := parseName(entry.Body, entry.FromName)
	raw, _ := json.Marshal(entry)

	res, err := p.queries.Create(ctx, queryservice.CreateParams{
		Subject: subject,
		// The trailing Message-ID marker keeps email queries traceable to
		// their source message.
		Description:     strings.TrimRight(entry.Body, "\n") + "\n\nMessage-ID: " + entry.MessageID,
		Source:          transport.SourceEmail,
		ContactEmail:    entry.From,
		ContactPhone:    parseContact(entry.Body),
		FirstName:       firstName,
		LastName:        lastName,
		ResolveIdentity: true,
		AutoAssign:      true,
		Ingest: &queryservice.IngestKey{
			Channel:    transport.SourceEmail,
			ExternalID: entry.MessageID,
			RawPayload: raw,
		},
	})
	if err != nil {
		return err
	}

	if err := mailbox.MarkSeen(entry.UID); err != nil {
		// The dedup key already protects against re-ingestion.
		p.log.Error("mark seen failed", "uid", entry.UID, "error", err)
	}
	p.log.IngestEvent("EMAIL", entry.MessageID, false, res.Query.ID)
	return nil
}

func containsMarker(subject, marker string) bool {
	return strings.Contains(strings.ToLower(subject), strings.ToLower(marker))
}

func stripMarker(subject, marker string) string {
	lower := strings.ToLower(subject)
	idx := strings.Index(lower, strings.ToLower(marker))
	if idx < 0 {
		return strings.TrimSpace(subject)
	}
	rest := subject[:idx] + subject[idx+len(marker):]
	return strings.TrimSpace(rest)
}

// parseName prefers an explicit "Name:" line in the body, then the From
// display name.
func parseName(body, fromName string) (first, last string) {
	full := fromName
	if m := nameRe.FindStringSubmatch(body); m != nil {
		full = strings.TrimSpace(m[1])
	}
	if full == "" {
		return "", ""
	}
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

func parseContact(body string) string {
	m := contactRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
