// Package email implements the IMAP polling channel adapter.
package email

import (
	"fmt"
	"strings"
	"time"

	imap "github.com/BrianLeishman/go-imap"

	"vitigo_crm_backend/platform/config"
)

// Message is one mailbox message, normalized away from the IMAP library.
type Message struct {
	UID       int
	MessageID string
	Subject   string
	From      string
	FromName  string
	Body      string
	Sent      time.Time
	Seen      bool
}

// Mailbox is the minimal mailbox surface the poller needs. The connection is
// scoped to one poll invocation.
type Mailbox interface {
	MessagesOn(day time.Time) ([]Message, error)
	MarkSeen(uid int) error
	Close() error
}

// Dialer opens a mailbox connection for one poll.
type Dialer func() (Mailbox, error)

type imapMailbox struct {
	dialer *imap.Dialer
	host   string
}

// DialIMAP connects over IMAPS and selects INBOX.
func DialIMAP(cfg config.IMAPConfig) (Mailbox, error) {
	d, err := imap.New(cfg.GetEmailUser(), cfg.GetEmailPassword(), cfg.GetIMAPHost(), cfg.GetIMAPPort())
	if err != nil {
		return nil, fmt.Errorf("imap connect: %w", err)
	}
	if err := d.SelectFolder("INBOX"); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("imap select inbox: %w", err)
	}
	return &imapMailbox{dialer: d, host: cfg.GetIMAPHost()}, nil
}

// NewIMAPDialer returns a Dialer bound to the configured account.
func NewIMAPDialer(cfg config.IMAPConfig) Dialer {
	return func() (Mailbox, error) { return DialIMAP(cfg) }
}

func (m *imapMailbox) MessagesOn(day time.Time) ([]Message, error) {
	uids, err := m.dialer.GetUIDs("ON " + day.Format("02-Jan-2006"))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	emails, err := m.dialer.GetEmails(uids...)
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	messages := make([]Message, 0, len(emails))
	for uid, e := range emails {
		from, fromName := firstAddress(e.From)
		messages = append(messages, Message{
			UID:       uid,
			MessageID: messageID(e.MessageID, uid, m.host),
			Subject:   e.Subject,
			From:      from,
			FromName:  fromName,
			Body:      e.Text,
			Sent:      e.Sent,
			Seen:      hasSeenFlag(e.Flags),
		})
	}
	return messages, nil
}

func (m *imapMailbox) MarkSeen(uid int) error {
	return m.dialer.MarkSeen(uid)
}

func (m *imapMailbox) Close() error {
	return m.dialer.Close()
}

// messageID prefers the RFC-822 Message-ID header as the dedup key so that
// the same message stays deduplicated across UIDVALIDITY resets and mailbox
// copies. Messages without the header fall back to a synthetic id keyed on
// the per-mailbox UID.
func messageID(header string, uid int, host string) string {
	if h := strings.TrimSpace(header); h != "" {
		return h
	}
	return fmt.Sprintf("<imap-%d@%s>", uid, host)
}

func firstAddress(addrs imap.EmailAddresses) (address, name string) {
	for addr, addrName := range addrs {
		return strings.ToLower(addr), addrName
	}
	return "", ""
}

func hasSeenFlag(flags []string) bool {
	for _, f := range flags {
		if strings.EqualFold(strings.TrimPrefix(f, `\`), "seen") {
			return true
		}
	}
	return false
}
