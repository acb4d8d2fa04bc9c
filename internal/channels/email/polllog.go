package email

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LogEntry is one line of the poll log: a JSON snapshot of a mailbox
// message taken in phase A and consumed in phase B.
type LogEntry struct {
	UID       int       `json:"uid"`
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	FromName  string    `json:"from_name,omitempty"`
	Date      time.Time `json:"date"`
	IsRead    bool      `json:"is_read"`
	Body      string    `json:"body"`
}

// writePollLog truncates the log file and writes one JSON object per
// message. The file is a per-run scratch buffer, not a durable queue.
func writePollLog(path string, messages []Message) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create poll log: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, m := range messages {
		entry := LogEntry{
			UID:       m.UID,
			MessageID: m.MessageID,
			Subject:   m.Subject,
			From:      m.From,
			FromName:  m.FromName,
			Date:      m.Sent,
			IsRead:    m.Seen,
			Body:      m.Body,
		}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("write poll log entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush poll log: %w", err)
	}
	return nil
}

// readPollLog streams the log file, invoking fn per parseable line. A
// corrupt line is reported through onError and skipped.
func readPollLog(path string, fn func(LogEntry) error, onError func(line int, err error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open poll log: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line := 0
	for {
		raw, err := r.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			var entry LogEntry
			if jsonErr := json.Unmarshal(raw, &entry); jsonErr != nil {
				onError(line, jsonErr)
			} else if fnErr := fn(entry); fnErr != nil {
				onError(line, fnErr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read poll log: %w", err)
		}
	}
}
