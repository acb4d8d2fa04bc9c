package email

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPollLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_logs.txt")
	sent := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	messages := []Message{
		{UID: 1, MessageID: "<a@mail>", Subject: "[VITIGO-QUERY] Rash", From: "jan@example.com", FromName: "Jan", Body: "Body one", Sent: sent},
		{UID: 2, MessageID: "<b@mail>", Subject: "Newsletter", From: "promo@example.com", Body: "Body two", Sent: sent, Seen: true},
	}

	if err := writePollLog(path, messages); err != nil {
		t.Fatalf("writePollLog: %v", err)
	}

	var entries []LogEntry
	err := readPollLog(path, func(e LogEntry) error {
		entries = append(entries, e)
		return nil
	}, func(line int, err error) {
		t.Errorf("unexpected line error at %d: %v", line, err)
	})
	if err != nil {
		t.Fatalf("readPollLog: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].MessageID != "<a@mail>" || entries[0].Subject != "[VITIGO-QUERY] Rash" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if !entries[1].IsRead {
		t.Error("entry 1 should be marked read")
	}
	if !entries[0].Date.Equal(sent) {
		t.Errorf("entry 0 date = %v", entries[0].Date)
	}
}

func TestPollLogSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_logs.txt")
	content := `{"uid":1,"message_id":"<a@mail>","subject":"s","from":"f","date":"2026-03-14T09:30:00Z","body":"b"}
this line is not json
{"uid":3,"message_id":"<c@mail>","subject":"s","from":"f","date":"2026-03-14T09:31:00Z","body":"b"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var uids []int
	badLines := 0
	err := readPollLog(path, func(e LogEntry) error {
		uids = append(uids, e.UID)
		return nil
	}, func(line int, err error) {
		badLines++
		if line != 2 {
			t.Errorf("corrupt line reported at %d, want 2", line)
		}
	})
	if err != nil {
		t.Fatalf("readPollLog: %v", err)
	}

	if badLines != 1 {
		t.Errorf("badLines = %d, want 1", badLines)
	}
	if len(uids) != 2 || uids[0] != 1 || uids[1] != 3 {
		t.Errorf("uids = %v", uids)
	}
}

func TestPollLogTruncatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_logs.txt")
	if err := writePollLog(path, []Message{{UID: 1, MessageID: "<a@mail>"}, {UID: 2, MessageID: "<b@mail>"}}); err != nil {
		t.Fatal(err)
	}
	if err := writePollLog(path, []Message{{UID: 9, MessageID: "<z@mail>"}}); err != nil {
		t.Fatal(err)
	}

	count := 0
	err := readPollLog(path, func(e LogEntry) error {
		count++
		if e.UID != 9 {
			t.Errorf("uid = %d, want 9", e.UID)
		}
		return nil
	}, func(line int, err error) {
		t.Errorf("unexpected line error: %v", err)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("entries = %d, want 1", count)
	}
}
