package email

import "testing"

func TestMessageIDPrefersHeader(t *testing.T) {
	cases := []struct {
		name   string
		header string
		uid    int
		want   string
	}{
		{"header present", "<abc@mail.example.com>", 42, "<abc@mail.example.com>"},
		{"header padded", "  <abc@mail.example.com> ", 42, "<abc@mail.example.com>"},
		{"header missing", "", 42, "<imap-42@imap.example.com>"},
		{"header blank", "   ", 7, "<imap-7@imap.example.com>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := messageID(tc.header, tc.uid, "imap.example.com"); got != tc.want {
				t.Errorf("messageID(%q, %d) = %q, want %q", tc.header, tc.uid, got, tc.want)
			}
		})
	}
}
