package service

import (
	"strings"
	"testing"
)

func TestGeneratePasswordMinimumLength(t *testing.T) {
	pw, err := GeneratePassword(4)
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	if len(pw) < 12 {
		t.Fatalf("password length = %d, want >= 12", len(pw))
	}
}

func TestGeneratePasswordCharacterClasses(t *testing.T) {
	for i := 0; i < 25; i++ {
		pw, err := GeneratePassword(16)
		if err != nil {
			t.Fatalf("GeneratePassword: %v", err)
		}
		if len(pw) != 16 {
			t.Fatalf("password length = %d, want 16", len(pw))
		}
		for _, class := range []string{passwordLower, passwordUpper, passwordDigit, passwordPunct} {
			if !strings.ContainsAny(pw, class) {
				t.Fatalf("password %q missing a character from %q", pw, class)
			}
		}
	}
}

func TestGeneratePasswordUnique(t *testing.T) {
	a, err := GeneratePassword(16)
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	b, err := GeneratePassword(16)
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	if a == b {
		t.Fatalf("two generated passwords are identical: %q", a)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name        string
		countryCode string
		raw         string
		wantCode    string
		wantNumber  string
	}{
		{"empty", "", "", "", ""},
		{"full e164", "", "+919812345678", "+91", "9812345678"},
		{"bare national defaults to india", "", "9812345678", "+91", "9812345678"},
		{"explicit country code", "+91", "9812345678", "+91", "9812345678"},
		{"spaces and dashes", "", "+91 98123-45678", "+91", "9812345678"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, number := normalizePhone(tc.countryCode, tc.raw)
			if code != tc.wantCode || number != tc.wantNumber {
				t.Errorf("normalizePhone(%q, %q) = (%q, %q), want (%q, %q)",
					tc.countryCode, tc.raw, code, number, tc.wantCode, tc.wantNumber)
			}
		})
	}
}
