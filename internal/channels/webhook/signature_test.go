package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{"entry":[]}`)

	if !ValidSignature("topsecret", body, sign("topsecret", body)) {
		t.Error("valid signature rejected")
	}
	if ValidSignature("topsecret", body, sign("othersecret", body)) {
		t.Error("signature with wrong secret accepted")
	}
	if ValidSignature("topsecret", body, "sha256=nothex") {
		t.Error("non-hex signature accepted")
	}
	if ValidSignature("topsecret", body, "sha1=deadbeef") {
		t.Error("wrong prefix accepted")
	}
	if ValidSignature("topsecret", body, "") {
		t.Error("missing header accepted")
	}
}

func TestValidSignatureNoSecret(t *testing.T) {
	// Verification is disabled when no secret is configured.
	if !ValidSignature("", []byte("anything"), "") {
		t.Error("empty secret should skip verification")
	}
}
