package event

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix is the algorithm prefix Doclayer puts in front of the
// hex digest in the X-Webhook-Signature header.
const SignaturePrefix = "sha256="

// Sign computes the webhook signature for a raw request body, in the same
// header format Doclayer sends: "sha256=<hex hmac-sha256 digest>".
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an inbound signature header against the raw body.
// The body must be the exact bytes as received; re-serializing parsed JSON
// before verifying breaks the signature.
//
// A header without the "sha256=" prefix never matches. Comparison is
// constant-time.
func VerifySignature(body []byte, header, secret string) bool {
	if !strings.HasPrefix(header, SignaturePrefix) {
		return false
	}

	got := strings.TrimPrefix(header, SignaturePrefix)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(want), []byte(got))
}
