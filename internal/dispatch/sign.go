package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the payload signature on outbound deliveries.
const SignatureHeader = "X-Webhook-Signature"

// Sign computes the signature header value for a payload:
// "sha256=" followed by the hex HMAC-SHA256 of the raw body.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header value against the
// payload.
func VerifySignature(secret string, payload []byte, header string) bool {
	return hmac.Equal([]byte(header), []byte(Sign(secret, payload)))
}
