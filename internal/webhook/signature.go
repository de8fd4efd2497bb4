// Package webhook manages delivery registrations and dispatches signed
// resource events to subscriber endpoints.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the payload signature on deliveries.
const SignatureHeader = "X-Webhook-Signature"

// Sign computes the delivery signature for body: "sha256=" + hex HMAC-SHA256.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
