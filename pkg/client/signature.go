package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC signature on webhook deliveries.
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature checks a delivery body against the X-Webhook-Signature
// header value using the registration secret. Comparison is constant time.
func VerifySignature(secret string, body []byte, header string) bool {
	hexDigest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
