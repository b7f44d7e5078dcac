package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the gateway's HMAC of the request body.
const SignatureHeader = "X-Gateway-Signature"

// VerifySignature checks the hex-encoded HMAC-SHA256 of body against the
// shared secret in constant time. An empty secret disables verification;
// that is the gateway's default for unconfigured accounts and is only
// acceptable outside production.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
