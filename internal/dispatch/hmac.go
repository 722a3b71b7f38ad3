package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the HMAC signature of outbound webhook bodies.
const SignatureHeader = "X-Semibot-Signature"

// SignBody computes the HMAC-SHA256 signature of a webhook body using the
// shared secret, in the conventional "sha256=<hex>" form.
func SignBody(secret, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches the body under the
// shared secret. Constant-time comparison prevents timing attacks.
func VerifySignature(secret, body []byte, signature string) bool {
	expected := SignBody(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
