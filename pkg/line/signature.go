package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the platform's webhook signature.
const SignatureHeader = "X-Line-Signature"

// VerifySignature reports whether header is a valid signature of body under
// the channel secret.
//
// The platform computes HMAC-SHA256 over the exact raw request body and
// sends the base64-encoded digest. Verification must therefore run over the
// bytes as received; re-serializing the JSON would change them and break the
// signature. The digest comparison is constant time. A missing or malformed
// header is reported as invalid, never as an error.
func VerifySignature(secret, body []byte, header string) bool {
	if len(secret) == 0 || header == "" {
		return false
	}

	claimed, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), claimed)
}

// Sign returns the signature the platform would send for body. Used by tests
// and webhook tooling.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
