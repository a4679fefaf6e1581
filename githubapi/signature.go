package githubapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks a GitHub webhook signature header ("sha256=" plus
// lowercase hex) against the HMAC-SHA256 of the raw, unparsed body. The
// comparison is constant time and independent of where a mismatch occurs.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
