// Package signature verifies X-Hub-Signature-256 payload signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is the transport-defined scheme prefix carried by the header value.
const Prefix = "sha256="

// Verifier checks HMAC-SHA256 signatures over raw webhook bodies.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared app secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify reports whether header is a valid signature for body. It returns
// false on an empty header, an unconfigured secret, or a mismatch; it never
// errors. The digest comparison is constant-time.
func (v *Verifier) Verify(body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" || len(v.secret) == 0 {
		return false
	}
	header = strings.TrimPrefix(header, Prefix)

	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Sign computes the header value for body, including the scheme prefix.
// Used by tests and the local test endpoint.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}
