// Package webhook authenticates inbound provider deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// DefaultSignatureHeader is the header the provider signs deliveries with.
const DefaultSignatureHeader = "X-Helius-Signature"

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of the exact raw body.
// It never errors: an empty secret, an empty signature or a length mismatch
// all yield false. Hex case is ignored.
func Verify(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(body, secret)
	supplied := strings.ToLower(strings.TrimSpace(signature))
	if len(supplied) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) == 1
}

// ExtractSignature returns the first value of the named header, matching the
// name case-insensitively. ok is false when the header is absent or empty.
func ExtractSignature(h http.Header, name string) (string, bool) {
	if name == "" {
		name = DefaultSignatureHeader
	}
	if values := h.Values(name); len(values) > 0 && values[0] != "" {
		return values[0], true
	}
	// Headers set on the map directly bypass canonicalisation.
	for key, values := range h {
		if strings.EqualFold(key, name) && len(values) > 0 && values[0] != "" {
			return values[0], true
		}
	}
	return "", false
}
