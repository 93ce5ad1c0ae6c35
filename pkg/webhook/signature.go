// Package webhook verifies HMAC-signed webhook payloads from the TOLA
// ledger service.
package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySignature checks signature against an HMAC-SHA256 of payload keyed
// by secret. The signature is hex-encoded, optionally prefixed with
// "sha256=" or "hmac-sha256=". A missing header, malformed signature and a
// mismatch are all reported identically as false so callers cannot be used
// as a signing oracle.
func VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha256=")
	signature = strings.TrimPrefix(signature, "hmac-sha256=")

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return hmac.Equal(mac.Sum(nil), provided)
}

// VerifyWithSecrets checks the signature against the current secret and,
// when set, a previous secret. The second secret exists so the shared
// secret can be rotated with an overlap window instead of a hard cutover.
func VerifyWithSecrets(payload []byte, signature, secret, previousSecret string) bool {
	if VerifySignature(payload, signature, secret) {
		return true
	}
	if previousSecret != "" {
		return VerifySignature(payload, signature, previousSecret)
	}
	return false
}

// Sign computes the hex-encoded HMAC-SHA256 signature for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateSecret produces a cryptographically random shared secret of n
// bytes, hex-encoded. n is clamped to a 32-byte minimum.
func GenerateSecret(n int) (string, error) {
	if n < 32 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
