package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// secretPrefix identifies Opsdesk webhook signing secrets at a glance,
// similar to Stripe's whsec_ convention.
const secretPrefix = "whsec_"

// secretBytes is the raw entropy of a generated secret.
const secretBytes = 32

// Sign computes an HMAC-SHA256 signature over the exact payload bytes.
// The result is rendered as "sha256=<hex>". Deterministic: the same
// payload and secret always produce the same signature.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature for payload and compares it against sig
// in constant time.
func Verify(payload []byte, secret, sig string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// GenerateSecret returns a new signing secret: 32 random bytes from the
// platform CSPRNG, hex-encoded and prefixed with "whsec_" (70 characters
// total).
func GenerateSecret() string {
	b := make([]byte, secretBytes)
	rand.Read(b) // never fails (crypto/rand contract since Go 1.24)
	return secretPrefix + hex.EncodeToString(b)
}
