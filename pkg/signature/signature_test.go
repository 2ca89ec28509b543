package signature_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/webhooks/pkg/signature"
)

func TestSign(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event_type":"ticket.created","data":{"id":42}}`)
	secret := "whsec_test_secret_123"

	sig := signature.Sign(payload, secret)
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)

	// Deterministic: same inputs, same output.
	assert.Equal(t, sig, signature.Sign(payload, secret))

	// Different secret produces a different signature.
	assert.NotEqual(t, sig, signature.Sign(payload, "whsec_other_secret"))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event":"test"}`)
	secret := "whsec_test_secret_123"
	sig := signature.Sign(payload, secret)

	assert.True(t, signature.Verify(payload, secret, sig))

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		tampered := append([]byte(nil), payload...)
		tampered[0] ^= 0x01
		assert.False(t, signature.Verify(tampered, secret, sig))
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		assert.False(t, signature.Verify(payload, "whsec_wrong", sig))
	})

	t.Run("tampered signature", func(t *testing.T) {
		t.Parallel()
		assert.False(t, signature.Verify(payload, secret, sig[:len(sig)-1]+"0"))
		assert.False(t, signature.Verify(payload, secret, ""))
	})
}

func TestGenerateSecret(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		secret := signature.GenerateSecret()
		require.True(t, strings.HasPrefix(secret, "whsec_"))
		require.Len(t, secret, 70) // "whsec_" (6) + 64 hex chars
		require.False(t, seen[secret], "generated secrets must not repeat")
		seen[secret] = true
	}
}
