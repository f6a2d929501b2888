package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"event":"charge.success","transaction_id":"txn_123"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		assert.True(t, VerifySignature(secret, payload, validSig))
	})

	t.Run("rejects a payload signed with a different secret", func(t *testing.T) {
		assert.False(t, VerifySignature("wrong_secret", payload, validSig))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		tampered := []byte(`{"event":"charge.success","transaction_id":"txn_999"}`)
		assert.False(t, VerifySignature(secret, tampered, validSig))
	})

	t.Run("rejects a non-hex signature instead of panicking", func(t *testing.T) {
		assert.False(t, VerifySignature(secret, payload, "not-hex-at-all"))
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		assert.False(t, VerifySignature(secret, payload, ""))
	})
}
