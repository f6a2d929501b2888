package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature computes HMAC-SHA256(secret, rawPayload) and compares it
// against the provider-supplied hex digest in constant time. Unlike the
// teacher's VNPay signature check (which compares with strings.EqualFold),
// hmac.Equal never short-circuits on the first differing byte, closing the
// timing side-channel §8 requires a test for.
func VerifySignature(secret string, rawPayload []byte, signatureHex string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawPayload)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	return hmac.Equal(expected, got)
}
