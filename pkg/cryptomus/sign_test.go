package cryptomus

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignCanonicalForm(t *testing.T) {
	payload := []byte(`{"uuid":"pay-1","status":"paid"}`)
	key := []byte("secret")

	// hex(md5(base64(payload) + key)), computed independently.
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(payload) + string(key)))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, Sign(payload, key))
}

func TestSignDependsOnExactBytes(t *testing.T) {
	key := []byte("secret")

	a := Sign([]byte(`{"uuid":"pay-1"}`), key)
	b := Sign([]byte(`{"uuid": "pay-1"}`), key) // one extra space

	assert.NotEqual(t, a, b, "whitespace is part of the signed payload")
}

func TestVerifyWebhook(t *testing.T) {
	payload := []byte(`{"uuid":"pay-1","status":"paid"}`)
	key := []byte("secret")

	sig := Sign(payload, key)

	assert.True(t, VerifyWebhook(payload, sig, key))
	assert.False(t, VerifyWebhook(payload, sig, []byte("other-key")))
	assert.False(t, VerifyWebhook(payload, "not-a-signature", key))
	assert.False(t, VerifyWebhook([]byte(`{"uuid":"pay-2"}`), sig, key))
}

func TestStatusClassification(t *testing.T) {
	for _, s := range []string{StatusPaid, StatusPaidOver} {
		assert.True(t, IsPaid(s), s)
		assert.True(t, IsTerminal(s), s)
	}

	for _, s := range []string{StatusFail, StatusCancel, StatusSystemFail, StatusExpired} {
		assert.False(t, IsPaid(s), s)
		assert.True(t, IsTerminal(s), s)
	}

	for _, s := range []string{"check", "process", "confirm_check", ""} {
		assert.False(t, IsTerminal(s), s)
	}
}
