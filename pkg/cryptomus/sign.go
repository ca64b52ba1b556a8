package cryptomus

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// Sign computes the gateway's request/webhook signature over the exact
// payload bytes: hex(md5(base64(payload) + apiKey)). The base64 step is part
// of the gateway's documented canonical form and must not be skipped.
func Sign(payload []byte, apiKey []byte) string {
	encoded := base64.StdEncoding.EncodeToString(payload)

	h := md5.New()
	h.Write([]byte(encoded))
	h.Write(apiKey)

	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks an inbound webhook signature against the raw received
// body in constant time. The body must be the exact bytes the gateway signed,
// before any JSON re-encoding.
func VerifyWebhook(payload []byte, signature string, apiKey []byte) bool {
	expected := Sign(payload, apiKey)

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
