package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignaturePrefix precedes the hex digest in signature headers
const SignaturePrefix = "sha256="

// SignPayload returns the "sha256=<hex>" HMAC-SHA256 signature of payload
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signatureHeader against the HMAC-SHA256 of payload.
// An empty secret disables verification and always returns true; callers are
// expected to have logged that insecure mode at startup.
func VerifySignature(payload []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return true
	}
	expected := SignPayload(payload, secret)
	return subtle.ConstantTimeCompare([]byte(signatureHeader), []byte(expected)) == 1
}
