package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// WebhookSigner computes and checks keyed-hash signatures over canonicalized
// webhook payloads. Each gateway gets its own signer (own shared secret).
type WebhookSigner struct {
	key []byte
}

func NewWebhookSigner(secret string) (*WebhookSigner, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("webhook secret too short (%d bytes)", len(secret))
	}
	return &WebhookSigner{key: []byte(secret)}, nil
}

// Sign returns the hex HMAC-SHA256 of the canonical form of payload.
func (s *WebhookSigner) Sign(payload []byte) (string, error) {
	canon, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canon)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether sig is a valid signature for payload. It returns
// false on malformed input and never errors, so callers always get a definite
// accept/reject.
func (s *WebhookSigner) Verify(payload []byte, sig string) bool {
	want, err := s.Sign(payload)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	wantRaw, _ := hex.DecodeString(want)
	return subtle.ConstantTimeCompare(wantRaw, got) == 1
}

// Canonicalize re-marshals a JSON payload into its canonical compact form with
// lexically sorted object keys, so signatures survive whitespace and key-order
// differences between sender and receiver.
func Canonicalize(payload []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return json.Marshal(v)
}
