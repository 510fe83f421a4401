package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewWebhookSigner("0123456789abcdef")
	require.NoError(t, err)

	payload := []byte(`{"event_id":"ev-1","charge_id":"ch-1","status":"CAPTURED"}`)
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	assert.True(t, s.Verify(payload, sig))
}

func TestVerifySurvivesKeyOrderAndWhitespace(t *testing.T) {
	s, err := NewWebhookSigner("0123456789abcdef")
	require.NoError(t, err)

	sig, err := s.Sign([]byte(`{"a":1,"b":"x"}`))
	require.NoError(t, err)
	assert.True(t, s.Verify([]byte(`{ "b": "x", "a": 1 }`), sig))
}

func TestVerifyRejects(t *testing.T) {
	s, err := NewWebhookSigner("0123456789abcdef")
	require.NoError(t, err)
	other, err := NewWebhookSigner("fedcba9876543210")
	require.NoError(t, err)

	payload := []byte(`{"a":1}`)
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	assert.False(t, s.Verify([]byte(`{"a":2}`), sig), "tampered payload")
	otherSig, err := other.Sign(payload)
	require.NoError(t, err)
	assert.False(t, s.Verify(payload, otherSig), "wrong key")
	assert.False(t, s.Verify(payload, "not-hex"), "malformed signature")
	assert.False(t, s.Verify([]byte(`not json`), sig), "unparseable payload")
}

func TestSignerRejectsShortSecret(t *testing.T) {
	_, err := NewWebhookSigner("short")
	assert.Error(t, err)
}
