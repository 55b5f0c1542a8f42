package webhook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v := NewVerifier("s")
	payload := []byte(`{"a":1}`)

	require.NoError(t, v.Verify(payload, v.Sign(payload)))
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	v := NewVerifier("s")
	payload := []byte(`{"a":1}`)

	err := v.Verify(payload, NewVerifier("other-secret").Sign(payload))
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	v := NewVerifier("s")
	sig := v.Sign([]byte(`{"a":1}`))

	err := v.Verify([]byte(`{"a":2}`), sig)
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}

func TestVerifyRejectsEmptyAndMalformedSignatures(t *testing.T) {
	v := NewVerifier("s")
	payload := []byte(`{"a":1}`)

	assert.True(t, errors.Is(v.Verify(payload, ""), domain.ErrInvalidSignature))
	assert.True(t, errors.Is(v.Verify(payload, "not-hex!!"), domain.ErrInvalidSignature))
}
