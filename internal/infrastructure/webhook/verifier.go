package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// Verifier checks HMAC-SHA256 signatures over raw webhook payloads.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for one signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of the payload.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a hex-encoded signature against the payload. The comparison
// is constant-time.
func (v *Verifier) Verify(payload []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: signature is empty", domain.ErrInvalidSignature)
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not valid hex", domain.ErrInvalidSignature)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(expected, mac.Sum(nil)) {
		return domain.ErrInvalidSignature
	}
	return nil
}
