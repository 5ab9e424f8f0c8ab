package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hrm8/assistant/internal/cryptoutil"
)

const signaturePrefix = "hmac-sha256:"

// Signer creates and verifies HMAC-SHA256 signatures over audit entries.
type Signer struct {
	key []byte
}

// NewSigner creates a signer. The key must be at least 32 raw bytes or 64+
// hex characters decoding to at least 32 bytes.
func NewSigner(key string) (*Signer, error) {
	keyBytes, err := cryptoutil.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return &Signer{key: keyBytes}, nil
}

// Sign returns "hmac-sha256:<hex>" for data.
func (s *Signer) Sign(data []byte) string {
	h := hmac.New(sha256.New, s.key)
	h.Write(data)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// Verify checks signature against data in constant time.
func (s *Signer) Verify(data []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(data)), []byte(signature))
}
