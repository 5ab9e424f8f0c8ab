// Package cryptoutil decodes the HMAC keys used for audit signatures and
// actor tokens.
package cryptoutil

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// MinKeyBytes is the shortest key material accepted for HMAC-SHA256.
const MinKeyBytes = 32

// ErrKeyTooShort is returned when a key yields fewer than MinKeyBytes bytes.
var ErrKeyTooShort = errors.New("key too short")

// DecodeKey returns the key material for key. An even-length string of at
// least 2*MinKeyBytes hex characters is decoded; anything else is used as raw
// bytes and must be at least MinKeyBytes long.
func DecodeKey(key string) ([]byte, error) {
	if len(key) >= 2*MinKeyBytes && len(key)%2 == 0 {
		if decoded, err := hex.DecodeString(key); err == nil {
			return decoded, nil
		}
	}
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("%w: got %d bytes, need %d raw bytes or %d hex characters",
			ErrKeyTooShort, len(key), MinKeyBytes, 2*MinKeyBytes)
	}
	return []byte(key), nil
}
