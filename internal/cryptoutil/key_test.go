package cryptoutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKey(t *testing.T) {
	hexKey := "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	tests := []struct {
		name    string
		in      string
		wantLen int
		tooShort bool
	}{
		{"64 hex chars decode to 32 bytes", hexKey, 32, false},
		{"uppercase hex decodes", strings.ToUpper(hexKey), 32, false},
		{"128 hex chars decode to 64 bytes", hexKey + hexKey, 64, false},
		{"odd-length hex is raw", hexKey + "a", 65, false},
		{"non-hex 64 chars is raw", strings.Repeat("z", 64), 64, false},
		{"32 raw bytes", strings.Repeat("k", 32), 32, false},
		{"empty", "", 0, true},
		{"31 raw bytes", strings.Repeat("k", 31), 0, true},
		{"short hex is raw and too short", "deadbeef", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeKey(tt.in)
			if tt.tooShort {
				assert.ErrorIs(t, err, ErrKeyTooShort)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestDecodeKey_HexValue(t *testing.T) {
	got, err := DecodeKey(strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), got[0])
	assert.Equal(t, byte(0xab), got[31])
}
