package secrets

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return hex.EncodeToString(key)
}

func TestSealOpenRoundtrip(t *testing.T) {
	sealer, err := NewSealer(testKey(0x42))
	require.NoError(t, err)

	for _, plaintext := range []string{"hunter2", "", "p@ss with spaces\nand newline"} {
		sealed, err := sealer.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := sealer.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestSealIsNondeterministic(t *testing.T) {
	sealer, err := NewSealer(testKey(0x42))
	require.NoError(t, err)

	a, err := sealer.Seal("secret")
	require.NoError(t, err)
	b, err := sealer.Seal("secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	sealer, err := NewSealer(testKey(0x01))
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)

	other, err := NewSealer(testKey(0x02))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestNewSealerRejectsBadKeys(t *testing.T) {
	_, err := NewSealer("not-hex")
	assert.Error(t, err)

	_, err = NewSealer(hex.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestOpenRejectsGarbage(t *testing.T) {
	sealer, err := NewSealer(testKey(0x42))
	require.NoError(t, err)

	_, err = sealer.Open("%%%")
	assert.Error(t, err)

	_, err = sealer.Open("c2hvcnQ=") // valid base64, too short for a nonce
	assert.Error(t, err)
}
