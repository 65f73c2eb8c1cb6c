package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{"a", "refresh-token-value", "ey.some.jwt-like/value+with=padding"} {
		encrypted, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, encrypted)

		decrypted, err := c.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCipherNonceFreshness(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	first, err := c.Encrypt("same-value")
	require.NoError(t, err)
	second, err := c.Encrypt("same-value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCipherTamperFailsClosed(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	encrypted, err := c.Encrypt("access-token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)

	// Flip one byte in the ciphertext/tag region
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(tampered)
	assert.Error(t, err)
}

func TestCipherRejectsBadKey(t *testing.T) {
	_, err := NewCipher(base64.StdEncoding.EncodeToString([]byte("short-key")))
	assert.Error(t, err)

	_, err = NewCipher("not base64!!")
	assert.Error(t, err)
}
