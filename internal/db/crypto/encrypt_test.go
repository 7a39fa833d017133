package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"api token", "sk-live-4242424242"},
		{"credential json", `{"host":"db.example.com","password":"hunter2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, ciphertext)

			decrypted, err := enc.Decrypt(ciphertext)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestEncryptor_NonceVariation(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	c1, err := enc.Encrypt("same-credentials")
	require.NoError(t, err)
	c2, err := enc.Encrypt("same-credentials")
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "a fresh nonce should make ciphertexts differ")
}

func TestEncryptor_WrongKeyFails(t *testing.T) {
	enc1, err := NewEncryptor(testKey)
	require.NoError(t, err)
	enc2, err := NewEncryptor(strings.Repeat("ab", 32))
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestEncryptor_BadInput(t *testing.T) {
	_, err := NewEncryptor("tooshort")
	require.Error(t, err)

	_, err = NewEncryptor("zz" + testKey[2:])
	require.Error(t, err)

	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = enc.Decrypt("not-hex")
	require.Error(t, err)

	_, err = enc.Decrypt("abcd")
	require.Error(t, err)
}
