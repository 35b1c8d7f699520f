package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVault_AESRoundTrip(t *testing.T) {
	v, err := NewFactory(Config{Provider: "aes", AESKey: "local-dev-key"})
	require.NoError(t, err)

	sealed, err := SealString(v, "whsec_123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "whsec_123")

	opened, err := OpenString(v, sealed)
	require.NoError(t, err)
	assert.Equal(t, "whsec_123", opened)
}

func TestVault_WrongKeyFails(t *testing.T) {
	a, err := NewFactory(Config{AESKey: "key-a"})
	require.NoError(t, err)
	b, err := NewFactory(Config{AESKey: "key-b"})
	require.NoError(t, err)

	sealed, err := a.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = a.Decrypt([]byte("not-json"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestVault_Factory(t *testing.T) {
	_, err := NewFactory(Config{Provider: "aes"})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewFactory(Config{Provider: "kms", AESKey: "k"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
