package crypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := New("correct horse battery staple")
	require.NoError(t, err)

	encrypted, err := c.Encrypt("s3cret-access-key")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, Prefix))
	assert.NotContains(t, encrypted, "s3cret")

	decrypted, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-access-key", decrypted)
}

func TestCipherUniqueCiphertexts(t *testing.T) {
	c, err := New("passphrase")
	require.NoError(t, err)

	first, err := c.Encrypt("same value")
	require.NoError(t, err)
	second, err := c.Encrypt("same value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "random salt and nonce must vary per encryption")
}

func TestCipherPlaintextPassthrough(t *testing.T) {
	c, err := New("passphrase")
	require.NoError(t, err)

	// Values without the prefix are legacy plaintext settings.
	got, err := c.Decrypt("plain-api-key")
	require.NoError(t, err)
	assert.Equal(t, "plain-api-key", got)
}

func TestCipherEncryptIsIdempotent(t *testing.T) {
	c, err := New("passphrase")
	require.NoError(t, err)

	once, err := c.Encrypt("value")
	require.NoError(t, err)
	twice, err := c.Encrypt(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestCipherWrongPassphrase(t *testing.T) {
	c1, err := New("first passphrase")
	require.NoError(t, err)
	c2, err := New("second passphrase")
	require.NoError(t, err)

	encrypted, err := c1.Encrypt("secret")
	require.NoError(t, err)

	_, err = c2.Decrypt(encrypted)
	assert.Error(t, err, "GCM authentication must reject a wrong passphrase")
}

func TestCipherMalformedValues(t *testing.T) {
	c, err := New("passphrase")
	require.NoError(t, err)

	for _, value := range []string{
		Prefix + "not-base64!!!",
		Prefix + "c2hvcnQ=", // too short for salt + nonce
		Prefix,
	} {
		_, err := c.Decrypt(value)
		assert.Error(t, err, "value %q should be rejected", value)
	}
}

func TestNewRejectsEmptyPassphrase(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted(Prefix+"abc"))
	assert.False(t, IsEncrypted("abc"))
	assert.False(t, IsEncrypted(""))
}
