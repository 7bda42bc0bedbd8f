package piicodec

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestCodec_RoundTrip(t *testing.T) {
	c, err := New(testKey(1))
	require.NoError(t, err)

	sealed, err := c.Encrypt("Durand")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "Durand")

	again, err := c.Encrypt("Durand")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Durand", plain)
}

func TestCodec_RejectsTampering(t *testing.T) {
	c, err := New(testKey(1))
	require.NoError(t, err)
	other, err := New(testKey(2))
	require.NoError(t, err)

	sealed, err := c.Encrypt("secret@example.org")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNew_KeyLength(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)

	_, err = NewFromBase64("%%%")
	assert.Error(t, err)

	c, err := NewFromBase64(base64.StdEncoding.EncodeToString(testKey(3)))
	require.NoError(t, err)
	assert.NotNil(t, c)
}
