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
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestRoundTrip(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)
	require.NotNil(t, c)

	for _, plain := range []string{"help me", "многострочный\nтекст", "a"} {
		stored := c.Seal(plain)
		assert.NotEqual(t, plain, stored)

		out, ok := c.Open(stored)
		assert.True(t, ok)
		assert.Equal(t, plain, out)
	}
}

func TestDisabledCipherPassesThrough(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	require.Nil(t, c)

	assert.Equal(t, "plain text", c.Seal("plain text"))

	out, ok := c.Open("plain text")
	assert.True(t, ok)
	assert.Equal(t, "plain text", out)
}

func TestOpenReturnsRawOnFailure(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	// Not even base64.
	out, ok := c.Open("!!not-ciphertext!!")
	assert.False(t, ok)
	assert.Equal(t, "!!not-ciphertext!!", out)

	// Valid base64 but garbage content.
	garbage := base64.StdEncoding.EncodeToString(make([]byte, 64))
	out, ok = c.Open(garbage)
	assert.False(t, ok)
	assert.Equal(t, garbage, out)

	// Sealed under a different key.
	other, err := New(testKey(t))
	require.NoError(t, err)
	stored := other.Seal("secret")
	out, ok = c.Open(stored)
	assert.False(t, ok)
	assert.Equal(t, stored, out)
}

func TestEmptyContent(t *testing.T) {
	c, err := New(testKey(t))
	require.NoError(t, err)

	assert.Equal(t, "", c.Seal(""))
	out, ok := c.Open("")
	assert.True(t, ok)
	assert.Equal(t, "", out)
}

func TestBadKeys(t *testing.T) {
	_, err := New("not base64 at all ***")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = New(short)
	assert.Error(t, err)
}
