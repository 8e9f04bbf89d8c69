package dataformat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestAEADFormatRoundTrip(t *testing.T) {
	f, err := NewAEADFormat(testKey())
	require.NoError(t, err)

	payload := []byte(`{"identity":{"claims":[]}}`)
	blob, err := f.Protect(payload)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	decoded, ok := f.Unprotect(blob)
	require.True(t, ok)
	assert.True(t, bytes.Equal(payload, decoded))
}

func TestAEADFormatRejectsShortKey(t *testing.T) {
	_, err := NewAEADFormat([]byte("too-short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestAEADFormatTruncatesLongKey(t *testing.T) {
	longKey := append(testKey(), []byte("extra-bytes-beyond-32")...)
	f, err := NewAEADFormat(longKey)
	require.NoError(t, err)

	blob, err := f.Protect([]byte("payload"))
	require.NoError(t, err)

	// A format built from the truncated-to-32-bytes prefix must still
	// decrypt it.
	other, err := NewAEADFormat(testKey())
	require.NoError(t, err)
	decoded, ok := other.Unprotect(blob)
	require.True(t, ok)
	assert.Equal(t, "payload", string(decoded))
}

func TestAEADFormatUnprotectFailsOnTamperedBlob(t *testing.T) {
	f, err := NewAEADFormat(testKey())
	require.NoError(t, err)

	blob, err := f.Protect([]byte("payload"))
	require.NoError(t, err)

	tampered := blob[:len(blob)-2] + "zz"
	_, ok := f.Unprotect(tampered)
	assert.False(t, ok)
}

func TestAEADFormatUnprotectFailsOnInvalidBase64(t *testing.T) {
	f, err := NewAEADFormat(testKey())
	require.NoError(t, err)

	_, ok := f.Unprotect("not valid base64url!!")
	assert.False(t, ok)
}

func TestAEADFormatUnprotectFailsOnWrongKey(t *testing.T) {
	f, err := NewAEADFormat(testKey())
	require.NoError(t, err)
	blob, err := f.Protect([]byte("payload"))
	require.NoError(t, err)

	other, err := NewAEADFormat([]byte("10987654321098765432109876543210"))
	require.NoError(t, err)
	_, ok := other.Unprotect(blob)
	assert.False(t, ok)
}
