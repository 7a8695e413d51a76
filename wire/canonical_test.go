package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var digest [32]byte
	copy(digest[:], []byte("0123456789abcdef0123456789abcde"))

	enc := NewEncoder()
	enc.Uint64(42).Int64(-7).Bool(true).String("hello").Blob([]byte{1, 2, 3}).Digest32(digest)

	d := NewDecoder(enc.Bytes())
	u, err := d.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), u)

	i, err := d.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(-7), i)

	b, err := d.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	blob, err := d.Blob()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, blob)

	got, err := d.Digest32()
	require.NoError(t, err)
	assert.Equal(t, digest, got)

	assert.True(t, d.Done())
}

func TestDecodeTruncatedFields(t *testing.T) {
	d := NewDecoder([]byte{0, 0, 0})
	_, err := d.Uint64()
	assert.ErrorIs(t, err, ErrTruncated)

	d = NewDecoder([]byte{0, 0, 0, 5, 'a', 'b'})
	_, err = d.Blob()
	assert.ErrorIs(t, err, ErrTruncated)

	d = NewDecoder(nil)
	_, err = d.Digest32()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEmptyStringRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.String("")
	d := NewDecoder(enc.Bytes())
	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "", s)
	assert.True(t, d.Done())
}
