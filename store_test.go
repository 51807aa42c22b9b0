package bdsl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenBadMagic(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, "xxxx\x02")
	_, err := Open(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenBadVersion(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, "bdsl\x01")
	_, err := Open(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestOpenMinimalStoreFromBuilder(t *testing.T) {
	b := NewBuilder()
	data, err := b.ToBytes()
	require.NoError(t, err)

	s, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Empty(t, s.Tables)
	require.False(t, s.HasStrings)
	require.True(t, s.Catalog.Unit.IsCatalog())
}

func TestOpenNotCatalog(t *testing.T) {
	// A valid header followed by a unit with no CATALOG flag.
	header := make([]byte, headerSize)
	copy(header, "bdsl\x02")

	payload := make([]byte, 4)
	unitBytes := append(le32(0), le32(uint32(len(payload)))...)
	unitBytes = append(unitBytes, payload...)

	data := append(header, unitBytes...)
	_, err := Open(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, err, ErrNotCatalog)
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return b
}
