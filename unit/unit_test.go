package unit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func concatBytes(bs ...[]byte) []byte {
	var out []byte
	for _, b := range bs {
		out = append(out, b...)
	}
	return out
}

func TestDecodePlainUnit(t *testing.T) {
	// id=8 (on-disk field 2, since 2<<2==8), no flags, payload "hi"
	buf := concatBytes(
		[]byte{2, 0, 0, 0},
		[]byte{2, 0, 0, 0},
		[]byte("hi"),
	)
	u, next, err := Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(8), u.ID)
	require.Equal(t, uint32(0), u.Flags)
	require.Equal(t, []byte("hi"), u.Data)
	require.Equal(t, len(buf), next)
	require.False(t, u.IsCatalog())
}

func TestDecodeCatalogFlag(t *testing.T) {
	idAndFlags := uint32(3) | FlagCatalog
	buf := concatBytes(
		leUint32(idAndFlags),
		leUint32(0),
	)
	u, _, err := Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(12), u.ID)
	require.Equal(t, FlagCatalog, u.Flags)
	require.True(t, u.IsCatalog())
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3}, 0)
	require.ErrorIs(t, err, ErrTruncated)

	buf := concatBytes(leUint32(0), leUint32(10), []byte("short"))
	_, _, err = Decode(buf, 0)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Unit{
		{ID: 0, Flags: 0, Data: nil},
		{ID: 4, Flags: 0, Data: []byte("a")},
		{ID: 400, Flags: FlagCatalog, Data: []byte("catalog payload")},
	}
	for _, want := range cases {
		encoded := Encode(want)
		got, next, err := Decode(encoded, 0)
		require.NoError(t, err)
		require.Equal(t, len(encoded), next)
		require.Equal(t, want.ID, got.ID)
		require.Equal(t, want.Flags, got.Flags)
		if len(want.Data) == 0 {
			require.Empty(t, got.Data)
		} else {
			require.Equal(t, want.Data, got.Data)
		}
	}
}

func leUint32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
