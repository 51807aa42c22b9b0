package lsarray

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/launchservices-oss/bdsl/table"
	"github.com/launchservices-oss/bdsl/unit"
)

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func concat(bs ...[]byte) []byte {
	var out []byte
	for _, b := range bs {
		out = append(out, b...)
	}
	return out
}

func TestDecodeCompactWidth(t *testing.T) {
	data := concat(le32(3), le16(10), le16(20), le16(30))
	tbl := table.Table{Children: map[uint32]unit.Unit{1: {Data: data}}}

	got, err := Decode(tbl, 1)
	require.NoError(t, err)
	require.Equal(t, []uint32{10, 20, 30}, got)
}

func TestDecodeFullWidth(t *testing.T) {
	data := concat(le32(3|FlagFull), le32(100), le32(200), le32(300))
	tbl := table.Table{Children: map[uint32]unit.Unit{1: {Data: data}}}

	got, err := Decode(tbl, 1)
	require.NoError(t, err)
	require.Equal(t, []uint32{100, 200, 300}, got)
}

func TestDecodeBadCount(t *testing.T) {
	data := concat(le32(3), le16(10)) // claims 3 elements, only has 1
	tbl := table.Table{Children: map[uint32]unit.Unit{1: {Data: data}}}

	_, err := Decode(tbl, 1)
	require.ErrorIs(t, err, ErrBadCount)
}

func TestDecodeUnknownEntry(t *testing.T) {
	tbl := table.Table{Children: map[uint32]unit.Unit{}}
	_, err := Decode(tbl, 5)
	require.ErrorIs(t, err, ErrUnknownEntry)
}
