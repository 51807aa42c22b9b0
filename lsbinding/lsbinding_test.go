package lsbinding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/launchservices-oss/bdsl/lsstring"
	"github.com/launchservices-oss/bdsl/table"
	"github.com/launchservices-oss/bdsl/unit"
)

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

func TestUnpackEmptyWord(t *testing.T) {
	require.Equal(t, "", Unpack(1))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "hi", "txt", "abcde"} {
		v, err := Pack(s)
		require.NoError(t, err)
		require.Equal(t, uint32(1), v&1)
		require.Equal(t, s, Unpack(v))
	}
}

func TestPackTooLong(t *testing.T) {
	_, err := Pack("toolong")
	require.ErrorIs(t, err, ErrPackedTooLong)
}

// stringContainer builds a minimal <string> table + refcount hashmap with one
// entry per string so lsstring.Container.Get resolves each of them.
func stringContainer(t *testing.T, entries map[uint32]string) *lsstring.Container {
	t.Helper()

	children := make(map[uint32]unit.Unit, len(entries))
	for id, s := range entries {
		children[id] = unit.Unit{ID: id, Data: []byte(s)}
	}

	// Refcount hashmap: one bucket holding one entry per string, each word
	// set to count=1, hint unset.
	bucketsOff := 4
	entriesOff := bucketsOff + 8
	unitsOff := entriesOff + len(entries)*8

	data := make([]byte, 0, unitsOff+64)
	data = append(data, le32(1)...)
	data = append(data, le32(uint32(len(entries)))...)
	data = append(data, le32(uint32(entriesOff))...)

	unitBytes := make([]byte, 0)
	offsets := make(map[uint32]int)
	cursor := unitsOff
	for id := range entries {
		u := unit.Encode(unit.Unit{ID: id, Data: []byte{1, 0}})
		offsets[id] = cursor
		unitBytes = append(unitBytes, u...)
		cursor += len(u)
	}
	for id := range entries {
		data = append(data, le32(id)...)
		data = append(data, le32(uint32(offsets[id]))...)
	}
	data = append(data, unitBytes...)

	tbl := table.Table{
		Name:     "<string>",
		Extra:    le32(0),
		Children: children,
	}
	c, err := lsstring.NewContainer(data, tbl)
	require.NoError(t, err)
	return c
}

func TestDecodeResolvesNamesAndMixedValues(t *testing.T) {
	strs := stringContainer(t, map[uint32]string{1: "ext", 2: "plain"})

	packedTxt, err := Pack("txt")
	require.NoError(t, err)

	entryPayload := concat(
		le32(1),         // list_count
		le32(1),         // name_string_id -> "ext"
		le32(2),         // value_count
		le32(packedTxt), // packed "txt"
		le32(2),         // string id -> "plain"
	)

	tbl := table.Table{
		Children: map[uint32]unit.Unit{
			10: {Data: entryPayload},
		},
	}

	got, err := Decode(tbl, strs)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"ext": {"txt", "plain"}}, got[10])
}

func TestDecodeBadStringId(t *testing.T) {
	strs := stringContainer(t, map[uint32]string{1: "ext"})

	entryPayload := concat(
		le32(1),
		le32(999), // unknown name id
		le32(0),
	)
	tbl := table.Table{Children: map[uint32]unit.Unit{10: {Data: entryPayload}}}

	_, err := Decode(tbl, strs)
	require.ErrorIs(t, err, ErrBadStringId)
}
