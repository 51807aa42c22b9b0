// Package lsbinding decodes BindingList table entries and the packed-string
// codec used inline within binding values.
package lsbinding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/launchservices-oss/bdsl/lsstring"
	"github.com/launchservices-oss/bdsl/table"
)

// alphabet is the 64-symbol packed-string character set; index 0 is NUL.
const alphabet = "\x00 abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrBadStringId = errors.New("lsbinding: value does not resolve to a known string id")
var ErrBadPackedSymbol = errors.New("lsbinding: packed string contains a symbol outside the alphabet")
var ErrPackedTooLong = errors.New("lsbinding: string is longer than 5 characters and cannot be packed")

// Unpack decodes a packed-string word. Bit 0 of v is the discriminator and,
// per the on-disk encoding this mirrors, is also folded into the low bits
// that get shifted out of the first symbol's field; this is preserved
// exactly rather than "corrected".
func Unpack(v uint32) string {
	var raw [5]byte
	for i := 0; i < 5; i++ {
		sym := (v >> uint(2+6*i)) & 0x3F
		raw[i] = alphabet[sym]
	}
	s := strings.TrimRight(string(raw[:]), "\x00")
	return reverseString(s)
}

// Pack encodes s (at most 5 characters, all drawn from the packed-string
// alphabet) into a word with bit 0 set.
func Pack(s string) (uint32, error) {
	if len(s) > 5 {
		return 0, fmt.Errorf("%w: %q", ErrPackedTooLong, s)
	}
	padded := []byte(reverseString(s))
	for len(padded) < 5 {
		padded = append(padded, 0)
	}

	v := uint32(1)
	for i := 0; i < 5; i++ {
		sym := strings.IndexByte(alphabet, padded[i])
		if sym < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadPackedSymbol, padded[i])
		}
		v |= uint32(sym) << uint(2+6*i)
	}
	return v, nil
}

func reverseString(s string) string {
	r := []byte(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// Decode walks every entry in a BindingList table, resolving name and value
// string ids through strs, and unpacking any value word with its
// discriminator bit set.
func Decode(t table.Table, strs *lsstring.Container) (map[uint32]map[string][]string, error) {
	out := make(map[uint32]map[string][]string, len(t.Children))

	for key, u := range t.Children {
		entry, err := decodeEntry(u.Data, strs)
		if err != nil {
			return nil, fmt.Errorf("lsbinding: key %d: %w", key, err)
		}
		out[key] = entry
	}
	return out, nil
}

func decodeEntry(data []byte, strs *lsstring.Container) (map[string][]string, error) {
	pos := 0
	readU32 := func(what string) (uint32, error) {
		if pos+4 > len(data) {
			return 0, fmt.Errorf("truncated reading %s", what)
		}
		v := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		return v, nil
	}

	listCount, err := readU32("list_count")
	if err != nil {
		return nil, err
	}

	result := make(map[string][]string, listCount)
	for i := uint32(0); i < listCount; i++ {
		nameSid, err := readU32("name_string_id")
		if err != nil {
			return nil, err
		}
		name, err := strs.Get(nameSid)
		if err != nil {
			return nil, fmt.Errorf("%w: name id %d", ErrBadStringId, nameSid)
		}

		valueCount, err := readU32("value_count")
		if err != nil {
			return nil, err
		}

		values := make([]string, 0, valueCount)
		for j := uint32(0); j < valueCount; j++ {
			v, err := readU32("value")
			if err != nil {
				return nil, err
			}
			if v&1 == 1 {
				values = append(values, Unpack(v))
				continue
			}
			s, err := strs.Get(v)
			if err != nil {
				return nil, fmt.Errorf("%w: value id %d", ErrBadStringId, v)
			}
			values = append(values, s)
		}
		result[name] = values
	}
	return result, nil
}
