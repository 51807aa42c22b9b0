// Package lsheader decodes the `DB Header` table's extra region: a schema
// version, a terminated sequence of key/zero pairs, and two fixed-width
// NUL-padded strings identifying the build and device model.
package lsheader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	buildSize = 0x10
	modelSize = 0x20
)

var ErrTruncated = errors.New("lsheader: extra is too short")

// Header is the decoded `DB Header` table.
type Header struct {
	Schema       uint32
	HeaderLength uint32
	Keys         []uint32
	Build        string
	Model        string
}

// Decode parses extra per the DB Header layout: schema(4), header_length(4),
// then key/zero 8-byte pairs until either header_length bytes have been
// consumed or a key with bit 0x0F000000 set is read, followed by a 16-byte
// build string and a 32-byte model string.
func Decode(extra []byte) (Header, error) {
	if len(extra) < 8 {
		return Header{}, fmt.Errorf("%w: got %d bytes, need at least 8 for schema+header_length", ErrTruncated, len(extra))
	}

	h := Header{
		Schema:       binary.LittleEndian.Uint32(extra[0:4]),
		HeaderLength: binary.LittleEndian.Uint32(extra[4:8]),
	}

	pos := 8
	for uint32(pos) < h.HeaderLength {
		if pos+8 > len(extra) {
			return Header{}, fmt.Errorf("%w: key/zero pair at %#x", ErrTruncated, pos)
		}
		key := binary.LittleEndian.Uint32(extra[pos : pos+4])
		pos += 8 // key + the zero word, which is never interpreted further

		h.Keys = append(h.Keys, key)
		if key&0x0F000000 != 0 {
			break
		}
	}

	if pos+buildSize+modelSize > len(extra) {
		return Header{}, fmt.Errorf("%w: build/model strings starting at %#x", ErrTruncated, pos)
	}
	h.Build = trimNul(extra[pos : pos+buildSize])
	pos += buildSize
	h.Model = trimNul(extra[pos : pos+modelSize])

	return h, nil
}

func trimNul(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
