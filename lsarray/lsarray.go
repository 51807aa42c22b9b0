// Package lsarray decodes `<array>` table entries: a header word carrying an
// element count and a width flag, followed by that many fixed-width values.
package lsarray

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/launchservices-oss/bdsl/table"
)

// FlagFull selects 4-byte elements; when clear, elements are 2 bytes wide.
const FlagFull uint32 = 0x20000000

// countMask keeps everything but the top 3 bits, which carry flags.
const countMask uint32 = 0x1FFFFFFF

var ErrUnknownEntry = errors.New("lsarray: no entry for key")
var ErrBadCount = errors.New("lsarray: payload too short for declared element count")

// Decode fetches key's entry from t and returns its elements widened to
// uint32 regardless of the on-disk width.
func Decode(t table.Table, key uint32) ([]uint32, error) {
	u, ok := t.Children[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntry, key)
	}

	if len(u.Data) < 4 {
		return nil, fmt.Errorf("%w: header missing for key %d", ErrBadCount, key)
	}
	header := binary.LittleEndian.Uint32(u.Data[0:4])
	full := header&FlagFull != 0
	count := header & countMask

	width := 2
	if full {
		width = 4
	}
	need := 4 + int(count)*width
	if len(u.Data) < need {
		return nil, fmt.Errorf("%w: key %d needs %d bytes, has %d", ErrBadCount, key, need, len(u.Data))
	}

	out := make([]uint32, count)
	body := u.Data[4:need]
	for i := uint32(0); i < count; i++ {
		if full {
			out[i] = binary.LittleEndian.Uint32(body[i*4 : i*4+4])
		} else {
			out[i] = uint32(binary.LittleEndian.Uint16(body[i*2 : i*2+2]))
		}
	}
	return out, nil
}
