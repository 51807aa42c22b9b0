// Package unit decodes and encodes the primitive cell of a CS store: a
// tagged, variable-length byte blob addressed by its absolute file offset.
package unit

import (
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// FlagCatalog marks the single root table reachable from the file header.
// No other unit in a valid store carries it.
const FlagCatalog uint32 = 0x40000000

// allFlags is the mask of bits reserved for flags in the id_and_flags word;
// the remaining bits hold the logical id.
const allFlags = FlagCatalog

// headerSize is the number of bytes preceding the payload: id_and_flags(4) + size(4).
const headerSize = 8

// ErrTruncated is returned when fewer than headerSize+len(payload) bytes remain.
var ErrTruncated = errors.New("unit: truncated")

// Unit is a decoded (id, flags, payload) triple.
//
// ID is the logical identifier: the raw on-disk field with the flag bits
// masked out, then left-shifted by 2 (ids are allocated in multiples of 4;
// the low two bits of the on-disk field are unused for ids).
type Unit struct {
	ID    uint32
	Flags uint32
	Data  []byte
}

// IsCatalog reports whether the unit carries the catalog flag.
func (u Unit) IsCatalog() bool {
	return u.Flags&FlagCatalog != 0
}

// Decode reads a Unit from data at the given absolute offset, returning the
// unit and the offset immediately following it.
func Decode(data []byte, offset int) (Unit, int, error) {
	if offset < 0 || offset+headerSize > len(data) {
		return Unit{}, 0, fmt.Errorf("%w: unit header at %#x", ErrTruncated, offset)
	}
	decoder := bin.NewBorshDecoder(data[offset : offset+headerSize])

	idAndFlags, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return Unit{}, 0, fmt.Errorf("unit: read id_and_flags at %#x: %w", offset, err)
	}
	size, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return Unit{}, 0, fmt.Errorf("unit: read size at %#x: %w", offset, err)
	}

	payloadStart := offset + headerSize
	payloadEnd := payloadStart + int(size)
	if payloadEnd < payloadStart || payloadEnd > len(data) {
		return Unit{}, 0, fmt.Errorf("%w: unit payload (%d bytes) at %#x", ErrTruncated, size, payloadStart)
	}

	u := Unit{
		ID:    (idAndFlags &^ allFlags) << 2,
		Flags: idAndFlags & allFlags,
		Data:  data[payloadStart:payloadEnd],
	}
	return u, payloadEnd, nil
}

// Encode serializes a Unit the way Decode expects to read it back.
func Encode(u Unit) []byte {
	out := make([]byte, headerSize+len(u.Data))
	idAndFlags := (u.ID>>2)&^allFlags | u.Flags&allFlags
	binary.LittleEndian.PutUint32(out[0:4], idAndFlags)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(u.Data)))
	copy(out[headerSize:], u.Data)
	return out
}
