// Package table decodes the per-table header every named table in a CS
// store shares: a fixed-size name and reserved region, a unit-id allocator
// cursor, and a pointer to the table's own hash map of child units.
//
// A Table owns a unit.Unit rather than extending it; the payload bytes after
// the header are handed back as Extra for the table-specific decoders
// (lsstring, lsarray, lsbinding, lsclaim, lsheader) to interpret.
package table

import (
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"

	"github.com/launchservices-oss/bdsl/hashmap"
	"github.com/launchservices-oss/bdsl/unit"
)

const (
	nameSize      = 48
	reservedSize  = 16
	headerSize    = nameSize + reservedSize + 4 + 4 // name + reserved + next_unit_id + hashmap_offset
	minNameHeader = nameSize + reservedSize
)

// ErrTruncatedPayload is returned when a unit's payload is too short to hold
// a table header.
var ErrTruncatedPayload = errors.New("table: truncated payload")

// Table is a decoded table header plus the hash map of units it owns.
type Table struct {
	Unit          unit.Unit
	Name          string
	NextUnitID    uint32
	HashmapOffset uint32
	Extra         []byte
	Children      map[uint32]unit.Unit
}

// Kind tags the known table names for dispatch, mirroring the way
// iplddecoders dispatches on a node's Kind byte rather than on its Go type.
type Kind int

const (
	KindRaw Kind = iota
	KindString
	KindArray
	KindBindingList
	KindClaim
	KindDBHeader
)

// KindOf maps a table name to its decoder tag. Names this package doesn't
// recognize decode fine as a Table but are left as KindRaw: callers outside
// the known schema can still walk Children and Extra themselves.
func KindOf(name string) Kind {
	switch name {
	case "<string>":
		return KindString
	case "<array>":
		return KindArray
	case "BindingList":
		return KindBindingList
	case "Claim":
		return KindClaim
	case "DB Header":
		return KindDBHeader
	default:
		return KindRaw
	}
}

// Decode parses u's payload as a table header. data is the whole store
// buffer, since HashmapOffset is an absolute offset into it, not relative to
// the unit's own payload.
func Decode(data []byte, u unit.Unit) (Table, error) {
	payload := u.Data
	if len(payload) < minNameHeader {
		return Table{}, fmt.Errorf("%w: got %d bytes, need at least %d for name+reserved", ErrTruncatedPayload, len(payload), minNameHeader)
	}

	decoder := bin.NewBorshDecoder(payload)

	nameBuf := make([]byte, nameSize)
	if _, err := decoder.Read(nameBuf); err != nil {
		return Table{}, fmt.Errorf("table: read name: %w", err)
	}
	name := strings.TrimRight(string(nameBuf), "\x00")

	reservedBuf := make([]byte, reservedSize)
	if _, err := decoder.Read(reservedBuf); err != nil {
		return Table{}, fmt.Errorf("%w: table %q has no room for reserved region", ErrTruncatedPayload, name)
	}

	nextRaw, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return Table{}, fmt.Errorf("%w: table %q missing next_unit_id", ErrTruncatedPayload, name)
	}
	hashmapOffset, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return Table{}, fmt.Errorf("%w: table %q missing hashmap_offset", ErrTruncatedPayload, name)
	}

	t := Table{
		Unit:          u,
		Name:          name,
		NextUnitID:    nextRaw << 2,
		HashmapOffset: hashmapOffset,
		Extra:         payload[headerSize:],
	}

	if hashmapOffset != 0 {
		children, err := hashmap.Read(data, int(hashmapOffset))
		if err != nil {
			return Table{}, fmt.Errorf("table %q: %w", name, err)
		}
		t.Children = children
	}

	return t, nil
}
