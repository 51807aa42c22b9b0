package bdsl

import (
	"encoding/binary"
	"errors"

	"github.com/launchservices-oss/bdsl/hashmap"
	"github.com/launchservices-oss/bdsl/unit"
)

// builderState tracks the writer's one-way lifecycle: empty ->
// receivingUnits on the first StoreUnit call -> serialized on ToBytes.
// There is no transition back.
type builderState int

const (
	builderEmpty builderState = iota
	builderReceivingUnits
	builderSerialized
)

// catalogBuckets is the number of empty buckets emitted in the catalog's
// hash map. Populating buckets with real entries is deferred; a store
// built this way always decodes back to zero child tables.
const catalogBuckets = 1024

// catalogTableHeaderSize is name(48) + reserved(16) + next_unit_id(4) +
// hashmap_offset(4), with no extra region.
const catalogTableHeaderSize = 48 + 16 + 4 + 4

var ErrAlreadySerialized = errors.New("bdsl: builder already serialized")

// Builder assembles a minimal CS store: a valid header and a catalog unit
// with an empty hash map. It does not yet support populating the catalog
// with real table entries.
type Builder struct {
	state builderState
	units []unit.Unit
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{state: builderEmpty}
}

// StoreUnit records a unit for future inclusion in the store. It is kept
// for forward compatibility with a catalog that actually populates its
// buckets; ToBytes does not yet serialize these units into the catalog's
// hash map.
func (b *Builder) StoreUnit(id uint32, flags uint32, data []byte) error {
	if b.state == builderSerialized {
		return ErrAlreadySerialized
	}
	b.state = builderReceivingUnits
	b.units = append(b.units, unit.Unit{ID: id, Flags: flags, Data: data})
	return nil
}

// ToBytes serializes the store: header, then a catalog unit whose hash map
// has catalogBuckets empty buckets. Once called, the Builder moves to its
// terminal state and further StoreUnit calls fail.
func (b *Builder) ToBytes() ([]byte, error) {
	if b.state == builderSerialized {
		return nil, ErrAlreadySerialized
	}
	b.state = builderSerialized

	const unitHeaderSize = 8 // id_and_flags:4 + size:4, per unit.Decode
	hashmapOffset := headerSize + unitHeaderSize + catalogTableHeaderSize

	tablePayload := make([]byte, catalogTableHeaderSize)
	// name and reserved regions stay zero: the catalog carries no name.
	binary.LittleEndian.PutUint32(tablePayload[64:68], 0) // next_unit_id_raw
	binary.LittleEndian.PutUint32(tablePayload[68:72], uint32(hashmapOffset))

	catalogUnit := unit.Encode(unit.Unit{Flags: unit.FlagCatalog, Data: tablePayload})

	out := make([]byte, headerSize)
	copy(out[0:4], magic)
	out[4] = version
	// reserved byte, crc, reserved dword all left zero

	out = append(out, catalogUnit...)
	out = append(out, hashmap.WriteEmpty(catalogBuckets)...)

	binary.LittleEndian.PutUint32(out[12:16], uint32(len(out)))
	binary.LittleEndian.PutUint32(out[16:20], uint32(len(out)))

	return out, nil
}
