// Package hashmap walks the on-disk hash map structure shared by every CS
// store table: a bucket array, each bucket pointing at an entry array, each
// entry pointing at a Unit.
//
// Unlike compactindexsized's FKS perfect-hash buckets, these buckets are a
// plain sparse external-pointer table: no hashing discipline needs to be
// reproduced on read, only offsets followed.
package hashmap

import (
	"encoding/binary"
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/launchservices-oss/bdsl/unit"
)

// ErrBadOffset is returned when a bucket, entry, or unit offset falls
// outside the input buffer.
type ErrBadOffset struct {
	What   string
	Offset int
}

func (e *ErrBadOffset) Error() string {
	return fmt.Sprintf("hashmap: bad offset: %s at %#x", e.What, e.Offset)
}

const entrySize = 8 // key:4 + unit_offset:4

// Read walks the hash map header at the given absolute offset and returns
// the decoded key -> Unit map.
//
// Positions are never mutated: every nested lookup (bucket, then entries,
// then unit) is computed from an absolute offset into data, so there is no
// cursor to save or restore.
func Read(data []byte, offset int) (map[uint32]unit.Unit, error) {
	if offset < 0 || offset+4 > len(data) {
		return nil, &ErrBadOffset{"bucket count", offset}
	}
	bucketCount := binary.LittleEndian.Uint32(data[offset : offset+4])

	out := make(map[uint32]unit.Unit)
	bucketsStart := offset + 4
	for i := uint32(0); i < bucketCount; i++ {
		bucketOff := bucketsStart + int(i)*8
		if bucketOff+8 > len(data) {
			return nil, &ErrBadOffset{"bucket header", bucketOff}
		}
		entryCount := binary.LittleEndian.Uint32(data[bucketOff : bucketOff+4])
		entriesOffset := binary.LittleEndian.Uint32(data[bucketOff+4 : bucketOff+8])
		if entryCount == 0 {
			continue
		}
		if err := readBucketEntries(data, int(entriesOffset), entryCount, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readBucketEntries copies one bucket's entry array into a pooled scratch
// buffer before decoding it, the way compactindexsized.Bucket.Lookup and
// bucketteer.Reader.Has read a bucket's bytes in one shot before scanning
// them. Those readers pool because their bytes come from a ReadAt over a
// file; here data is already an in-memory slice, so the copy only exists to
// keep the same pooling discipline across every hash map reader in this
// module, not because it avoids any I/O.
func readBucketEntries(data []byte, entriesOffset int, entryCount uint32, out map[uint32]unit.Unit) error {
	span := int(entryCount) * entrySize
	end := entriesOffset + span
	if entriesOffset < 0 || span < 0 || end > len(data) {
		return &ErrBadOffset{"entry array", entriesOffset}
	}

	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)
	scratch.Reset()
	scratch.B = append(scratch.B, data[entriesOffset:end]...)

	for i := uint32(0); i < entryCount; i++ {
		rec := scratch.B[i*entrySize : i*entrySize+entrySize]
		key := binary.LittleEndian.Uint32(rec[0:4])
		unitOffset := binary.LittleEndian.Uint32(rec[4:8])

		u, _, err := unit.Decode(data, int(unitOffset))
		if err != nil {
			return fmt.Errorf("%w: %v", &ErrBadOffset{"unit", int(unitOffset)}, err)
		}
		// Duplicates across buckets/entries are not expected; when they
		// occur the later entry wins, which is exactly map assignment order.
		out[key] = u
	}
	return nil
}

// WriteEmpty serializes a hash map header with the given number of empty
// buckets and no entries — the only shape the writer currently produces.
func WriteEmpty(numBuckets uint32) []byte {
	out := make([]byte, 4+int(numBuckets)*8)
	binary.LittleEndian.PutUint32(out[0:4], numBuckets)
	// Every bucket header defaults to entry_count=0, entries_offset=0,
	// which is already the zero value of the allocated slice.
	return out
}
