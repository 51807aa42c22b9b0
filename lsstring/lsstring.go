// Package lsstring wraps the `<string>` table: a hash map of UTF-8 payload
// units plus a parallel refcount hash map addressed by the same keys.
package lsstring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/launchservices-oss/bdsl/hashmap"
	"github.com/launchservices-oss/bdsl/table"
	"github.com/launchservices-oss/bdsl/unit"
)

var (
	ErrUnknownString     = errors.New("lsstring: unknown string id")
	ErrBadUtf8           = errors.New("lsstring: payload is not valid utf-8")
	ErrRefcountInvariant = errors.New("lsstring: refcount word fails HH invariant")
	ErrTruncatedExtra    = errors.New("lsstring: <string> table extra is too short for refcount offset")
)

// Refcount is a decoded refcount word: the high byte is a hint bit observed
// on disk, never interpreted further; the low byte is the live count.
type Refcount struct {
	Hint  bool
	Count byte
}

// Container is the decoded `<string>` table plus its refcount map.
type Container struct {
	table     table.Table
	refcounts map[uint32]Refcount
}

// NewContainer reads the refcount hash map pointed to by the `<string>`
// table's extra field (a single absolute 32-bit offset) and validates every
// refcount word against the HH invariant.
func NewContainer(data []byte, t table.Table) (*Container, error) {
	if len(t.Extra) < 4 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTruncatedExtra, len(t.Extra))
	}
	refcountOffset := binary.LittleEndian.Uint32(t.Extra[0:4])

	words, err := hashmap.Read(data, int(refcountOffset))
	if err != nil {
		return nil, fmt.Errorf("lsstring: refcount hashmap: %w", err)
	}

	refcounts := make(map[uint32]Refcount, len(words))
	for key, u := range words {
		rc, err := decodeRefcountWord(u.Data)
		if err != nil {
			return nil, fmt.Errorf("lsstring: key %d: %w", key, err)
		}
		refcounts[key] = rc
	}

	return &Container{table: t, refcounts: refcounts}, nil
}

func decodeRefcountWord(data []byte) (Refcount, error) {
	if len(data) < 2 {
		return Refcount{}, fmt.Errorf("%w: word is %d bytes", ErrRefcountInvariant, len(data))
	}
	word := binary.LittleEndian.Uint16(data[0:2])
	high := byte(word >> 8)
	if high != 0x00 && high != 0x01 {
		return Refcount{}, fmt.Errorf("%w: high byte %#x", ErrRefcountInvariant, high)
	}
	return Refcount{Hint: high == 0x01, Count: byte(word)}, nil
}

// Get resolves key to its UTF-8 string payload.
func (c *Container) Get(key uint32) (string, error) {
	u, ok := c.table.Children[key]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownString, key)
	}
	if !utf8.Valid(u.Data) {
		return "", fmt.Errorf("%w: id %d", ErrBadUtf8, key)
	}
	return string(u.Data), nil
}

// Refcount returns the current refcount entry for key, if any.
func (c *Container) Refcount(key uint32) (Refcount, bool) {
	rc, ok := c.refcounts[key]
	return rc, ok
}

// Retain increments key's refcount. A key with no prior entry starts at 0
// before incrementing, matching source's tolerance for an absent refcount.
func (c *Container) Retain(key uint32) {
	rc := c.refcounts[key]
	rc.Count++
	c.refcounts[key] = rc
}

// Release decrements key's refcount, removing the string entirely once it
// reaches zero.
func (c *Container) Release(key uint32) {
	rc, ok := c.refcounts[key]
	if !ok {
		return
	}
	if rc.Count > 0 {
		rc.Count--
	}
	if rc.Count == 0 {
		delete(c.refcounts, key)
		if c.table.Children != nil {
			delete(c.table.Children, key)
		}
		return
	}
	c.refcounts[key] = rc
}

// Put allocates a fresh id from the table's unit-id allocator, stores s's
// UTF-8 bytes under it, and sets its refcount to 1.
func (c *Container) Put(s string) uint32 {
	key := c.table.NextUnitID
	c.table.NextUnitID += 4
	if c.table.Children == nil {
		c.table.Children = make(map[uint32]unit.Unit)
	}
	c.table.Children[key] = unit.Unit{ID: key, Data: []byte(s)}
	c.refcounts[key] = Refcount{Count: 1}
	return key
}
