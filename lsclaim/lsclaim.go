// Package lsclaim decodes Claim table entries: LaunchServices records
// asserting that a bundle handles a UTI or URL scheme with a given role and
// rank.
package lsclaim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/launchservices-oss/bdsl/lsarray"
	"github.com/launchservices-oss/bdsl/lsstring"
	"github.com/launchservices-oss/bdsl/table"
)

// Claim flag bits.
const (
	FlagAppleDefault            uint32 = 0x1
	FlagAppleDefaultNoOverride  uint32 = 0x2
	FlagAppleInternal           uint32 = 0x4
	FlagPackage                 uint32 = 0x8
	FlagLegacyWildcard          uint32 = 0x10
	FlagDocType                 uint32 = 0x20
	FlagURLType                 uint32 = 0x40
	FlagPrivateScheme           uint32 = 0x80
	FlagAlwaysAvailable         uint32 = 0x100
	FlagResolvesICloudConflicts uint32 = 0x200
	FlagUTIWildcard             uint32 = 0x400
	FlagSupportsCollaboration   uint32 = 0x800
	FlagRelativeIconPath        uint32 = 0x1000
)

// Role bits.
const (
	RoleNone        uint16 = 0x1
	RoleViewer      uint16 = 0x2
	RoleEditor      uint16 = 0x4
	RoleShell       uint16 = 0x8
	RoleImporter    uint16 = 0x10
	RoleQLGenerator uint16 = 0x20
)

const numIconSlots = 9

var (
	ErrUnexpectedTrailing  = errors.New("lsclaim: payload has bytes left after bindings id")
	ErrTruncated           = errors.New("lsclaim: payload too short for a claim record")
	ErrDelegateUnsupported = errors.New("lsclaim: delegate string id resolves to a non-empty string")
)

// Claim is a fully decoded record. Flags and Roles preserve the stored
// bitmask rather than being decomposed into booleans.
type Claim struct {
	ClaimingBundleRecordID uint32
	Generation             uint32
	Flags                  uint32
	Rank                   uint16
	Roles                  uint16
	Bundle                 uint32
	LocalizedNamesRef      uint32 // opaque; not resolved
	ReqCaps                []string
	IconFiles              []string
	Delegate               string
	BindingsID             uint32
}

// Decode parses a single Claim entry. An empty payload means "no claim" and
// Decode returns (Claim{}, false, nil).
func Decode(data []byte, arrays table.Table, strs *lsstring.Container) (Claim, bool, error) {
	if len(data) == 0 {
		return Claim{}, false, nil
	}

	const fixedSize = 4 + 4 + 4 + 2 + 2 + 4 + 4 + 4 + numIconSlots*4 + 4 + 4
	if len(data) < fixedSize {
		return Claim{}, false, fmt.Errorf("%w: got %d bytes, need %d", ErrTruncated, len(data), fixedSize)
	}

	pos := 0
	u32 := func() uint32 {
		v := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		return v
	}
	u16 := func() uint16 {
		v := binary.LittleEndian.Uint16(data[pos : pos+2])
		pos += 2
		return v
	}

	c := Claim{
		ClaimingBundleRecordID: u32(),
		Generation:             u32(),
		Flags:                  u32(),
	}
	c.Rank = u16()
	c.Roles = u16()
	c.Bundle = u32()
	c.LocalizedNamesRef = u32()

	reqCapsRef := u32()
	if reqCapsRef != 0 {
		ids, err := lsarray.Decode(arrays, reqCapsRef)
		if err != nil {
			return Claim{}, false, fmt.Errorf("lsclaim: req_caps: %w", err)
		}
		caps := make([]string, 0, len(ids))
		for _, id := range ids {
			s, err := strs.Get(id)
			if err != nil {
				return Claim{}, false, fmt.Errorf("lsclaim: req_caps string: %w", err)
			}
			caps = append(caps, s)
		}
		c.ReqCaps = caps
	}

	icons := make([]string, 0, numIconSlots)
	for i := 0; i < numIconSlots; i++ {
		id := u32()
		if id == 0 || id == 1 {
			continue
		}
		s, err := strs.Get(id)
		if err != nil {
			return Claim{}, false, fmt.Errorf("lsclaim: icon file %d: %w", i, err)
		}
		icons = append(icons, s)
	}
	c.IconFiles = icons

	delegateID := u32()
	if delegateID != 0 {
		s, err := strs.Get(delegateID)
		if err != nil {
			return Claim{}, false, fmt.Errorf("lsclaim: delegate: %w", err)
		}
		if s != "" {
			return Claim{}, false, fmt.Errorf("%w: %q", ErrDelegateUnsupported, s)
		}
		c.Delegate = s
	}

	c.BindingsID = u32()

	if pos != len(data) {
		return Claim{}, false, fmt.Errorf("%w: %d bytes left", ErrUnexpectedTrailing, len(data)-pos)
	}

	return c, true, nil
}

// DecodeAll decodes every entry in a Claim table.
func DecodeAll(t table.Table, arrays table.Table, strs *lsstring.Container) (map[uint32]Claim, error) {
	out := make(map[uint32]Claim, len(t.Children))
	for key, u := range t.Children {
		c, ok, err := Decode(u.Data, arrays, strs)
		if err != nil {
			return nil, fmt.Errorf("lsclaim: key %d: %w", key, err)
		}
		if !ok {
			continue
		}
		out[key] = c
	}
	return out, nil
}
