// Package bdsl decodes and encodes Apple LaunchServices' CS store
// container format (magic "bdsl"): a header, a catalog table, and the set
// of named tables the catalog's hash map points at.
package bdsl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/launchservices-oss/bdsl/lsarray"
	"github.com/launchservices-oss/bdsl/lsbinding"
	"github.com/launchservices-oss/bdsl/lsclaim"
	"github.com/launchservices-oss/bdsl/lsheader"
	"github.com/launchservices-oss/bdsl/lsstring"
	"github.com/launchservices-oss/bdsl/table"
	"github.com/launchservices-oss/bdsl/unit"
)

const (
	magic             = "bdsl"
	version           = 2
	headerSize        = 0x14
	catalogUnitOffset = headerSize
)

var (
	ErrBadMagic     = errors.New("bdsl: bad magic")
	ErrBadVersion   = errors.New("bdsl: unsupported version")
	ErrNotCatalog   = errors.New("bdsl: root unit does not carry the CATALOG flag")
	ErrUnknownTable = errors.New("bdsl: store has no table with that name")
)

// FileHeader is the 20-byte (headerSize) header preceding the catalog unit. CRC and the
// two size fields are retained for callers that want them but are never
// validated here; that is left as a forward-compatible extension.
type FileHeader struct {
	Version  byte
	Reserved byte
	CRC      uint16
	Size1    uint32
	Size2    uint32
}

// Store is a fully decoded CS store: the catalog, every non-string table it
// references, and the string container (if present).
type Store struct {
	Header     FileHeader
	Catalog    table.Table
	Tables     map[string]table.Table
	Strings    *lsstring.Container
	HasStrings bool

	byKind map[table.Kind]table.Table
}

// Open decodes a store from r. r is never closed or otherwise owned by
// Open; the caller decides whether it is backed by a file, a byte slice, or
// anything else that implements io.ReaderAt.
func Open(r io.ReaderAt, size int64) (*Store, error) {
	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("bdsl: read header: %w", err)
	}
	if string(header[0:4]) != magic {
		return nil, fmt.Errorf("%w: got %q", ErrBadMagic, header[0:4])
	}
	if header[4] != version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadVersion, header[4], version)
	}

	fh := FileHeader{
		Version:  header[4],
		Reserved: header[5],
		CRC:      binary.LittleEndian.Uint16(header[6:8]),
		Size1:    binary.LittleEndian.Uint32(header[12:16]),
		Size2:    binary.LittleEndian.Uint32(header[16:20]),
	}

	data := make([]byte, size)
	if _, err := r.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("bdsl: read store body: %w", err)
	}

	catalogUnit, _, err := unit.Decode(data, catalogUnitOffset)
	if err != nil {
		return nil, fmt.Errorf("bdsl: decode catalog unit: %w", err)
	}
	if !catalogUnit.IsCatalog() {
		return nil, fmt.Errorf("%w: unit %d", ErrNotCatalog, catalogUnit.ID)
	}

	catalog, err := table.Decode(data, catalogUnit)
	if err != nil {
		return nil, fmt.Errorf("bdsl: decode catalog table: %w", err)
	}

	probeForRandomAccess(r)

	s := &Store{
		Header:  fh,
		Catalog: catalog,
		Tables:  make(map[string]table.Table, len(catalog.Children)),
		byKind:  make(map[table.Kind]table.Table, len(catalog.Children)),
	}

	for _, u := range catalog.Children {
		t, err := table.Decode(data, u)
		if err != nil {
			return nil, fmt.Errorf("bdsl: decode table for unit %d: %w", u.ID, err)
		}
		kind := table.KindOf(t.Name)
		if kind == table.KindString {
			strs, err := lsstring.NewContainer(data, t)
			if err != nil {
				return nil, fmt.Errorf("bdsl: decode string container: %w", err)
			}
			s.Strings = strs
			s.HasStrings = true
			continue
		}
		s.Tables[t.Name] = t
		if kind != table.KindRaw {
			s.byKind[kind] = t
		}
	}

	return s, nil
}

// probeForRandomAccess mirrors bucketteer.NewReader's fadvise hint: when r
// is backed by a real file descriptor, tell the kernel the access pattern
// over it will be random rather than sequential.
func probeForRandomAccess(r io.ReaderAt) {
	type fileDescriptor interface {
		Fd() uintptr
		Name() string
	}
	f, ok := r.(fileDescriptor)
	if !ok {
		return
	}
	if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
		slog.Warn("bdsl: fadvise(RANDOM) failed", "file", f.Name(), "error", err)
	}
}

// tableOfKind looks up the one table of the given kind dispatched at Open
// time via table.KindOf, the tagged-variant lookup over known table names.
func (s *Store) tableOfKind(kind table.Kind, name string) (table.Table, error) {
	t, ok := s.byKind[kind]
	if !ok {
		return table.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// DecodeArrayEntry fetches key's entry out of the `<array>` table.
func (s *Store) DecodeArrayEntry(key uint32) ([]uint32, error) {
	t, err := s.tableOfKind(table.KindArray, "<array>")
	if err != nil {
		return nil, err
	}
	return lsarray.Decode(t, key)
}

// DecodeBindings decodes every entry of the BindingList table.
func (s *Store) DecodeBindings() (map[uint32]map[string][]string, error) {
	t, err := s.tableOfKind(table.KindBindingList, "BindingList")
	if err != nil {
		return nil, err
	}
	if !s.HasStrings {
		return nil, fmt.Errorf("bdsl: BindingList decode requires a string container")
	}
	return lsbinding.Decode(t, s.Strings)
}

// DecodeClaims decodes every entry of the Claim table.
func (s *Store) DecodeClaims() (map[uint32]lsclaim.Claim, error) {
	t, err := s.tableOfKind(table.KindClaim, "Claim")
	if err != nil {
		return nil, err
	}
	if !s.HasStrings {
		return nil, fmt.Errorf("bdsl: Claim decode requires a string container")
	}
	arrays := s.byKind[table.KindArray]
	return lsclaim.DecodeAll(t, arrays, s.Strings)
}

// DecodeHeader decodes the `DB Header` table's extra region.
func (s *Store) DecodeHeader() (lsheader.Header, error) {
	t, err := s.tableOfKind(table.KindDBHeader, "DB Header")
	if err != nil {
		return lsheader.Header{}, err
	}
	return lsheader.Decode(t.Extra)
}
