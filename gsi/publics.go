package gsi

import (
	"cmp"
	"io"
	"slices"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
)

// S_PUB32 flags.
const (
	PublicCode     uint32 = 0x1
	PublicFunction uint32 = 0x2
	PublicManaged  uint32 = 0x4
	PublicMSIL     uint32 = 0x8
)

// PublicEntry is one public symbol.
type PublicEntry struct {
	Name       string
	Section    uint16
	Offset     uint32
	IsFunction bool

	// RecordOffset is the offset of the S_PUB32 record in the symbol record stream.
	RecordOffset uint32
}

// Publics is the publics hash table and its address map.
type Publics struct {
	records *SymbolRecords
	entries []*PublicEntry
}

// NewPublics creates an empty table appending its records to records.
func NewPublics(records *SymbolRecords) *Publics {
	return &Publics{records: records}
}

// Insert adds a public symbol at section:offset and appends its S_PUB32
// record.
func (p *Publics) Insert(name string, section uint16, offset uint32, isFunction bool) *PublicEntry {
	var flags uint32
	if isFunction {
		flags = PublicFunction
	}

	engine := endian.GetLittleEndianEngine()
	payload := engine.AppendUint32(nil, flags)
	payload = engine.AppendUint32(payload, offset)
	payload = engine.AppendUint16(payload, section)
	payload = endian.AppendCString(payload, name)

	e := &PublicEntry{
		Name:         name,
		Section:      section,
		Offset:       offset,
		IsFunction:   isFunction,
		RecordOffset: p.records.Append(codeview.AppendSymbolRecord(nil, uint16(format.S_PUB32), payload)),
	}
	p.entries = append(p.entries, e)

	return e
}

// Len returns the number of public symbols.
func (p *Publics) Len() int {
	return len(p.entries)
}

// Entries returns the entries in insertion order.
func (p *Publics) Entries() []*PublicEntry {
	return p.entries
}

// AddressMap returns the record offsets of every public ordered by section,
// offset and name.
func (p *Publics) AddressMap() []uint32 {
	sorted := slices.Clone(p.entries)
	slices.SortStableFunc(sorted, func(a, b *PublicEntry) int {
		if c := cmp.Compare(a.Section, b.Section); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
			return c
		}

		return cmp.Compare(a.Name, b.Name)
	})

	offsets := make([]uint32, len(sorted))
	for i, e := range sorted {
		offsets[i] = e.RecordOffset
	}

	return offsets
}

// WriteTo writes the publics stream:
//
//	PublicsHeader | GSI hash table | address map
func (p *Publics) WriteTo(w io.Writer) (int64, error) {
	entries := make([]hashEntry, len(p.entries))
	for i, e := range p.entries {
		entries[i] = hashEntry{name: e.Name, offset: e.RecordOffset, refs: 1}
	}

	table := pool.NewByteBuffer(pool.StreamBufferDefaultSize)
	writeHashTable(table, entries)

	addrMap := p.AddressMap()
	hdr := layout.PublicsHeader{
		SymHash: uint32(table.Len()),      //nolint: gosec
		AddrMap: uint32(len(addrMap) * 4), //nolint: gosec
	}

	bb := pool.NewByteBuffer(layout.PublicsHeaderSize + table.Len() + len(addrMap)*4)
	hdr.WriteTo(bb)
	bb.MustWrite(table.Bytes())
	for _, off := range addrMap {
		bb.WriteUint32(off)
	}

	return bb.WriteTo(w)
}
