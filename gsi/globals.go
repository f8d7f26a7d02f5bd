package gsi

import (
	"bytes"
	"fmt"
	"io"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/internal/collision"
	"github.com/arloliu/pdbgen/internal/hash"
	"github.com/arloliu/pdbgen/internal/pool"
)

// GlobalEntry is one distinct record of the globals table.
type GlobalEntry struct {
	Kind     format.SymbolKind
	Name     string
	Offset   uint32 // offset in the symbol record stream
	RefCount uint32
}

// Globals is the globals hash table. Records are deduplicated by content:
// inserting a byte-identical record again only raises its reference count.
//
// Globals is not safe for concurrent use.
type Globals struct {
	records *SymbolRecords
	entries []*GlobalEntry
	tracker *collision.Tracker
}

// NewGlobals creates an empty table appending its records to records.
func NewGlobals(records *SymbolRecords) *Globals {
	return &Globals{
		records: records,
		tracker: collision.NewTracker(),
	}
}

// Insert adds an encoded symbol record (prefix included, 4-byte aligned).
//
// Returns:
//   - *GlobalEntry: the new or existing entry for the record
//   - error: ErrTruncatedRecord or ErrUnknownRecordKind when the record's
//     name cannot be decoded
func (g *Globals) Insert(record []byte) (*GlobalEntry, error) {
	if len(record) < codeview.RecordPrefixSize {
		return nil, fmt.Errorf("%w: global of %d bytes", errs.ErrTruncatedRecord, len(record))
	}

	key := hash.Key(record)
	id, found := g.tracker.Find(key, func(id int) bool {
		return bytes.Equal(g.records.At(g.entries[id].Offset), record)
	})
	if found {
		e := g.entries[id]
		e.RefCount++

		return e, nil
	}

	kind := format.SymbolKind(endian.GetLittleEndianEngine().Uint16(record[2:]))
	name, err := codeview.SymbolName(kind, record[codeview.RecordPrefixSize:])
	if err != nil {
		return nil, err
	}

	e := &GlobalEntry{
		Kind:     kind,
		Name:     name,
		Offset:   g.records.Append(record),
		RefCount: 1,
	}
	g.tracker.Add(key, len(g.entries))
	g.entries = append(g.entries, e)

	return e, nil
}

// Len returns the number of distinct records.
func (g *Globals) Len() int {
	return len(g.entries)
}

// Entries returns the entries in insertion order.
func (g *Globals) Entries() []*GlobalEntry {
	return g.entries
}

// WriteTo writes the globals stream: the hash table over every entry.
func (g *Globals) WriteTo(w io.Writer) (int64, error) {
	entries := make([]hashEntry, len(g.entries))
	for i, e := range g.entries {
		entries[i] = hashEntry{name: e.Name, offset: e.Offset, refs: e.RefCount}
	}

	bb := pool.NewByteBuffer(pool.StreamBufferDefaultSize)
	writeHashTable(bb, entries)

	return bb.WriteTo(w)
}
