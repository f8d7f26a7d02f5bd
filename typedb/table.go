// Package typedb deduplicates CodeView type and id records from every module
// into the two global index spaces of the program database: TPI (types) and
// IPI (ids).
//
// Each module's .debug$T records are interned one at a time in input order.
// Index fields are rewritten from module-local to global indices through the
// module's Remap before the record is looked up, so structurally identical
// records from different modules collapse into one global entry.
package typedb

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/internal/collision"
	"github.com/arloliu/pdbgen/internal/hash"
	"github.com/arloliu/pdbgen/layout"
)

// TypeIndex is a global type or id index. Values below FirstIndex are simple
// (built-in) types shared by every module.
type TypeIndex uint32

// FirstIndex is the first index assigned to a record.
const FirstIndex TypeIndex = layout.FirstTypeIndex

const maxEntries = 0xffffffff - layout.FirstTypeIndex

// IsSimple reports whether ti names a built-in type rather than a record.
func (ti TypeIndex) IsSimple() bool {
	return ti < FirstIndex
}

// Entry is one deduplicated record of a Table.
type Entry struct {
	Index TypeIndex
	Kind  format.LeafKind

	// Record is the encoded record: length, kind, payload and LF_PAD bytes.
	Record []byte

	// Hash is the record hash before reduction to a hash bucket.
	Hash uint32

	identity []byte // nil when the full record is the identity

	srcLine TypeIndex // id of the LF_UDT_MOD_SRC_LINE emitted for this type
}

// Payload returns the record bytes after the length and kind.
func (e *Entry) Payload() []byte {
	return e.Record[codeview.RecordPrefixSize:]
}

// SourceLine returns the id of the source line annotation recorded for this
// type. ok is false when none was recorded.
func (e *Entry) SourceLine() (id TypeIndex, ok bool) {
	return e.srcLine, e.srcLine != 0
}

func (e *Entry) identityBytes() []byte {
	if e.identity != nil {
		return e.identity
	}

	return e.Record
}

// Table is the deduplicated record table of one index space.
//
// A Table is not safe for concurrent use.
type Table struct {
	space       codeview.IndexSpace
	entries     []*Entry
	tracker     *collision.Tracker
	recordBytes int
}

// NewTable creates an empty table for the given index space.
func NewTable(space codeview.IndexSpace) *Table {
	return &Table{
		space:   space,
		tracker: collision.NewTracker(),
	}
}

// Space returns the index space of the table.
func (t *Table) Space() codeview.IndexSpace {
	return t.space
}

// Len returns the number of distinct records.
func (t *Table) Len() int {
	return len(t.entries)
}

// RecordBytes returns the total size of all encoded records.
func (t *Table) RecordBytes() int {
	return t.recordBytes
}

// Entries returns the records in index order.
func (t *Table) Entries() []*Entry {
	return t.entries
}

// Lookup returns the entry with global index ti.
func (t *Table) Lookup(ti TypeIndex) (*Entry, bool) {
	if ti.IsSimple() || int(ti-FirstIndex) >= len(t.entries) {
		return nil, false
	}

	return t.entries[ti-FirstIndex], true
}

// Intern rewrites the index fields of a module record through remap and
// returns the global index of the resulting record, adding it on first sight.
//
// Parameters:
//   - rec: record from a module's .debug$T section
//   - remap: the module's local-to-global map, holding every earlier record
//
// Returns:
//   - TypeIndex: global index of the record in this table
//   - error: ErrUnknownRecordKind, ErrTruncatedRecord, ErrForwardTypeReference
//     or ErrTypeIndexOutOfRange
func (t *Table) Intern(rec codeview.Record, remap *Remap) (TypeIndex, error) {
	kind := format.LeafKind(rec.Kind)

	refs, err := codeview.TypeRefs(kind, rec.Data)
	if err != nil {
		return 0, err
	}

	payload := slices.Clone(rec.Data)
	engine := endian.GetLittleEndianEngine()
	for _, ref := range refs {
		local := engine.Uint32(payload[ref.Offset:])
		global, err := remap.Resolve(local, ref.Space)
		if err != nil {
			return 0, err
		}
		engine.PutUint32(payload[ref.Offset:], uint32(global))
	}

	return t.insert(kind, payload)
}

// insert adds an already remapped payload.
func (t *Table) insert(kind format.LeafKind, payload []byte) (TypeIndex, error) {
	record := codeview.AppendTypeRecord(nil, uint16(kind), payload)
	if len(record) > codeview.MaxRecordSize {
		return 0, fmt.Errorf("%w: %s of %d bytes", errs.ErrMalformedRecord, kind, len(record))
	}

	identity := identityOf(kind, payload)
	key := record
	if identity != nil {
		key = identity
	}

	id, found := t.tracker.Find(hash.Key(key), func(id int) bool {
		e := t.entries[id]
		return e.Kind == kind && (e.identity != nil) == (identity != nil) && bytes.Equal(e.identityBytes(), key)
	})
	if found {
		return t.entries[id].Index, nil
	}

	if uint64(len(t.entries)) >= maxEntries {
		return 0, fmt.Errorf("%w: %s table full", errs.ErrOffsetOverflow, t.space)
	}
	ti := FirstIndex + TypeIndex(len(t.entries)) //nolint: gosec

	t.tracker.Add(hash.Key(key), len(t.entries))
	t.entries = append(t.entries, &Entry{
		Index:    ti,
		Kind:     kind,
		Record:   record,
		Hash:     recordHash(kind, payload, record),
		identity: identity,
	})
	t.recordBytes += len(record)

	return ti, nil
}

// identityOf returns the name-based identity of a record, or nil when the
// record is identified by its full bytes.
func identityOf(kind format.LeafKind, payload []byte) []byte {
	if kind == format.LF_UDT_MOD_SRC_LINE {
		return append([]byte{}, payload[:4]...)
	}

	name, ok := codeview.UDTIdentity(kind, payload)
	if !ok {
		return nil
	}

	return []byte(name)
}

// recordHash computes the hash the type hash stream stores for a record.
// Named definitions hash by name so a reader can find a type by name; source
// line annotations hash by the type they annotate; everything else hashes its
// full bytes.
func recordHash(kind format.LeafKind, payload, record []byte) uint32 {
	switch kind {
	case format.LF_UDT_SRC_LINE, format.LF_UDT_MOD_SRC_LINE:
		return hash.StringV1(payload[:4])
	}

	agg, ok, err := codeview.ParseAggregate(kind, payload)
	if ok && err == nil {
		anonymous := agg.HasUniqueName() && agg.Anonymous()
		if !agg.ForwardRef() && !agg.Scoped() && !anonymous {
			return hash.StringV1String(agg.Name)
		}
		if !agg.ForwardRef() && agg.HasUniqueName() && !anonymous {
			return hash.StringV1String(agg.UniqueName)
		}
	}

	return hash.JamCRC(record)
}
