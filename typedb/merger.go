package typedb

import (
	"fmt"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/strtab"
)

// Merger merges the type sections of every module into the TPI and IPI tables.
type Merger struct {
	types *Table
	ids   *Table
	names *strtab.NamesTable
}

// NewMerger creates a merger with empty tables. Source file names referenced
// by LF_UDT_SRC_LINE records are interned into names.
func NewMerger(names *strtab.NamesTable) *Merger {
	return &Merger{
		types: NewTable(codeview.SpaceType),
		ids:   NewTable(codeview.SpaceID),
		names: names,
	}
}

// Types returns the TPI table.
func (m *Merger) Types() *Table {
	return m.types
}

// IDs returns the IPI table.
func (m *Merger) IDs() *Table {
	return m.ids
}

// MergeModule interns the records of one module's .debug$T section in input
// order and returns the module's local-to-global map.
//
// Id leaves go to the IPI table, everything else to TPI. An LF_UDT_SRC_LINE
// record is replaced by an LF_UDT_MOD_SRC_LINE carrying the /names offset of
// its file and the 1-based module index; only the first module to annotate a
// given type gets its annotation recorded.
//
// Errors are *RecordError values wrapping the errs sentinel.
func (m *Merger) MergeModule(records []codeview.Record, module int) (*Remap, error) {
	remap := NewRemap(len(records))

	for i, rec := range records {
		kind := format.LeafKind(rec.Kind)

		var (
			ref Ref
			err error
		)
		if kind == format.LF_UDT_SRC_LINE {
			ref, err = m.mergeSourceLine(rec, remap, module)
		} else {
			table := m.types
			if kind.IsIDKind() {
				table = m.ids
			}
			ref.Space = table.space
			ref.Index, err = table.Intern(rec, remap)
		}
		if err != nil {
			return nil, &RecordError{Module: module, Local: FirstIndex + TypeIndex(i), Kind: kind, Err: err} //nolint: gosec
		}

		remap.Append(ref)
	}

	return remap, nil
}

func (m *Merger) mergeSourceLine(rec codeview.Record, remap *Remap, module int) (Ref, error) {
	if _, err := codeview.TypeRefs(format.LF_UDT_SRC_LINE, rec.Data); err != nil {
		return Ref{}, err
	}

	engine := endian.GetLittleEndianEngine()
	udt, err := remap.Resolve(engine.Uint32(rec.Data[0:]), codeview.SpaceType)
	if err != nil {
		return Ref{}, err
	}
	file, err := remap.Resolve(engine.Uint32(rec.Data[4:]), codeview.SpaceID)
	if err != nil {
		return Ref{}, err
	}
	line := engine.Uint32(rec.Data[8:])

	target, annotated := m.types.Lookup(udt)
	if annotated {
		if id, ok := target.SourceLine(); ok {
			return Ref{Space: codeview.SpaceID, Index: id}, nil
		}
	}

	fileEntry, ok := m.ids.Lookup(file)
	if !ok || fileEntry.Kind != format.LF_STRING_ID {
		return Ref{}, fmt.Errorf("%w: source file 0x%x is not a string id", errs.ErrMalformedRecord, uint32(file))
	}
	path, err := codeview.Name(fileEntry.Payload(), 4)
	if err != nil {
		return Ref{}, err
	}

	payload := engine.AppendUint32(nil, uint32(udt))
	payload = engine.AppendUint32(payload, m.names.InternString(path))
	payload = engine.AppendUint32(payload, line)
	payload = engine.AppendUint16(payload, uint16(module+1)) //nolint: gosec

	id, err := m.ids.insert(format.LF_UDT_MOD_SRC_LINE, payload)
	if err != nil {
		return Ref{}, err
	}
	if annotated {
		target.srcLine = id
	}

	return Ref{Space: codeview.SpaceID, Index: id}, nil
}
