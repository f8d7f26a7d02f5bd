package typedb

import (
	"fmt"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
)

// Ref is the global location of a module-local record.
type Ref struct {
	Space codeview.IndexSpace
	Index TypeIndex
}

// Remap maps the local indices of one module to global indices. A module's
// .debug$T section shares one local index space between types and ids, so a
// single Remap covers both tables.
type Remap struct {
	refs     []Ref
	declared int
}

// NewRemap creates an empty map for a module declaring count records.
func NewRemap(count int) *Remap {
	return &Remap{refs: make([]Ref, 0, count), declared: count}
}

// Len returns the number of mapped local indices.
func (r *Remap) Len() int {
	return len(r.refs)
}

// Append maps the next local index.
func (r *Remap) Append(ref Ref) {
	r.refs = append(r.refs, ref)
	if len(r.refs) > r.declared {
		r.declared = len(r.refs)
	}
}

// Resolve translates a local index found in a field of the given space.
// Simple type indices pass through unchanged.
//
// Returns:
//   - TypeIndex: global index
//   - error: ErrForwardTypeReference when local names a record not yet
//     interned, ErrTypeIndexOutOfRange when it names no record of the
//     module, ErrMalformedRecord when it names a record of the other space
func (r *Remap) Resolve(local uint32, space codeview.IndexSpace) (TypeIndex, error) {
	ti := TypeIndex(local)
	if ti.IsSimple() {
		return ti, nil
	}

	idx := int(ti - FirstIndex)
	if idx >= len(r.refs) {
		if idx < r.declared {
			return 0, fmt.Errorf("%w: 0x%x referenced before its definition", errs.ErrForwardTypeReference, local)
		}

		return 0, fmt.Errorf("%w: 0x%x, module declares %d records", errs.ErrTypeIndexOutOfRange, local, r.declared)
	}

	ref := r.refs[idx]
	if ref.Space != space {
		return 0, fmt.Errorf("%w: %s field refers to %s record 0x%x", errs.ErrMalformedRecord, space, ref.Space, local)
	}

	return ref.Index, nil
}

// RecordError reports a record of a module's .debug$T section that could not
// be merged.
type RecordError struct {
	Module int
	Local  TypeIndex
	Kind   format.LeafKind
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("module %d: record 0x%x (%s): %v", e.Module, uint32(e.Local), e.Kind, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
