package codeview

import (
	"fmt"
	"strings"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
)

// IndexSpace tells which table an index field refers to.
type IndexSpace uint8

const (
	SpaceType IndexSpace = iota // TPI: type records
	SpaceID                     // IPI: id records
)

func (s IndexSpace) String() string {
	if s == SpaceID {
		return "id"
	}

	return "type"
}

// IndexRef locates one 32-bit index field inside a record payload.
type IndexRef struct {
	Offset int
	Space  IndexSpace
}

func typeRef(off int) IndexRef { return IndexRef{Offset: off, Space: SpaceType} }
func idRef(off int) IndexRef { return IndexRef{Offset: off, Space: SpaceID} }

// Class property bits shared by LF_CLASS, LF_STRUCTURE, LF_UNION, LF_ENUM and LF_INTERFACE.
const (
	PropForwardRef    = 0x0080
	PropScoped        = 0x0100
	PropHasUniqueName = 0x0200
)

// Pointer modes stored in bits 5-7 of the LF_POINTER attributes.
const (
	pointerModeDataMember   = 2
	pointerModeMemberMethod = 3
)

// Method kinds stored in bits 2-4 of a member function attribute.
const (
	methodIntroVirtual     = 4
	methodPureIntroVirtual = 6
)

// typeSchema is the layout of one type or id leaf: the fixed index fields and
// an optional walker for the variable-length part.
type typeSchema struct {
	minSize int
	fixed   []IndexRef
	tail    func(data []byte) ([]IndexRef, error)
}

var typeSchemas = map[format.LeafKind]typeSchema{
	format.LF_VTSHAPE:    {minSize: 2},
	format.LF_LABEL:      {minSize: 2},
	format.LF_MODIFIER:   {minSize: 6, fixed: []IndexRef{typeRef(0)}},
	format.LF_POINTER:    {minSize: 8, fixed: []IndexRef{typeRef(0)}, tail: pointerTail},
	format.LF_PROCEDURE:  {minSize: 12, fixed: []IndexRef{typeRef(0), typeRef(8)}},
	format.LF_MFUNCTION:  {minSize: 24, fixed: []IndexRef{typeRef(0), typeRef(4), typeRef(8), typeRef(16)}},
	format.LF_ARGLIST:    {minSize: 4, tail: countedList(SpaceType)},
	format.LF_FIELDLIST:  {tail: fieldListTail},
	format.LF_BITFIELD:   {minSize: 6, fixed: []IndexRef{typeRef(0)}},
	format.LF_METHODLIST: {tail: methodListTail},
	format.LF_ARRAY:      {minSize: 10, fixed: []IndexRef{typeRef(0), typeRef(4)}},
	format.LF_CLASS:      {minSize: 18, fixed: []IndexRef{typeRef(4), typeRef(8), typeRef(12)}},
	format.LF_STRUCTURE:  {minSize: 18, fixed: []IndexRef{typeRef(4), typeRef(8), typeRef(12)}},
	format.LF_INTERFACE:  {minSize: 18, fixed: []IndexRef{typeRef(4), typeRef(8), typeRef(12)}},
	format.LF_UNION:      {minSize: 10, fixed: []IndexRef{typeRef(4)}},
	format.LF_ENUM:       {minSize: 13, fixed: []IndexRef{typeRef(4), typeRef(8)}},
	format.LF_VFTABLE:    {minSize: 16, fixed: []IndexRef{typeRef(0), typeRef(4)}},

	format.LF_FUNC_ID:          {minSize: 9, fixed: []IndexRef{idRef(0), typeRef(4)}},
	format.LF_MFUNC_ID:         {minSize: 9, fixed: []IndexRef{typeRef(0), typeRef(4)}},
	format.LF_BUILDINFO:        {minSize: 2, tail: buildInfoTail},
	format.LF_SUBSTR_LIST:      {minSize: 4, tail: countedList(SpaceID)},
	format.LF_STRING_ID:        {minSize: 5, fixed: []IndexRef{idRef(0)}},
	format.LF_UDT_SRC_LINE:     {minSize: 12, fixed: []IndexRef{typeRef(0), idRef(4)}},
	format.LF_UDT_MOD_SRC_LINE: {minSize: 14, fixed: []IndexRef{typeRef(0)}},
}

// TypeRefs returns every index field of a type or id record payload, in
// payload order.
//
// Returns:
//   - []IndexRef: index field locations
//   - error: ErrUnknownRecordKind for kinds without a schema (including
//     LF_PRECOMP and LF_TYPESERVER2, which reference external type servers),
//     ErrTruncatedRecord when the payload is shorter than the schema
func TypeRefs(kind format.LeafKind, data []byte) ([]IndexRef, error) {
	schema, ok := typeSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownRecordKind, kind)
	}
	if len(data) < schema.minSize {
		return nil, fmt.Errorf("%w: %s of %d bytes", errs.ErrTruncatedRecord, kind, len(data))
	}

	refs := append([]IndexRef(nil), schema.fixed...)
	if schema.tail != nil {
		extra, err := schema.tail(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		refs = append(refs, extra...)
	}

	return refs, nil
}

// KnownTypeKind reports whether kind has a schema.
func KnownTypeKind(kind format.LeafKind) bool {
	_, ok := typeSchemas[kind]
	return ok
}

func pointerTail(data []byte) ([]IndexRef, error) {
	attrs := endian.GetLittleEndianEngine().Uint32(data[4:])
	switch (attrs >> 5) & 7 {
	case pointerModeDataMember, pointerModeMemberMethod:
		if len(data) < 14 {
			return nil, fmt.Errorf("%w: member pointer info", errs.ErrTruncatedRecord)
		}

		return []IndexRef{typeRef(8)}, nil
	default:
		return nil, nil
	}
}

// countedList decodes a u32 count followed by that many indices.
func countedList(space IndexSpace) func([]byte) ([]IndexRef, error) {
	return func(data []byte) ([]IndexRef, error) {
		count := int(endian.GetLittleEndianEngine().Uint32(data))
		if count > (len(data)-4)/4 {
			return nil, fmt.Errorf("%w: list of %d indices", errs.ErrTruncatedRecord, count)
		}

		refs := make([]IndexRef, count)
		for i := range refs {
			refs[i] = IndexRef{Offset: 4 + i*4, Space: space}
		}

		return refs, nil
	}
}

func buildInfoTail(data []byte) ([]IndexRef, error) {
	count := int(endian.GetLittleEndianEngine().Uint16(data))
	if count > (len(data)-2)/4 {
		return nil, fmt.Errorf("%w: build info of %d arguments", errs.ErrTruncatedRecord, count)
	}

	refs := make([]IndexRef, count)
	for i := range refs {
		refs[i] = idRef(2 + i*4)
	}

	return refs, nil
}

func methodListTail(data []byte) ([]IndexRef, error) {
	var refs []IndexRef

	engine := endian.GetLittleEndianEngine()
	for off := 0; off < len(data); {
		if len(data)-off < 8 {
			return nil, fmt.Errorf("%w: method list entry at %d", errs.ErrTruncatedRecord, off)
		}

		attrs := engine.Uint16(data[off:])
		refs = append(refs, typeRef(off+4))
		off += 8
		if isIntroVirtual(attrs) {
			off += 4
		}
	}

	return refs, nil
}

func isIntroVirtual(attrs uint16) bool {
	kind := (attrs >> 2) & 7
	return kind == methodIntroVirtual || kind == methodPureIntroVirtual
}

// fieldListTail walks the members of an LF_FIELDLIST. Each member starts with
// its own u16 leaf kind and is followed by LF_PAD bytes up to a 4-byte
// boundary.
func fieldListTail(data []byte) ([]IndexRef, error) {
	var refs []IndexRef

	engine := endian.GetLittleEndianEngine()
	off := 0
	for off < len(data) {
		if data[off] > format.LF_PAD0 {
			off += int(data[off] & 0x0f)
			continue
		}
		if len(data)-off < 2 {
			return nil, fmt.Errorf("%w: field list member at %d", errs.ErrTruncatedRecord, off)
		}

		kind := format.LeafKind(engine.Uint16(data[off:]))
		body := data[off+2:]
		base := off + 2

		n, memberRefs, err := fieldMember(kind, body)
		if err != nil {
			return nil, fmt.Errorf("member %s at %d: %w", kind, off, err)
		}
		for _, r := range memberRefs {
			refs = append(refs, IndexRef{Offset: base + r.Offset, Space: r.Space})
		}
		off = base + n
	}

	return refs, nil
}

// fieldMember returns the size of one field list member body and its index fields.
func fieldMember(kind format.LeafKind, body []byte) (int, []IndexRef, error) {
	need := func(n int) error {
		if len(body) < n {
			return fmt.Errorf("%w: %d bytes, need %d", errs.ErrTruncatedRecord, len(body), n)
		}
		return nil
	}
	numeric := func(off int) (int, error) {
		if err := need(off); err != nil {
			return 0, err
		}
		_, n, err := ReadNumeric(body[off:])
		return off + n, err
	}
	name := func(off int) (int, error) {
		if err := need(off); err != nil {
			return 0, err
		}
		_, n, ok := endian.CString(body[off:])
		if !ok {
			return 0, errs.ErrMissingTerminator
		}
		return off + n, nil
	}

	switch kind {
	case format.LF_BCLASS, format.LF_BINTERFACE:
		if err := need(6); err != nil {
			return 0, nil, err
		}
		end, err := numeric(6)
		return end, []IndexRef{typeRef(2)}, err

	case format.LF_VBCLASS, format.LF_IVBCLASS:
		if err := need(10); err != nil {
			return 0, nil, err
		}
		end, err := numeric(10)
		if err != nil {
			return 0, nil, err
		}
		end, err = numeric(end)
		return end, []IndexRef{typeRef(2), typeRef(6)}, err

	case format.LF_ENUMERATE:
		end, err := numeric(2)
		if err != nil {
			return 0, nil, err
		}
		end, err = name(end)
		return end, nil, err

	case format.LF_MEMBER:
		if err := need(6); err != nil {
			return 0, nil, err
		}
		end, err := numeric(6)
		if err != nil {
			return 0, nil, err
		}
		end, err = name(end)
		return end, []IndexRef{typeRef(2)}, err

	case format.LF_STMEMBER, format.LF_METHOD, format.LF_NESTTYPE:
		if err := need(6); err != nil {
			return 0, nil, err
		}
		end, err := name(6)
		return end, []IndexRef{typeRef(2)}, err

	case format.LF_ONEMETHOD:
		if err := need(6); err != nil {
			return 0, nil, err
		}
		off := 6
		if isIntroVirtual(endian.GetLittleEndianEngine().Uint16(body)) {
			off += 4
		}
		end, err := name(off)
		return end, []IndexRef{typeRef(2)}, err

	case format.LF_VFUNCTAB, format.LF_INDEX:
		if err := need(6); err != nil {
			return 0, nil, err
		}
		return 6, []IndexRef{typeRef(2)}, nil

	default:
		return 0, nil, fmt.Errorf("%w: field list member %s", errs.ErrUnknownRecordKind, kind)
	}
}

// Aggregate holds the identity fields of a class, struct, union, enum or interface record.
type Aggregate struct {
	Kind       format.LeafKind
	Properties uint16
	Name       string
	UniqueName string
}

// ForwardRef reports whether the record is a forward declaration.
func (a Aggregate) ForwardRef() bool { return a.Properties&PropForwardRef != 0 }

// Scoped reports whether the type is declared inside a function scope.
func (a Aggregate) Scoped() bool { return a.Properties&PropScoped != 0 }

// HasUniqueName reports whether a decorated unique name follows the name.
func (a Aggregate) HasUniqueName() bool { return a.Properties&PropHasUniqueName != 0 }

// Anonymous reports whether the aggregate has a compiler generated name.
func (a Aggregate) Anonymous() bool { return IsAnonymous(a.Name) }

// ParseAggregate decodes the properties and names of an aggregate record.
// ok is false when kind is not an aggregate kind.
func ParseAggregate(kind format.LeafKind, data []byte) (agg Aggregate, ok bool, err error) {
	if !kind.IsAggregate() {
		return Aggregate{}, false, nil
	}
	if len(data) < 4 {
		return Aggregate{}, true, fmt.Errorf("%w: %s", errs.ErrTruncatedRecord, kind)
	}

	agg = Aggregate{Kind: kind, Properties: endian.GetLittleEndianEngine().Uint16(data[2:])}

	var nameOff int
	switch kind {
	case format.LF_CLASS, format.LF_STRUCTURE, format.LF_INTERFACE:
		nameOff, err = skipNumeric(data, 16)
	case format.LF_UNION:
		nameOff, err = skipNumeric(data, 8)
	case format.LF_ENUM:
		nameOff = 12
	}
	if err != nil {
		return Aggregate{}, true, fmt.Errorf("%s size: %w", kind, err)
	}

	if nameOff > len(data) {
		return Aggregate{}, true, fmt.Errorf("%w: %s name", errs.ErrTruncatedRecord, kind)
	}
	s, n, found := endian.CString(data[nameOff:])
	if !found {
		return Aggregate{}, true, fmt.Errorf("%w: %s name", errs.ErrMissingTerminator, kind)
	}
	agg.Name = s

	if agg.HasUniqueName() {
		u, _, found := endian.CString(data[nameOff+n:])
		if !found {
			return Aggregate{}, true, fmt.Errorf("%w: %s unique name", errs.ErrMissingTerminator, kind)
		}
		agg.UniqueName = u
	}

	return agg, true, nil
}

func skipNumeric(data []byte, off int) (int, error) {
	if off > len(data) {
		return 0, errs.ErrTruncatedRecord
	}
	_, n, err := ReadNumeric(data[off:])

	return off + n, err
}

// IsAnonymous reports whether name is one of the placeholder names compilers
// give to unnamed aggregates, optionally nested in a qualified scope.
func IsAnonymous(name string) bool {
	const (
		unnamedTag = "<unnamed-tag>"
		unnamed    = "__unnamed"
	)

	return name == unnamedTag || name == unnamed ||
		strings.HasSuffix(name, "::"+unnamedTag) || strings.HasSuffix(name, "::"+unnamed)
}

// UDTIdentity returns the name-based identity of an aggregate record that is
// named, not anonymous, not a forward declaration and not function scoped.
// Records with such an identity are deduplicated by name instead of by their
// full bytes. ok is false for every other record.
func UDTIdentity(kind format.LeafKind, data []byte) (identity string, ok bool) {
	agg, isAgg, err := ParseAggregate(kind, data)
	if !isAgg || err != nil {
		return "", false
	}
	if agg.ForwardRef() || agg.Scoped() || agg.Anonymous() || agg.Name == "" {
		return "", false
	}

	if agg.HasUniqueName() && agg.UniqueName != "" {
		return agg.UniqueName, true
	}

	return agg.Name, true
}
