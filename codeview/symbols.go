package codeview

import (
	"fmt"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
)

// ScopeRole classifies a symbol record for lexical scope tracking.
type ScopeRole uint8

const (
	ScopeNone  ScopeRole = iota // neither opens nor closes a scope
	ScopeOpen                   // procedure, thunk, block, inline site or separated code
	ScopeClose                  // S_END, S_PROC_ID_END or S_INLINESITE_END
)

// Offsets of the scope link fields shared by every scope opener.
const (
	ParentOffset = 0
	EndOffset    = 4
	NextOffset   = 8 // procedures and thunks only
)

// noField marks an absent field offset in a SymbolSchema.
const noField = -1

// SymbolSchema is the layout of one symbol kind.
type SymbolSchema struct {
	Kind    format.SymbolKind
	Scope   ScopeRole
	MinSize int
	Refs    []IndexRef

	// SegmentOffset locates the u16 section index of address-carrying
	// symbols, or -1. A zero section marks code or data discarded before
	// the image was laid out.
	SegmentOffset int

	// NameOffset locates the NUL-terminated name, or -1. When NumericName is
	// set, a numeric leaf sits at NameOffset and the name follows it.
	NameOffset  int
	NumericName bool

	// IDList marks records holding a u32 count followed by that many ids.
	IDList bool
}

type symbolLayout struct {
	scope   ScopeRole
	minSize int
	refs    []IndexRef
	segment int
	name    int
	numeric bool
	idList  bool
}

func procLayout(space IndexSpace) symbolLayout {
	return symbolLayout{scope: ScopeOpen, minSize: 36, refs: []IndexRef{{Offset: 24, Space: space}}, segment: 32, name: 35}
}

func dataLayout() symbolLayout {
	return symbolLayout{minSize: 11, refs: []IndexRef{typeRef(0)}, segment: 8, name: 10}
}

func plainLayout(minSize int) symbolLayout {
	return symbolLayout{minSize: minSize, segment: noField, name: noField}
}

var symbolLayouts = map[format.SymbolKind]symbolLayout{
	format.S_GPROC32:        procLayout(SpaceType),
	format.S_LPROC32:        procLayout(SpaceType),
	format.S_LPROC32_DPC:    procLayout(SpaceType),
	format.S_GPROC32_ID:     procLayout(SpaceID),
	format.S_LPROC32_ID:     procLayout(SpaceID),
	format.S_LPROC32_DPC_ID: procLayout(SpaceID),
	format.S_THUNK32:        {scope: ScopeOpen, minSize: 22, segment: 16, name: 21},
	format.S_BLOCK32:        {scope: ScopeOpen, minSize: 19, segment: 16, name: 18},
	format.S_SEPCODE:        {scope: ScopeOpen, minSize: 28, segment: 24, name: noField},
	format.S_INLINESITE:     {scope: ScopeOpen, minSize: 12, refs: []IndexRef{idRef(8)}, segment: noField, name: noField},
	format.S_INLINESITE2:    {scope: ScopeOpen, minSize: 16, refs: []IndexRef{idRef(8)}, segment: noField, name: noField},

	format.S_END:            {scope: ScopeClose, segment: noField, name: noField},
	format.S_PROC_ID_END:    {scope: ScopeClose, segment: noField, name: noField},
	format.S_INLINESITE_END: {scope: ScopeClose, segment: noField, name: noField},

	format.S_GDATA32:   dataLayout(),
	format.S_LDATA32:   dataLayout(),
	format.S_GTHREAD32: dataLayout(),
	format.S_LTHREAD32: dataLayout(),
	format.S_GMANDATA:  dataLayout(),
	format.S_LMANDATA:  dataLayout(),

	format.S_CONSTANT:      {minSize: 7, refs: []IndexRef{typeRef(0)}, segment: noField, name: 4, numeric: true},
	format.S_MANCONSTANT:   {minSize: 7, refs: []IndexRef{typeRef(0)}, segment: noField, name: 4, numeric: true},
	format.S_UDT:           {minSize: 5, refs: []IndexRef{typeRef(0)}, segment: noField, name: 4},
	format.S_LOCAL:         {minSize: 7, refs: []IndexRef{typeRef(0)}, segment: noField, name: 6},
	format.S_REGISTER:      {minSize: 7, refs: []IndexRef{typeRef(0)}, segment: noField, name: 6},
	format.S_BPREL32:       {minSize: 9, refs: []IndexRef{typeRef(4)}, segment: noField, name: 8},
	format.S_REGREL32:      {minSize: 11, refs: []IndexRef{typeRef(4)}, segment: noField, name: 10},
	format.S_FILESTATIC:    {minSize: 11, refs: []IndexRef{typeRef(0)}, segment: noField, name: 10},
	format.S_LABEL32:       {minSize: 8, segment: 4, name: 7},
	format.S_CALLSITEINFO:  {minSize: 12, refs: []IndexRef{typeRef(8)}, segment: 4, name: noField},
	format.S_HEAPALLOCSITE: {minSize: 12, refs: []IndexRef{typeRef(8)}, segment: 4, name: noField},
	format.S_BUILDINFO:     {minSize: 4, refs: []IndexRef{idRef(0)}, segment: noField, name: noField},
	format.S_CALLEES:       {minSize: 4, segment: noField, name: noField, idList: true},
	format.S_CALLERS:       {minSize: 4, segment: noField, name: noField, idList: true},
	format.S_INLINEES:      {minSize: 4, segment: noField, name: noField, idList: true},
	format.S_OBJNAME:       {minSize: 5, segment: noField, name: 4},
	format.S_UNAMESPACE:    {minSize: 1, segment: noField, name: 0},
	format.S_PUB32:         {minSize: 11, segment: 8, name: 10},
	format.S_PROCREF:       {minSize: 11, segment: noField, name: 10},
	format.S_LPROCREF:      {minSize: 11, segment: noField, name: 10},
	format.S_DATAREF:       {minSize: 11, segment: noField, name: 10},

	format.S_COMPILE2:                             plainLayout(16),
	format.S_COMPILE3:                             plainLayout(22),
	format.S_ENVBLOCK:                             plainLayout(1),
	format.S_FRAMEPROC:                            plainLayout(26),
	format.S_FRAMECOOKIE:                          plainLayout(8),
	format.S_ANNOTATION:                           plainLayout(8),
	format.S_TRAMPOLINE:                           plainLayout(16),
	format.S_SECTION:                              plainLayout(17),
	format.S_COFFGROUP:                            plainLayout(15),
	format.S_EXPORT:                               plainLayout(5),
	format.S_ARMSWITCHTABLE:                       plainLayout(24),
	format.S_DEFRANGE:                             plainLayout(12),
	format.S_DEFRANGE_SUBFIELD:                    plainLayout(16),
	format.S_DEFRANGE_REGISTER:                    plainLayout(12),
	format.S_DEFRANGE_FRAMEPOINTER_REL:            plainLayout(12),
	format.S_DEFRANGE_SUBFIELD_REGISTER:           plainLayout(16),
	format.S_DEFRANGE_FRAMEPOINTER_REL_FULL_SCOPE: plainLayout(4),
	format.S_DEFRANGE_REGISTER_REL:                plainLayout(16),
}

// LookupSymbol returns the schema of a symbol kind.
//
// Returns:
//   - SymbolSchema: layout of the kind
//   - error: ErrUnknownRecordKind when the kind has no schema
func LookupSymbol(kind format.SymbolKind) (SymbolSchema, error) {
	l, ok := symbolLayouts[kind]
	if !ok {
		return SymbolSchema{}, fmt.Errorf("%w: %s", errs.ErrUnknownRecordKind, kind)
	}

	return SymbolSchema{
		Kind:          kind,
		Scope:         l.scope,
		MinSize:       l.minSize,
		Refs:          l.refs,
		SegmentOffset: l.segment,
		NameOffset:    l.name,
		NumericName:   l.numeric,
		IDList:        l.idList,
	}, nil
}

// Validate checks that data is long enough for the schema.
func (s SymbolSchema) Validate(data []byte) error {
	if len(data) < s.MinSize {
		return fmt.Errorf("%w: %s of %d bytes, need %d", errs.ErrTruncatedRecord, s.Kind, len(data), s.MinSize)
	}

	return nil
}

// IndexRefs returns every index field of a symbol payload.
func (s SymbolSchema) IndexRefs(data []byte) ([]IndexRef, error) {
	if err := s.Validate(data); err != nil {
		return nil, err
	}
	if !s.IDList {
		return s.Refs, nil
	}

	count := int(endian.GetLittleEndianEngine().Uint32(data))
	if count > (len(data)-4)/4 {
		return nil, fmt.Errorf("%w: %s lists %d ids", errs.ErrTruncatedRecord, s.Kind, count)
	}

	refs := make([]IndexRef, count)
	for i := range refs {
		refs[i] = idRef(4 + i*4)
	}

	return refs, nil
}

// Segment returns the section index of an address-carrying symbol. ok is
// false when the kind carries no address.
func (s SymbolSchema) Segment(data []byte) (seg uint16, ok bool) {
	if s.SegmentOffset == noField || len(data) < s.SegmentOffset+2 {
		return 0, false
	}

	return endian.GetLittleEndianEngine().Uint16(data[s.SegmentOffset:]), true
}

// Name returns the symbol name, or "" for kinds without one.
func (s SymbolSchema) Name(data []byte) (string, error) {
	if s.NameOffset == noField {
		return "", nil
	}

	off := s.NameOffset
	if s.NumericName {
		if off > len(data) {
			return "", fmt.Errorf("%w: %s", errs.ErrTruncatedRecord, s.Kind)
		}
		_, n, err := ReadNumeric(data[off:])
		if err != nil {
			return "", fmt.Errorf("%s: %w", s.Kind, err)
		}
		off += n
	}

	name, err := Name(data, off)
	if err != nil {
		return "", fmt.Errorf("%s name: %w", s.Kind, err)
	}

	return name, nil
}

// SymbolName decodes the name of a symbol record of any known kind.
func SymbolName(kind format.SymbolKind, data []byte) (string, error) {
	schema, err := LookupSymbol(kind)
	if err != nil {
		return "", err
	}

	return schema.Name(data)
}
