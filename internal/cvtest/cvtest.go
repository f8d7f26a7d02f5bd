// Package cvtest builds CodeView sections for tests: .debug$T type sections,
// symbol subsections and complete .debug$S sections.
package cvtest

import (
	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/layout"
)

// Simple (built-in) type indices.
const (
	TVoid   uint32 = 0x0003
	TChar   uint32 = 0x0010
	TReal32 uint32 = 0x0040
	TInt4   uint32 = 0x0074
	TUInt4  uint32 = 0x0075
	TInt8   uint32 = 0x0076
	TPVoid  uint32 = 0x0603 // 64-bit pointer to void
)

// Pointer attributes for a 64-bit near pointer of size 8.
const Pointer64Attrs uint32 = 0x1000c

var le = endian.GetLittleEndianEngine()

func u16(buf []byte, v uint16) []byte { return le.AppendUint16(buf, v) }
func u32(buf []byte, v uint32) []byte { return le.AppendUint32(buf, v) }

// =============================================================================
// Type records
// =============================================================================

// Types builds a .debug$T section. Add returns the local index assigned to
// each record, starting at 0x1000.
type Types struct {
	buf  []byte
	next uint32
}

// NewTypes creates an empty type section.
func NewTypes() *Types {
	return &Types{buf: u32(nil, layout.CVSignatureC13), next: layout.FirstTypeIndex}
}

// Add appends one record and returns its local type index.
func (t *Types) Add(kind format.LeafKind, payload []byte) uint32 {
	t.buf = codeview.AppendTypeRecord(t.buf, uint16(kind), payload)
	ti := t.next
	t.next++

	return ti
}

// Bytes returns the section contents including the signature.
func (t *Types) Bytes() []byte {
	return t.buf
}

// Struct returns an LF_STRUCTURE payload.
func Struct(name string, fieldList uint32, size uint64, props uint16) []byte {
	return aggregate(name, "", fieldList, size, props)
}

// StructUnique returns an LF_STRUCTURE payload carrying a unique name.
func StructUnique(name, unique string, fieldList uint32, size uint64, props uint16) []byte {
	return aggregate(name, unique, fieldList, size, props|codeview.PropHasUniqueName)
}

func aggregate(name, unique string, fieldList uint32, size uint64, props uint16) []byte {
	var count uint16
	if fieldList != 0 {
		count = 1
	}

	buf := u16(nil, count)
	buf = u16(buf, props)
	buf = u32(buf, fieldList)
	buf = u32(buf, 0) // derived
	buf = u32(buf, 0) // vshape
	buf = codeview.AppendNumeric(buf, size)
	buf = endian.AppendCString(buf, name)
	if props&codeview.PropHasUniqueName != 0 {
		buf = endian.AppendCString(buf, unique)
	}

	return buf
}

// Member returns an LF_MEMBER field list entry.
func Member(typ uint32, offset uint64, name string) []byte {
	buf := u16(nil, uint16(format.LF_MEMBER))
	buf = u16(buf, 0x3) // public
	buf = u32(buf, typ)
	buf = codeview.AppendNumeric(buf, offset)

	return endian.AppendCString(buf, name)
}

// FieldList returns an LF_FIELDLIST payload. Each member is padded to 4
// bytes with LF_PAD bytes.
func FieldList(members ...[]byte) []byte {
	var buf []byte
	for _, m := range members {
		buf = append(buf, m...)
		buf = codeview.AppendLeafPadding(buf, endian.AlignUp(len(buf), 4)-len(buf))
	}

	return buf
}

// Pointer returns an LF_POINTER payload for a 64-bit pointer to ref.
func Pointer(ref uint32) []byte {
	return u32(u32(nil, ref), Pointer64Attrs)
}

// Modifier returns an LF_MODIFIER payload.
func Modifier(ref uint32, mods uint16) []byte {
	return u16(u16(u32(nil, ref), mods), 0)
}

// ArgList returns an LF_ARGLIST payload.
func ArgList(args ...uint32) []byte {
	buf := u32(nil, uint32(len(args))) //nolint: gosec
	for _, a := range args {
		buf = u32(buf, a)
	}

	return buf
}

// Procedure returns an LF_PROCEDURE payload.
func Procedure(ret, argList uint32, count uint16) []byte {
	buf := u32(nil, ret)
	buf = append(buf, 0, 0) // calling convention, options
	buf = u16(buf, count)

	return u32(buf, argList)
}

// FuncID returns an LF_FUNC_ID payload.
func FuncID(scope, typ uint32, name string) []byte {
	return endian.AppendCString(u32(u32(nil, scope), typ), name)
}

// StringID returns an LF_STRING_ID payload.
func StringID(substrings uint32, s string) []byte {
	return endian.AppendCString(u32(nil, substrings), s)
}

// UDTSrcLine returns an LF_UDT_SRC_LINE payload.
func UDTSrcLine(udt, file, line uint32) []byte {
	return u32(u32(u32(nil, udt), file), line)
}

// BuildInfo returns an LF_BUILDINFO payload.
func BuildInfo(args ...uint32) []byte {
	buf := u16(nil, uint16(len(args))) //nolint: gosec
	for _, a := range args {
		buf = u32(buf, a)
	}

	return buf
}

// =============================================================================
// Symbol records
// =============================================================================

// Symbols builds the contents of one DEBUG_S_SYMBOLS subsection.
type Symbols struct {
	buf []byte
}

// NewSymbols creates an empty symbol subsection.
func NewSymbols() *Symbols {
	return &Symbols{}
}

// Add appends one record and returns the builder.
func (s *Symbols) Add(kind format.SymbolKind, payload []byte) *Symbols {
	s.buf = codeview.AppendSymbolRecord(s.buf, uint16(kind), payload)
	return s
}

// Bytes returns the subsection contents.
func (s *Symbols) Bytes() []byte {
	return s.buf
}

// Proc returns a procedure payload (S_GPROC32 and friends) with zero scope links.
func Proc(typ uint32, off uint32, seg uint16, codeSize uint32, name string) []byte {
	buf := make([]byte, 12) // parent, end, next
	buf = u32(buf, codeSize)
	buf = u32(buf, 0) // debug start
	buf = u32(buf, codeSize)
	buf = u32(buf, typ)
	buf = u32(buf, off)
	buf = u16(buf, seg)
	buf = append(buf, 0) // flags

	return endian.AppendCString(buf, name)
}

// Block returns an S_BLOCK32 payload.
func Block(off uint32, seg uint16, length uint32, name string) []byte {
	buf := make([]byte, 8) // parent, end
	buf = u32(buf, length)
	buf = u32(buf, off)
	buf = u16(buf, seg)

	return endian.AppendCString(buf, name)
}

// InlineSite returns an S_INLINESITE payload with no annotations.
func InlineSite(inlinee uint32) []byte {
	return u32(make([]byte, 8), inlinee)
}

// Data returns an S_GDATA32/S_LDATA32/S_GTHREAD32/S_LTHREAD32 payload.
func Data(typ uint32, off uint32, seg uint16, name string) []byte {
	buf := u32(nil, typ)
	buf = u32(buf, off)
	buf = u16(buf, seg)

	return endian.AppendCString(buf, name)
}

// UDT returns an S_UDT payload.
func UDT(typ uint32, name string) []byte {
	return endian.AppendCString(u32(nil, typ), name)
}

// Constant returns an S_CONSTANT payload.
func Constant(typ uint32, value uint64, name string) []byte {
	return endian.AppendCString(codeview.AppendNumeric(u32(nil, typ), value), name)
}

// Local returns an S_LOCAL payload.
func Local(typ uint32, flags uint16, name string) []byte {
	return endian.AppendCString(u16(u32(nil, typ), flags), name)
}

// RegRel returns an S_REGREL32 payload.
func RegRel(off uint32, typ uint32, reg uint16, name string) []byte {
	return endian.AppendCString(u16(u32(u32(nil, off), typ), reg), name)
}

// FileStatic returns an S_FILESTATIC payload.
func FileStatic(typ, fileNameOffset uint32, flags uint16, name string) []byte {
	return endian.AppendCString(u16(u32(u32(nil, typ), fileNameOffset), flags), name)
}

// ObjName returns an S_OBJNAME payload.
func ObjName(signature uint32, name string) []byte {
	return endian.AppendCString(u32(nil, signature), name)
}

// BuildInfoSym returns an S_BUILDINFO payload.
func BuildInfoSym(id uint32) []byte {
	return u32(nil, id)
}

// =============================================================================
// .debug$S sections
// =============================================================================

// DebugS builds a .debug$S section from subsections.
type DebugS struct {
	buf     []byte
	strings []byte
}

// NewDebugS creates an empty .debug$S section.
func NewDebugS() *DebugS {
	return &DebugS{buf: u32(nil, layout.CVSignatureC13)}
}

// Symbols appends a DEBUG_S_SYMBOLS subsection.
func (d *DebugS) Symbols(s *Symbols) *DebugS {
	return d.Subsection(format.DEBUG_S_SYMBOLS, s.Bytes())
}

// Subsection appends an arbitrary subsection.
func (d *DebugS) Subsection(kind format.SubsectionKind, data []byte) *DebugS {
	d.buf = codeview.AppendSubsection(d.buf, kind, data)
	return d
}

// StringTable appends a DEBUG_S_STRINGTABLE subsection holding the empty
// string followed by names, and returns the offset of each name.
func (d *DebugS) StringTable(names ...string) []uint32 {
	pool := []byte{0}
	offsets := make([]uint32, len(names))
	for i, n := range names {
		offsets[i] = uint32(len(pool)) //nolint: gosec
		pool = endian.AppendCString(pool, n)
	}
	d.strings = pool
	d.Subsection(format.DEBUG_S_STRINGTABLE, pool)

	return offsets
}

// FileChecksums appends a DEBUG_S_FILECHKSMS subsection with one MD5-sized
// checksum per string table offset, and returns each entry's offset.
func (d *DebugS) FileChecksums(nameOffsets ...uint32) []uint32 {
	var data []byte
	offsets := make([]uint32, len(nameOffsets))
	for i, off := range nameOffsets {
		offsets[i] = uint32(len(data)) //nolint: gosec
		sum := make([]byte, 16)
		for j := range sum {
			sum[j] = byte(i + j)
		}
		data = codeview.AppendFileChecksum(data, codeview.FileChecksum{NameOffset: off, Kind: 1, Checksum: sum})
	}
	d.Subsection(format.DEBUG_S_FILECHKSMS, data)

	return offsets
}

// Lines appends a DEBUG_S_LINES subsection with one file block of one line
// referring to the checksum entry at checksumOffset.
func (d *DebugS) Lines(off uint32, seg uint16, codeSize uint32, checksumOffset uint32, line uint32) *DebugS {
	buf := u32(nil, off)
	buf = u16(buf, seg)
	buf = u16(buf, 0) // flags
	buf = u32(buf, codeSize)
	buf = u32(buf, checksumOffset)
	buf = u32(buf, 1)    // lines
	buf = u32(buf, 12+8) // block size
	buf = u32(buf, 0)    // code offset
	buf = u32(buf, line|0x80000000)

	return d.Subsection(format.DEBUG_S_LINES, buf)
}

// Bytes returns the section contents including the signature.
func (d *DebugS) Bytes() []byte {
	return d.buf
}
