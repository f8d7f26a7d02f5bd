package layout

import (
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
)

// DbiHeader is the fixed header of the DBI stream (stream 3).
type DbiHeader struct {
	VersionSignature        uint32 // byte offset 0-3, always 0xffffffff
	VersionHeader           uint32 // byte offset 4-7
	Age                     uint32 // byte offset 8-11
	GlobalStreamIndex       uint16 // byte offset 12-13
	BuildNumber             uint16 // byte offset 14-15
	PublicStreamIndex       uint16 // byte offset 16-17
	PdbDllVersion           uint16 // byte offset 18-19
	SymRecordStreamIndex    uint16 // byte offset 20-21
	PdbDllRbld              uint16 // byte offset 22-23
	ModInfoSize             uint32 // byte offset 24-27
	SectionContributionSize uint32 // byte offset 28-31
	SectionMapSize          uint32 // byte offset 32-35
	SourceInfoSize          uint32 // byte offset 36-39
	TypeServerMapSize       uint32 // byte offset 40-43
	MFCTypeServerIndex      uint32 // byte offset 44-47
	OptionalDbgHeaderSize   uint32 // byte offset 48-51
	ECSubstreamSize         uint32 // byte offset 52-55
	Flags                   uint16 // byte offset 56-57
	Machine                 uint16 // byte offset 58-59
}

// BuildNumber packs a tool major/minor version in the "new format" DBI layout.
func BuildNumber(major, minor uint8) uint16 {
	return 0x8000 | uint16(major&0x7f)<<8 | uint16(minor)
}

// WriteTo appends the header to bb.
func (h *DbiHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(h.VersionSignature)
	bb.WriteUint32(h.VersionHeader)
	bb.WriteUint32(h.Age)
	bb.WriteUint16(h.GlobalStreamIndex)
	bb.WriteUint16(h.BuildNumber)
	bb.WriteUint16(h.PublicStreamIndex)
	bb.WriteUint16(h.PdbDllVersion)
	bb.WriteUint16(h.SymRecordStreamIndex)
	bb.WriteUint16(h.PdbDllRbld)
	bb.WriteUint32(h.ModInfoSize)
	bb.WriteUint32(h.SectionContributionSize)
	bb.WriteUint32(h.SectionMapSize)
	bb.WriteUint32(h.SourceInfoSize)
	bb.WriteUint32(h.TypeServerMapSize)
	bb.WriteUint32(h.MFCTypeServerIndex)
	bb.WriteUint32(h.OptionalDbgHeaderSize)
	bb.WriteUint32(h.ECSubstreamSize)
	bb.WriteUint16(h.Flags)
	bb.WriteUint16(h.Machine)
	bb.WriteUint32(0) // padding
}

// Parse parses the header from the first 64 bytes of data.
func (h *DbiHeader) Parse(data []byte) error {
	if len(data) < DbiHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.VersionSignature = engine.Uint32(data[0:4])
	h.VersionHeader = engine.Uint32(data[4:8])
	h.Age = engine.Uint32(data[8:12])
	h.GlobalStreamIndex = engine.Uint16(data[12:14])
	h.BuildNumber = engine.Uint16(data[14:16])
	h.PublicStreamIndex = engine.Uint16(data[16:18])
	h.PdbDllVersion = engine.Uint16(data[18:20])
	h.SymRecordStreamIndex = engine.Uint16(data[20:22])
	h.PdbDllRbld = engine.Uint16(data[22:24])
	h.ModInfoSize = engine.Uint32(data[24:28])
	h.SectionContributionSize = engine.Uint32(data[28:32])
	h.SectionMapSize = engine.Uint32(data[32:36])
	h.SourceInfoSize = engine.Uint32(data[36:40])
	h.TypeServerMapSize = engine.Uint32(data[40:44])
	h.MFCTypeServerIndex = engine.Uint32(data[44:48])
	h.OptionalDbgHeaderSize = engine.Uint32(data[48:52])
	h.ECSubstreamSize = engine.Uint32(data[52:56])
	h.Flags = engine.Uint16(data[56:58])
	h.Machine = engine.Uint16(data[58:60])

	return nil
}

// SectionContrib maps a range of an output section to the module that
// contributed it.
type SectionContrib struct {
	Section         uint16 // byte offset 0-1, 2 bytes padding follow
	Offset          uint32 // byte offset 4-7
	Size            uint32 // byte offset 8-11
	Characteristics uint32 // byte offset 12-15
	ModuleIndex     uint16 // byte offset 16-17, 2 bytes padding follow
	DataCrc         uint32 // byte offset 20-23
	RelocCrc        uint32 // byte offset 24-27
}

// WriteTo appends the entry to bb.
func (c *SectionContrib) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint16(c.Section)
	bb.WriteUint16(0)
	bb.WriteUint32(c.Offset)
	bb.WriteUint32(c.Size)
	bb.WriteUint32(c.Characteristics)
	bb.WriteUint16(c.ModuleIndex)
	bb.WriteUint16(0)
	bb.WriteUint32(c.DataCrc)
	bb.WriteUint32(c.RelocCrc)
}

// ParseSectionContrib parses a 28-byte section contribution entry.
func ParseSectionContrib(data []byte) (SectionContrib, error) {
	if len(data) < SectionContribSize {
		return SectionContrib{}, errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()

	return SectionContrib{
		Section:         engine.Uint16(data[0:2]),
		Offset:          engine.Uint32(data[4:8]),
		Size:            engine.Uint32(data[8:12]),
		Characteristics: engine.Uint32(data[12:16]),
		ModuleIndex:     engine.Uint16(data[16:18]),
		DataCrc:         engine.Uint32(data[20:24]),
		RelocCrc:        engine.Uint32(data[24:28]),
	}, nil
}

// ModInfoHeader is the fixed part of a module info entry. It is followed by
// the NUL-terminated module name and object name, padded to 4 bytes.
type ModInfoHeader struct {
	SectionContr         SectionContrib // byte offset 4-31
	Flags                uint16         // byte offset 32-33
	ModuleSymStream      uint16         // byte offset 34-35
	SymByteSize          uint32         // byte offset 36-39
	C11ByteSize          uint32         // byte offset 40-43
	C13ByteSize          uint32         // byte offset 44-47
	SourceFileCount      uint16         // byte offset 48-49
	SourceFileNameIndex  uint32         // byte offset 56-59
	PdbFilePathNameIndex uint32         // byte offset 60-63
}

// WriteTo appends the fixed part of the entry to bb.
func (m *ModInfoHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(0) // unused
	m.SectionContr.WriteTo(bb)
	bb.WriteUint16(m.Flags)
	bb.WriteUint16(m.ModuleSymStream)
	bb.WriteUint32(m.SymByteSize)
	bb.WriteUint32(m.C11ByteSize)
	bb.WriteUint32(m.C13ByteSize)
	bb.WriteUint16(m.SourceFileCount)
	bb.WriteUint16(0) // padding
	bb.WriteUint32(0) // unused
	bb.WriteUint32(m.SourceFileNameIndex)
	bb.WriteUint32(m.PdbFilePathNameIndex)
}

// Parse parses the fixed 64-byte part of a module info entry.
func (m *ModInfoHeader) Parse(data []byte) error {
	if len(data) < ModInfoHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	sc, err := ParseSectionContrib(data[4:32])
	if err != nil {
		return err
	}

	engine := endian.GetLittleEndianEngine()
	m.SectionContr = sc
	m.Flags = engine.Uint16(data[32:34])
	m.ModuleSymStream = engine.Uint16(data[34:36])
	m.SymByteSize = engine.Uint32(data[36:40])
	m.C11ByteSize = engine.Uint32(data[40:44])
	m.C13ByteSize = engine.Uint32(data[44:48])
	m.SourceFileCount = engine.Uint16(data[48:50])
	m.SourceFileNameIndex = engine.Uint32(data[56:60])
	m.PdbFilePathNameIndex = engine.Uint32(data[60:64])

	return nil
}

// SectionMapEntry describes one output section in the DBI section map.
type SectionMapEntry struct {
	Flags         uint16 // byte offset 0-1
	Ovl           uint16 // byte offset 2-3
	Group         uint16 // byte offset 4-5
	Frame         uint16 // byte offset 6-7
	SecName       uint16 // byte offset 8-9
	ClassName     uint16 // byte offset 10-11
	Offset        uint32 // byte offset 12-15
	SecByteLength uint32 // byte offset 16-19
}

// WriteTo appends the entry to bb.
func (e *SectionMapEntry) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint16(e.Flags)
	bb.WriteUint16(e.Ovl)
	bb.WriteUint16(e.Group)
	bb.WriteUint16(e.Frame)
	bb.WriteUint16(e.SecName)
	bb.WriteUint16(e.ClassName)
	bb.WriteUint32(e.Offset)
	bb.WriteUint32(e.SecByteLength)
}

// DbgHeader lists the stream indices of the optional debug streams, one
// slot per Dbg* constant. InvalidStreamIndex marks an absent stream.
type DbgHeader [DbgHeaderEntries]uint16

// NewDbgHeader returns a header with every slot absent.
func NewDbgHeader() DbgHeader {
	var h DbgHeader
	for i := range h {
		h[i] = InvalidStreamIndex
	}

	return h
}

// WriteTo appends the header to bb.
func (h *DbgHeader) WriteTo(bb *pool.ByteBuffer) {
	for _, idx := range h {
		bb.WriteUint16(idx)
	}
}

// ParseDbgHeader parses the optional debug header substream.
func ParseDbgHeader(data []byte) (DbgHeader, error) {
	h := NewDbgHeader()
	if len(data) < DbgHeaderEntries*2 {
		return h, errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	for i := range h {
		h[i] = engine.Uint16(data[i*2:])
	}

	return h, nil
}
