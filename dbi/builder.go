package dbi

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/input"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/strtab"
)

// COFF section characteristics mapped into section map flags.
const (
	scnMem16Bit   = 0x00020000
	scnMemExecute = 0x20000000
	scnMemRead    = 0x40000000
	scnMemWrite   = 0x80000000
)

// Header carries the DBI header fields owned by other components.
type Header struct {
	Age        uint32
	Machine    format.Machine
	BuildMajor uint8
	BuildMinor uint8

	GlobalStream    uint16
	PublicStream    uint16
	SymRecordStream uint16
}

// Builder accumulates the contents of the DBI stream.
//
// Note: Builder is NOT thread-safe.
type Builder struct {
	modules       []*ModuleRecord
	contributions []SectionContribution
	sections      []input.OutputSection
	dbg           layout.DbgHeader
}

// NewBuilder creates an empty builder. Every optional debug stream starts
// absent.
func NewBuilder() *Builder {
	return &Builder{dbg: layout.NewDbgHeader()}
}

// AddModule appends a module to the directory.
func (b *Builder) AddModule(name, objName string) *ModuleRecord {
	m := &ModuleRecord{
		Name:    name,
		ObjName: objName,
		index:   len(b.modules),
		stream:  layout.InvalidStreamIndex,
	}
	b.modules = append(b.modules, m)

	return m
}

// Modules returns the modules in directory order.
func (b *Builder) Modules() []*ModuleRecord {
	return b.modules
}

// AddContribution records a retained input section. The first contribution
// added for a module also becomes the module's own contribution.
func (b *Builder) AddContribution(c SectionContribution) {
	if int(c.Module) < len(b.modules) {
		m := b.modules[c.Module]
		if !m.hasContribution {
			m.contribution = c.entry()
			m.hasContribution = true
		}
	}
	b.contributions = append(b.contributions, c)
}

// Contributions returns the contributions ordered by section and offset.
func (b *Builder) Contributions() []SectionContribution {
	sorted := slices.Clone(b.contributions)
	slices.SortStableFunc(sorted, func(x, y SectionContribution) int {
		if c := cmp.Compare(x.Section, y.Section); c != 0 {
			return c
		}

		return cmp.Compare(x.Offset, y.Offset)
	})

	return sorted
}

// AddOutputSection appends an output section to the section map.
func (b *Builder) AddOutputSection(sec input.OutputSection) {
	b.sections = append(b.sections, sec)
}

// SetDbgStream records the stream of an optional debug stream slot, one of
// the layout.Dbg* constants.
func (b *Builder) SetDbgStream(slot int, index uint16) {
	b.dbg[slot] = index
}

// Finish writes the DBI stream to out:
//
//	DbiHeader | module info | section contributions | section map |
//	file info | type server map (empty) | EC names | optional debug header
//
// Returns:
//   - error: ErrOffsetOverflow when the module count does not fit the
//     16-bit module index, or the write error of out
func (b *Builder) Finish(out io.Writer, hdr Header) error {
	if len(b.modules) > 0xffff {
		return fmt.Errorf("%w: %d modules", errs.ErrOffsetOverflow, len(b.modules))
	}

	modInfo := b.moduleInfo()
	contribs := b.sectionContributions()
	secMap := b.sectionMap()
	fileInfo := b.fileInfo()
	ecNames := pool.NewByteBuffer(layout.StringTableHeaderSize + 16)
	if _, err := strtab.NewNamesTable().WriteTo(ecNames); err != nil {
		return err
	}
	dbg := pool.NewByteBuffer(layout.DbgHeaderEntries * 2)
	b.dbg.WriteTo(dbg)

	header := layout.DbiHeader{
		VersionSignature:        layout.DbiVersionSignature,
		VersionHeader:           layout.DbiVersionV70,
		Age:                     hdr.Age,
		GlobalStreamIndex:       hdr.GlobalStream,
		BuildNumber:             layout.BuildNumber(hdr.BuildMajor, hdr.BuildMinor),
		PublicStreamIndex:       hdr.PublicStream,
		SymRecordStreamIndex:    hdr.SymRecordStream,
		ModInfoSize:             uint32(modInfo.Len()),  //nolint: gosec
		SectionContributionSize: uint32(contribs.Len()), //nolint: gosec
		SectionMapSize:          uint32(secMap.Len()),   //nolint: gosec
		SourceInfoSize:          uint32(fileInfo.Len()), //nolint: gosec
		OptionalDbgHeaderSize:   uint32(dbg.Len()),      //nolint: gosec
		ECSubstreamSize:         uint32(ecNames.Len()),  //nolint: gosec
		Machine:                 uint16(hdr.Machine),
	}

	bb := pool.NewByteBuffer(layout.DbiHeaderSize + modInfo.Len() + contribs.Len() + secMap.Len() +
		fileInfo.Len() + ecNames.Len() + dbg.Len())
	header.WriteTo(bb)
	for _, part := range []*pool.ByteBuffer{modInfo, contribs, secMap, fileInfo, ecNames, dbg} {
		bb.MustWrite(part.Bytes())
	}

	_, err := bb.WriteTo(out)

	return err
}

// moduleInfo encodes one entry per module: the fixed header followed by the
// module and object names, padded to 4 bytes.
func (b *Builder) moduleInfo() *pool.ByteBuffer {
	bb := pool.NewByteBuffer(len(b.modules) * (layout.ModInfoHeaderSize + 64))
	for _, m := range b.modules {
		hdr := m.header()
		hdr.WriteTo(bb)
		bb.WriteCString(m.Name)
		bb.WriteCString(m.ObjName)
		bb.Align(4)
	}

	return bb
}

func (b *Builder) sectionContributions() *pool.ByteBuffer {
	bb := pool.NewByteBuffer(4 + len(b.contributions)*layout.SectionContribSize)
	bb.WriteUint32(layout.SectionContribVer60)
	for _, c := range b.Contributions() {
		entry := c.entry()
		entry.WriteTo(bb)
	}

	return bb
}

// sectionMap encodes one entry per output section plus a final entry for
// absolute symbols.
func (b *Builder) sectionMap() *pool.ByteBuffer {
	count := uint16(len(b.sections) + 1) //nolint: gosec

	bb := pool.NewByteBuffer(layout.SectionMapHeaderSize + int(count)*layout.SectionMapEntrySize)
	bb.WriteUint16(count) // segments
	bb.WriteUint16(count) // logical segments

	for i, sec := range b.sections {
		entry := layout.SectionMapEntry{
			Flags:         sectionMapFlags(sec.Characteristics),
			Frame:         uint16(i + 1), //nolint: gosec
			SecName:       0xffff,
			ClassName:     0xffff,
			SecByteLength: sec.VirtualSize,
		}
		entry.WriteTo(bb)
	}

	absolute := layout.SectionMapEntry{
		Flags:         layout.SectionMapIsAbsoluteAddress | layout.SectionMapAddressIs32Bit,
		Frame:         count,
		SecName:       0xffff,
		ClassName:     0xffff,
		SecByteLength: 0xffffffff,
	}
	absolute.WriteTo(bb)

	return bb
}

func sectionMapFlags(characteristics uint32) uint16 {
	var flags uint16 = layout.SectionMapIsSelector
	if characteristics&scnMemRead != 0 {
		flags |= layout.SectionMapRead
	}
	if characteristics&scnMemWrite != 0 {
		flags |= layout.SectionMapWrite
	}
	if characteristics&scnMemExecute != 0 {
		flags |= layout.SectionMapExecute
	}
	if characteristics&scnMem16Bit == 0 {
		flags |= layout.SectionMapAddressIs32Bit
	}

	return flags
}

// fileInfo encodes the source file substream:
//
//	u16 module count | u16 file count | u16 first file per module |
//	u16 files per module | u32 name offset per file | names | padding
//
// Each distinct name is stored once in the names buffer.
func (b *Builder) fileInfo() *pool.ByteBuffer {
	names := strtab.NewInterner()
	total := 0
	for _, m := range b.modules {
		total += len(m.sourceFiles)
	}

	bb := pool.NewByteBuffer(4 + len(b.modules)*4 + total*4)
	bb.WriteUint16(uint16(len(b.modules)))     //nolint: gosec
	bb.WriteUint16(uint16(min(total, 0xffff))) //nolint: gosec

	first := 0
	for _, m := range b.modules {
		bb.WriteUint16(uint16(first)) //nolint: gosec
		first += len(m.sourceFiles)
	}
	for _, m := range b.modules {
		bb.WriteUint16(uint16(min(len(m.sourceFiles), 0xffff))) //nolint: gosec
	}
	for _, m := range b.modules {
		for _, f := range m.sourceFiles {
			bb.WriteUint32(names.InternString(f))
		}
	}
	bb.MustWrite(names.Bytes())
	bb.Align(4)

	return bb
}
