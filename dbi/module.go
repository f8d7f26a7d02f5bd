// Package dbi assembles the debug info stream: the directory of modules,
// section contributions, the section map and the per-module source file
// lists, plus the stream indices of the optional debug streams.
package dbi

import (
	"github.com/arloliu/pdbgen/layout"
)

// ModuleRecord is the DBI entry of one module.
type ModuleRecord struct {
	Name    string
	ObjName string

	index       int
	stream      uint16
	symbolsSize uint32
	c11Size     uint32
	c13Size     uint32
	sourceFiles []string

	contribution    layout.SectionContrib
	hasContribution bool
}

// Index returns the module's 0-based position in the directory.
func (m *ModuleRecord) Index() int {
	return m.index
}

// Stream returns the module stream index, or layout.InvalidStreamIndex when
// the module has no stream.
func (m *ModuleRecord) Stream() uint16 {
	return m.stream
}

// SetStream records the index of the module's symbol stream.
func (m *ModuleRecord) SetStream(index uint16) {
	m.stream = index
}

// SetSizes records the sizes of the substreams of the module stream.
// symbols includes the 4-byte stream signature.
func (m *ModuleRecord) SetSizes(symbols, c11, c13 uint32) {
	m.symbolsSize = symbols
	m.c11Size = c11
	m.c13Size = c13
}

// Sizes returns the sizes recorded by SetSizes.
func (m *ModuleRecord) Sizes() (symbols, c11, c13 uint32) {
	return m.symbolsSize, m.c11Size, m.c13Size
}

// AddSourceFile appends a file referenced by the module's line information.
func (m *ModuleRecord) AddSourceFile(name string) {
	m.sourceFiles = append(m.sourceFiles, name)
}

// SourceFiles returns the module's files in the order they were added.
func (m *ModuleRecord) SourceFiles() []string {
	return m.sourceFiles
}

// Contribution returns the module's first section contribution. ok is false
// when the module contributed no section.
func (m *ModuleRecord) Contribution() (layout.SectionContrib, bool) {
	return m.contribution, m.hasContribution
}

func (m *ModuleRecord) header() layout.ModInfoHeader {
	sc := m.contribution
	if !m.hasContribution {
		sc = layout.SectionContrib{Section: layout.InvalidStreamIndex, ModuleIndex: uint16(m.index)} //nolint: gosec
	}

	return layout.ModInfoHeader{
		SectionContr:    sc,
		ModuleSymStream: m.stream,
		SymByteSize:     m.symbolsSize,
		C11ByteSize:     m.c11Size,
		C13ByteSize:     m.c13Size,
		SourceFileCount: uint16(min(len(m.sourceFiles), 0xffff)), //nolint: gosec
	}
}

// SectionContribution maps a range of an output section to the module that
// placed it there.
type SectionContribution struct {
	Section         uint16 // 1-based output section
	Offset          uint32
	Size            uint32
	Characteristics uint32
	Module          uint16
	DataCRC         uint32
	RelocCRC        uint32
}

func (c SectionContribution) entry() layout.SectionContrib {
	return layout.SectionContrib{
		Section:         c.Section,
		Offset:          c.Offset,
		Size:            c.Size,
		Characteristics: c.Characteristics,
		ModuleIndex:     c.Module,
		DataCrc:         c.DataCRC,
		RelocCrc:        c.RelocCRC,
	}
}
