// Package input describes what the encoder reads from a finished link: the
// object modules with their relocated debug sections, the final output
// section layout, the public symbols and the link environment.
//
// The encoder only reads through these types. Linkers implement Image over
// their own data structures; Static is a plain in-memory implementation used
// by tests and tools.
package input

import (
	"github.com/arloliu/pdbgen/format"
)

// Section names carrying CodeView data.
const (
	DebugTypesSection   = ".debug$T"
	DebugSymbolsSection = ".debug$S"
)

// Section is one input section of an object module.
type Section struct {
	Name            string
	Characteristics uint32

	// Data is the relocated section contents. Only debug sections need it.
	Data []byte

	// OutputSection is the 1-based index of the output section the linker
	// placed this section into, or 0 when the section was discarded.
	OutputSection uint16
	OutputOffset  uint32
	Size          uint32

	DataCRC  uint32
	RelocCRC uint32
}

// Retained reports whether the section made it into the image.
func (s *Section) Retained() bool {
	return s.OutputSection != 0
}

// IsDebugTypes reports whether the section holds type and id records.
func (s *Section) IsDebugTypes() bool {
	return s.Name == DebugTypesSection
}

// IsDebugSymbols reports whether the section holds symbol subsections.
func (s *Section) IsDebugSymbols() bool {
	return s.Name == DebugSymbolsSection
}

// Module is one object file contributing to the image.
type Module struct {
	// Path is the object path, or the member name when Archive is set.
	Path string

	// Archive is the path of the containing library, or "".
	Archive string

	Sections []Section

	// LinkerGenerated marks the synthetic module holding linker-produced
	// symbols. Its sections are ignored.
	LinkerGenerated bool
}

// ObjectName returns the name recorded as the module's object file: the
// containing archive when there is one, else the module path.
func (m *Module) ObjectName() string {
	if m.Archive != "" {
		return m.Archive
	}

	return m.Path
}

// OutputSection is one section of the final image.
type OutputSection struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	Characteristics uint32
}

// Public is an externally visible symbol with its final address.
type Public struct {
	Name string

	// Section is the 1-based output section index; 0 marks a symbol whose
	// definition was discarded.
	Section    uint16
	Offset     uint32
	IsFunction bool
}

// Environment describes the link that produced the image.
type Environment struct {
	WorkDir     string
	ProgramPath string
	OutputPath  string
	PDBPath     string
	CommandLine string
}

// Image is the final linked image as seen by the encoder.
type Image interface {
	Modules() []*Module
	OutputSections() []OutputSection

	// SectionHeaders returns the raw COFF section header table of the image,
	// copied verbatim into the section header stream.
	SectionHeaders() []byte

	Publics() []Public
	Machine() format.Machine
	Environment() Environment
}

// Static is an Image backed by plain values.
type Static struct {
	ModuleList  []*Module
	Sections    []OutputSection
	Headers     []byte
	PublicList  []Public
	MachineType format.Machine
	LinkEnv     Environment
}

var _ Image = (*Static)(nil)

func (s *Static) Modules() []*Module { return s.ModuleList }
func (s *Static) OutputSections() []OutputSection { return s.Sections }
func (s *Static) SectionHeaders() []byte { return s.Headers }
func (s *Static) Publics() []Public { return s.PublicList }
func (s *Static) Machine() format.Machine { return s.MachineType }
func (s *Static) Environment() Environment { return s.LinkEnv }
