// Package inspect reads program databases back: the info stream, the DBI
// module directory, the type table sizes and the global and public symbol
// directories. It parses only what pdbgen writes and is used by the CLI and
// by round-trip tests.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/msf"
	"github.com/arloliu/pdbgen/strtab"
)

// Fixed stream indices.
const (
	InfoStream = 1
	TPIStream  = 2
	DBIStream  = 3
	IPIStream  = 4
)

// Info is the content of the info stream.
type Info struct {
	Version      uint32               `json:"version" yaml:"version"`
	Signature    uint32               `json:"signature" yaml:"signature"`
	Age          uint32               `json:"age" yaml:"age"`
	GUID         uuid.UUID            `json:"guid" yaml:"guid"`
	NamedStreams []layout.NamedStream `json:"named_streams" yaml:"named_streams"`
	Features     []uint32             `json:"features,omitempty" yaml:"features,omitempty"`
}

// Module is one entry of the DBI module directory.
type Module struct {
	Name         string                `json:"name" yaml:"name"`
	ObjectFile   string                `json:"object_file" yaml:"object_file"`
	SymbolStream uint16                `json:"symbol_stream" yaml:"symbol_stream"`
	SymbolSize   uint32                `json:"symbol_size" yaml:"symbol_size"`
	C11Size      uint32                `json:"c11_size" yaml:"c11_size"`
	C13Size      uint32                `json:"c13_size" yaml:"c13_size"`
	SourceFiles  []string              `json:"source_files,omitempty" yaml:"source_files,omitempty"`
	Contribution layout.SectionContrib `json:"-" yaml:"-"`
}

// Section is one entry of the DBI section map.
type Section struct {
	Index  uint16 `json:"index" yaml:"index"`
	Flags  uint16 `json:"flags" yaml:"flags"`
	Length uint32 `json:"length" yaml:"length"`
}

// File is a parsed program database.
type File struct {
	Info          Info      `json:"info" yaml:"info"`
	StreamSizes   []int     `json:"stream_sizes" yaml:"stream_sizes"`
	Machine       uint16    `json:"machine" yaml:"machine"`
	BuildNumber   uint16    `json:"build_number" yaml:"build_number"`
	Modules       []Module  `json:"modules" yaml:"modules"`
	TypeCount     int       `json:"type_count" yaml:"type_count"`
	IDCount       int       `json:"id_count" yaml:"id_count"`
	GlobalCount   int       `json:"global_count" yaml:"global_count"`
	PublicCount   int       `json:"public_count" yaml:"public_count"`
	NameCount     int       `json:"name_count" yaml:"name_count"`
	SectionHeader uint16    `json:"section_header_stream" yaml:"section_header_stream"`
	Sections      []Section `json:"sections" yaml:"sections"`

	Contributions []layout.SectionContrib `json:"-" yaml:"-"`
	DbiHeader     layout.DbiHeader        `json:"-" yaml:"-"`
	DbgStreams    layout.DbgHeader        `json:"-" yaml:"-"`

	msf   *msf.Reader
	names map[uint32]string
}

// Open reads the program database at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Read(bytes.NewReader(data), int64(len(data)))
}

// Read parses a program database from r.
//
// Parameters:
//   - r: file contents
//   - size: file size in bytes
//
// Returns:
//   - *File: the parsed database
//   - error: container errors from msf, ErrInvalidHeaderSize or
//     ErrMalformedRecord on an inconsistent stream
func Read(r io.ReaderAt, size int64) (*File, error) {
	m, err := msf.Open(r, size)
	if err != nil {
		return nil, err
	}

	f := &File{msf: m}
	for i := range m.NumStreams() {
		n, err := m.StreamSize(uint16(i)) //nolint: gosec
		if err != nil {
			return nil, err
		}
		f.StreamSizes = append(f.StreamSizes, n)
	}

	if err := f.readInfo(); err != nil {
		return nil, fmt.Errorf("info stream: %w", err)
	}
	if f.TypeCount, err = f.readTypeCount(TPIStream); err != nil {
		return nil, fmt.Errorf("type stream: %w", err)
	}
	if f.IDCount, err = f.readTypeCount(IPIStream); err != nil {
		return nil, fmt.Errorf("id stream: %w", err)
	}
	if err := f.readNames(); err != nil {
		return nil, fmt.Errorf("names stream: %w", err)
	}
	if err := f.readDBI(); err != nil {
		return nil, fmt.Errorf("dbi stream: %w", err)
	}
	if err := f.readDirectoryCounts(); err != nil {
		return nil, err
	}

	return f, nil
}

// Stream returns the raw contents of stream i.
func (f *File) Stream(i uint16) ([]byte, error) {
	return f.msf.ReadStream(i)
}

// NamedStream returns the index of the named stream, if present.
func (f *File) NamedStream(name string) (uint16, bool) {
	for _, s := range f.Info.NamedStreams {
		if s.Name == name {
			return s.Index, true
		}
	}

	return 0, false
}

// Name returns the /names string at off.
func (f *File) Name(off uint32) (string, bool) {
	s, ok := f.names[off]
	return s, ok
}

func (f *File) readInfo() error {
	data, err := f.msf.ReadStream(InfoStream)
	if err != nil {
		return err
	}

	var hdr layout.InfoHeader
	if err := hdr.Parse(data); err != nil {
		return err
	}
	f.Info = Info{Version: hdr.Version, Signature: hdr.Signature, Age: hdr.Age, GUID: hdr.GUID}

	named, n, err := layout.ParseNamedStreamMap(data[layout.InfoHeaderSize:])
	if err != nil {
		return err
	}
	f.Info.NamedStreams = named

	rest := data[layout.InfoHeaderSize+n:]
	if len(rest) < 4 {
		return errs.ErrInvalidHeaderSize
	}
	engine := endian.GetLittleEndianEngine()
	for rest = rest[4:]; len(rest) >= 4; rest = rest[4:] {
		f.Info.Features = append(f.Info.Features, engine.Uint32(rest))
	}

	return nil
}

func (f *File) readTypeCount(stream uint16) (int, error) {
	data, err := f.msf.ReadStream(stream)
	if err != nil {
		return 0, err
	}

	var hdr layout.TpiHeader
	if err := hdr.Parse(data); err != nil {
		return 0, err
	}
	if hdr.TypeIndexEnd < hdr.TypeIndexBegin {
		return 0, fmt.Errorf("%w: index range [0x%x, 0x%x)", errs.ErrMalformedRecord, hdr.TypeIndexBegin, hdr.TypeIndexEnd)
	}

	return int(hdr.TypeIndexEnd - hdr.TypeIndexBegin), nil
}

func (f *File) readNames() error {
	idx, ok := f.NamedStream("/names")
	if !ok {
		f.names = map[uint32]string{}
		return nil
	}

	data, err := f.msf.ReadStream(idx)
	if err != nil {
		return err
	}
	f.names, err = strtab.ParseNames(data)
	if err != nil {
		return err
	}
	for off := range f.names {
		if off != 0 {
			f.NameCount++
		}
	}

	return nil
}
