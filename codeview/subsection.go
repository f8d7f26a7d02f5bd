package codeview

import (
	"fmt"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/layout"
)

// Subsection is one C13 debug subsection of a .debug$S section.
type Subsection struct {
	Kind format.SubsectionKind
	Data []byte
}

// StripSignature checks the leading C13 signature of a .debug$S or .debug$T
// section and returns the bytes after it.
func StripSignature(section []byte) ([]byte, error) {
	if len(section) < 4 {
		return nil, fmt.Errorf("%w: section of %d bytes", errs.ErrInvalidSignature, len(section))
	}

	sig := endian.GetLittleEndianEngine().Uint32(section)
	if sig != layout.CVSignatureC13 {
		return nil, fmt.Errorf("%w: got %d, want %d", errs.ErrInvalidSignature, sig, layout.CVSignatureC13)
	}

	return section[4:], nil
}

// ParseSubsections splits the body of a .debug$S section (after the
// signature) into subsections. Each subsection is 4-byte aligned.
func ParseSubsections(data []byte) ([]Subsection, error) {
	var subs []Subsection

	engine := endian.GetLittleEndianEngine()
	for off := 0; off < len(data); {
		if len(data)-off < 8 {
			return nil, fmt.Errorf("%w: subsection header at offset %d", errs.ErrTruncatedRecord, off)
		}

		kind := format.SubsectionKind(engine.Uint32(data[off:]))
		length := int(engine.Uint32(data[off+4:]))
		start := off + 8
		if length > len(data)-start {
			return nil, fmt.Errorf("%w: %s of %d bytes at offset %d", errs.ErrTruncatedRecord, kind, length, off)
		}

		subs = append(subs, Subsection{Kind: kind, Data: data[start : start+length]})
		off = min(endian.AlignUp(start+length, 4), len(data))
	}

	return subs, nil
}

// AppendSubsection appends a subsection header, its data and padding to buf.
func AppendSubsection(buf []byte, kind format.SubsectionKind, data []byte) []byte {
	engine := endian.GetLittleEndianEngine()
	buf = engine.AppendUint32(buf, uint32(kind))
	buf = engine.AppendUint32(buf, uint32(len(data))) //nolint: gosec
	buf = append(buf, data...)

	return endian.AppendPadding(buf, 4)
}

// FileChecksum is one entry of a DEBUG_S_FILECHKSMS subsection.
type FileChecksum struct {
	NameOffset uint32 // offset into the string table in effect
	Kind       uint8
	Checksum   []byte
}

// ParseFileChecksums decodes a DEBUG_S_FILECHKSMS subsection. The returned
// offsets are the byte offsets of each entry inside data, which is how line
// subsections refer to files.
func ParseFileChecksums(data []byte) ([]FileChecksum, []uint32, error) {
	var (
		entries []FileChecksum
		offsets []uint32
	)

	engine := endian.GetLittleEndianEngine()
	for off := 0; off < len(data); {
		if len(data)-off < 6 {
			return nil, nil, fmt.Errorf("%w: file checksum at offset %d", errs.ErrTruncatedRecord, off)
		}

		size := int(data[off+4])
		if off+6+size > len(data) {
			return nil, nil, fmt.Errorf("%w: file checksum at offset %d", errs.ErrTruncatedRecord, off)
		}

		entries = append(entries, FileChecksum{
			NameOffset: engine.Uint32(data[off:]),
			Kind:       data[off+5],
			Checksum:   data[off+6 : off+6+size],
		})
		offsets = append(offsets, uint32(off)) //nolint: gosec
		off = min(endian.AlignUp(off+6+size, 4), len(data))
	}

	return entries, offsets, nil
}

// AppendFileChecksum appends one checksum entry, padded to 4 bytes.
func AppendFileChecksum(buf []byte, c FileChecksum) []byte {
	engine := endian.GetLittleEndianEngine()
	buf = engine.AppendUint32(buf, c.NameOffset)
	buf = append(buf, byte(len(c.Checksum)), c.Kind) //nolint: gosec
	buf = append(buf, c.Checksum...)

	return endian.AppendPadding(buf, 4)
}
