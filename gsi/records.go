// Package gsi builds the global symbol directory of a program database: the
// shared symbol record stream, the globals hash table and the publics hash
// table with its address map.
//
// Records are appended to SymbolRecords once, on first insertion; the hash
// tables refer to them by byte offset. Both tables bucket their entries by
// hashStringV1 of the symbol name so a reader can look a name up without
// scanning every record.
package gsi

import (
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/internal/pool"
)

// SymbolRecords is the symbol record stream shared by globals and publics.
type SymbolRecords struct {
	buf *pool.ByteBuffer
}

// NewSymbolRecords creates an empty record stream.
func NewSymbolRecords() *SymbolRecords {
	return &SymbolRecords{buf: pool.NewByteBuffer(pool.StreamBufferDefaultSize)}
}

// Append adds one encoded record and returns its byte offset.
func (s *SymbolRecords) Append(record []byte) uint32 {
	off := uint32(s.buf.Len()) //nolint: gosec
	s.buf.MustWrite(record)

	return off
}

// At returns the record starting at off, prefix included.
func (s *SymbolRecords) At(off uint32) []byte {
	data := s.buf.Bytes()[off:]
	size := 2 + int(endian.GetLittleEndianEngine().Uint16(data))

	return data[:size]
}

// Len returns the stream size in bytes.
func (s *SymbolRecords) Len() int {
	return s.buf.Len()
}

// Bytes returns the stream contents.
func (s *SymbolRecords) Bytes() []byte {
	return s.buf.Bytes()
}
