// Package codeview decodes and encodes CodeView C13 records: the
// length-prefixed type, id and symbol records found in .debug$T and .debug$S
// sections, their numeric leaves, and the subsections of .debug$S.
//
// Each record kind has an explicit schema (see TypeRefs and LookupSymbol) that
// names every index field it carries. Kinds without a schema are rejected
// with errs.ErrUnknownRecordKind instead of being copied unchanged, because a
// record whose index fields are unknown cannot be remapped safely.
package codeview

import (
	"fmt"
	"iter"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
)

// RecordPrefixSize is the size of the u16 length and u16 kind of every record.
const RecordPrefixSize = 4

// MaxRecordSize is the largest record, including its prefix, a reader accepts.
const MaxRecordSize = 0xff00

// Record is one length-prefixed CodeView record.
type Record struct {
	Kind uint16
	Data []byte // payload after the kind field, padding included
}

// Size returns the encoded size of the record including its prefix.
func (r Record) Size() int {
	return RecordPrefixSize + len(r.Data)
}

// ParseRecords splits data into records.
//
// Returns:
//   - []Record: records in input order, Data aliasing data
//   - error: ErrTruncatedRecord when a length field runs past the end of data
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record

	engine := endian.GetLittleEndianEngine()
	for off := 0; off < len(data); {
		if len(data)-off < RecordPrefixSize {
			return nil, fmt.Errorf("%w: %d trailing bytes at offset %d", errs.ErrTruncatedRecord, len(data)-off, off)
		}

		length := int(engine.Uint16(data[off:]))
		if length < 2 || off+2+length > len(data) {
			return nil, fmt.Errorf("%w: record length %d at offset %d", errs.ErrTruncatedRecord, length, off)
		}

		records = append(records, Record{
			Kind: engine.Uint16(data[off+2:]),
			Data: data[off+4 : off+2+length],
		})
		off += 2 + length
	}

	return records, nil
}

// All iterates the records of a well-formed buffer and stops at the first
// malformed prefix.
func All(data []byte) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		engine := endian.GetLittleEndianEngine()
		for off := 0; off+RecordPrefixSize <= len(data); {
			length := int(engine.Uint16(data[off:]))
			if length < 2 || off+2+length > len(data) {
				return
			}
			if !yield(Record{Kind: engine.Uint16(data[off+2:]), Data: data[off+4 : off+2+length]}) {
				return
			}
			off += 2 + length
		}
	}
}

// AppendTypeRecord appends a type or id record to buf. The payload is padded
// to a 4-byte boundary with LF_PAD bytes (0xf0 + bytes remaining).
func AppendTypeRecord(buf []byte, kind uint16, payload []byte) []byte {
	size := endian.AlignUp(RecordPrefixSize+len(payload), 4)

	engine := endian.GetLittleEndianEngine()
	buf = engine.AppendUint16(buf, uint16(size-2)) //nolint: gosec
	buf = engine.AppendUint16(buf, kind)
	buf = append(buf, payload...)

	return AppendLeafPadding(buf, size-RecordPrefixSize-len(payload))
}

// AppendLeafPadding appends n LF_PAD bytes counting down to LF_PAD1.
func AppendLeafPadding(buf []byte, n int) []byte {
	for i := n; i > 0; i-- {
		buf = append(buf, byte(0xf0+i))
	}

	return buf
}

// AppendSymbolRecord appends a symbol record to buf, zero padded to 4 bytes.
func AppendSymbolRecord(buf []byte, kind uint16, payload []byte) []byte {
	size := endian.AlignUp(RecordPrefixSize+len(payload), 4)

	engine := endian.GetLittleEndianEngine()
	buf = engine.AppendUint16(buf, uint16(size-2)) //nolint: gosec
	buf = engine.AppendUint16(buf, kind)
	buf = append(buf, payload...)
	for i := RecordPrefixSize + len(payload); i < size; i++ {
		buf = append(buf, 0)
	}

	return buf
}

// TrimLeafPadding strips trailing LF_PAD bytes from a type record payload.
func TrimLeafPadding(payload []byte) []byte {
	pad := 0
	for pad < 3 && pad < len(payload) && payload[len(payload)-1-pad] == byte(0xf1+pad) {
		pad++
	}

	return payload[:len(payload)-pad]
}

// Name reads the NUL-terminated string starting at off.
func Name(data []byte, off int) (string, error) {
	if off > len(data) {
		return "", fmt.Errorf("%w: name offset %d beyond %d bytes", errs.ErrTruncatedRecord, off, len(data))
	}

	s, _, ok := endian.CString(data[off:])
	if !ok {
		return "", errs.ErrMissingTerminator
	}

	return s, nil
}
