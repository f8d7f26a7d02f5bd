package codeview

import (
	"fmt"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
)

// numericPayload is the payload size following each numeric leaf kind.
var numericPayload = map[format.LeafKind]int{
	format.LF_CHAR:       1,
	format.LF_SHORT:      2,
	format.LF_USHORT:     2,
	format.LF_LONG:       4,
	format.LF_ULONG:      4,
	format.LF_REAL32:     4,
	format.LF_REAL64:     8,
	format.LF_REAL80:     10,
	format.LF_REAL128:    16,
	format.LF_QUADWORD:   8,
	format.LF_UQUADWORD:  8,
	format.LF_REAL48:     6,
	format.LF_COMPLEX32:  8,
	format.LF_COMPLEX64:  16,
	format.LF_COMPLEX80:  20,
	format.LF_COMPLEX128: 32,
	format.LF_OCTWORD:    16,
	format.LF_UOCTWORD:   16,
	format.LF_REAL16:     2,
}

// ReadNumeric decodes the numeric leaf at the start of data.
//
// Values below 0x8000 are stored inline in the leading u16. Integer leaves up
// to 64 bits are decoded into value (sign bits are kept as stored); wider and
// floating point leaves report value 0 and only their size.
//
// Returns:
//   - value: decoded integer value
//   - n: bytes consumed
//   - error: ErrTruncatedRecord or ErrMalformedRecord
func ReadNumeric(data []byte) (value uint64, n int, err error) {
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("%w: numeric leaf", errs.ErrTruncatedRecord)
	}

	engine := endian.GetLittleEndianEngine()
	leaf := engine.Uint16(data)
	if leaf < uint16(format.LF_NUMERIC) {
		return uint64(leaf), 2, nil
	}

	kind := format.LeafKind(leaf)
	if kind == format.LF_VARSTRING {
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("%w: varstring leaf", errs.ErrTruncatedRecord)
		}
		n = 4 + int(engine.Uint16(data[2:]))
		if n > len(data) {
			return 0, 0, fmt.Errorf("%w: varstring leaf", errs.ErrTruncatedRecord)
		}

		return 0, n, nil
	}

	size, ok := numericPayload[kind]
	if !ok {
		return 0, 0, fmt.Errorf("%w: numeric leaf %s", errs.ErrMalformedRecord, kind)
	}
	if len(data) < 2+size {
		return 0, 0, fmt.Errorf("%w: numeric leaf %s", errs.ErrTruncatedRecord, kind)
	}

	payload := data[2 : 2+size]
	switch kind {
	case format.LF_CHAR:
		value = uint64(payload[0])
	case format.LF_SHORT, format.LF_USHORT:
		value = uint64(engine.Uint16(payload))
	case format.LF_LONG, format.LF_ULONG:
		value = uint64(engine.Uint32(payload))
	case format.LF_QUADWORD, format.LF_UQUADWORD:
		value = engine.Uint64(payload)
	}

	return value, 2 + size, nil
}

// AppendNumeric appends v using the smallest unsigned numeric leaf.
func AppendNumeric(buf []byte, v uint64) []byte {
	engine := endian.GetLittleEndianEngine()
	switch {
	case v < uint64(format.LF_NUMERIC):
		return engine.AppendUint16(buf, uint16(v))
	case v <= 0xffff:
		buf = engine.AppendUint16(buf, uint16(format.LF_USHORT))
		return engine.AppendUint16(buf, uint16(v))
	case v <= 0xffffffff:
		buf = engine.AppendUint16(buf, uint16(format.LF_ULONG))
		return engine.AppendUint32(buf, uint32(v))
	default:
		buf = engine.AppendUint16(buf, uint16(format.LF_UQUADWORD))
		return engine.AppendUint64(buf, v)
	}
}
