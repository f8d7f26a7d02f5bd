// Package endian provides the byte order engine and alignment helpers used by
// every pdbgen writer.
//
// The program database format is little-endian on every platform, so unlike a
// general purpose codec there is no big-endian engine. The EndianEngine
// interface is kept so writers can use the append-style API of encoding/binary:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, signature)
//	buf = endian.AppendCString(buf, name)
//	buf = endian.AppendPadding(buf, 4)
//
// All functions in this package are safe for concurrent use.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n int, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// AppendPadding appends zero bytes until len(buf) is a multiple of align.
func AppendPadding(buf []byte, align int) []byte {
	for len(buf)%align != 0 {
		buf = append(buf, 0)
	}

	return buf
}

// AppendCString appends s followed by a NUL terminator.
func AppendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// CString returns the NUL-terminated string at the start of data and the number
// of bytes consumed including the terminator. ok is false when no terminator exists.
func CString(data []byte) (s string, n int, ok bool) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), i + 1, true
		}
	}

	return "", 0, false
}
