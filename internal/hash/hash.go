// Package hash provides the hash functions used by the dedup tables and the
// on-disk hash tables of the program database.
package hash

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// Key computes the xxHash64 of data. It is the in-memory content key of every
// dedup table; it never reaches the output file.
func Key(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// KeyString computes the xxHash64 of s.
func KeyString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// StringV1 is the "rollover" string hash used by the named stream map, the
// /names bucket table and the globals/publics bucket assignment.
func StringV1(data []byte) uint32 {
	var result uint32

	n := len(data) / 4
	for i := 0; i < n; i++ {
		result ^= binary.LittleEndian.Uint32(data[i*4:])
	}

	rem := data[n*4:]
	if len(rem) >= 2 {
		result ^= uint32(binary.LittleEndian.Uint16(rem))
		rem = rem[2:]
	}
	if len(rem) == 1 {
		result ^= uint32(rem[0])
	}

	const toLowerMask = 0x20202020
	result |= toLowerMask
	result ^= result >> 11

	return result ^ (result >> 16)
}

// StringV1String is StringV1 over the bytes of s.
func StringV1String(s string) uint32 {
	return StringV1([]byte(s))
}

// JamCRC computes the CRC-32 variant without final inversion used for type
// record hashes.
func JamCRC(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}
