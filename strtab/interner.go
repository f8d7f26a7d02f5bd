// Package strtab deduplicates NUL-terminated strings into a single pool and
// serializes the pool as the program database string table ("/names").
package strtab

import (
	"bytes"
	"slices"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/internal/collision"
	"github.com/arloliu/pdbgen/internal/hash"
	"github.com/arloliu/pdbgen/internal/pool"
)

// Interner assigns each distinct string a stable byte offset in a pool of
// NUL-terminated strings. Offsets never change once assigned.
//
// An Interner is not safe for concurrent use.
type Interner struct {
	pool    *pool.ByteBuffer
	tracker *collision.Tracker
	offsets []uint32 // offsets[id] is the pool offset of the id-th distinct string
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{
		pool:    pool.NewByteBuffer(pool.RecordBufferDefaultSize),
		tracker: collision.NewTracker(),
	}
}

// Intern returns the pool offset of s, appending s and a terminator to the
// pool on first sight. Pool strings are NUL-terminated, so s is cut at its
// first NUL byte.
func (in *Interner) Intern(s []byte) uint32 {
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	key := hash.Key(s)

	id, found := in.tracker.Find(key, func(id int) bool {
		return bytes.Equal(in.at(in.offsets[id]), s)
	})
	if found {
		return in.offsets[id]
	}

	off := uint32(in.pool.Len()) //nolint: gosec
	in.pool.MustWrite(s)
	_ = in.pool.WriteByte(0)

	in.tracker.Add(key, len(in.offsets))
	in.offsets = append(in.offsets, off)

	return off
}

// InternString is Intern for a string value.
func (in *Interner) InternString(s string) uint32 {
	return in.Intern([]byte(s))
}

// Lookup returns the string stored at off. ok is false when off is not the
// start of an interned string.
func (in *Interner) Lookup(off uint32) (s string, ok bool) {
	if _, found := slices.BinarySearch(in.offsets, off); !found {
		return "", false
	}

	return string(in.at(off)), true
}

// Count returns the number of distinct strings.
func (in *Interner) Count() int {
	return len(in.offsets)
}

// Size returns the pool size in bytes.
func (in *Interner) Size() int {
	return in.pool.Len()
}

// Bytes returns the pool. The slice aliases the interner's storage.
func (in *Interner) Bytes() []byte {
	return in.pool.Bytes()
}

// Offsets returns the offsets of every distinct string in insertion order.
func (in *Interner) Offsets() []uint32 {
	return in.offsets
}

// at returns the string bytes at off, without the terminator.
func (in *Interner) at(off uint32) []byte {
	data := in.pool.Bytes()[off:]
	s, _, _ := endian.CString(data)

	return data[:len(s)]
}
