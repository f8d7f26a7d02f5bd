package strtab

import (
	"fmt"
	"io"

	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/hash"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
)

// stringsToBuckets maps a string count to the bucket count the reference
// toolchain uses for it. Counts past the table use twice the string count.
var stringsToBuckets = [][2]uint32{
	{1, 2}, {2, 4}, {4, 7}, {6, 11}, {9, 17}, {13, 26}, {20, 40}, {31, 61},
	{46, 92}, {70, 139}, {105, 209}, {157, 314}, {236, 472}, {355, 709},
	{532, 1064}, {799, 1597}, {1198, 2396}, {1798, 3595}, {2697, 5393},
	{4045, 8090}, {6068, 12136}, {9103, 18205}, {13654, 27308}, {20482, 40963},
	{30723, 61445}, {46084, 92168}, {69127, 138254}, {103690, 207380},
	{155536, 311071}, {233304, 466607}, {349956, 699911}, {524934, 1049867},
}

// BucketCount returns the number of hash buckets for n strings.
func BucketCount(n int) uint32 {
	for _, e := range stringsToBuckets {
		if uint32(n) <= e[0] { //nolint: gosec
			return e[1]
		}
	}

	return uint32(n) * 2 //nolint: gosec
}

// NamesTable is the string table stream: a pool whose offset 0 holds the
// empty string, followed by an open-addressing hash table over the offsets.
type NamesTable struct {
	*Interner
}

// NewNamesTable creates a table holding only the empty string.
func NewNamesTable() *NamesTable {
	in := NewInterner()
	in.InternString("")

	return &NamesTable{Interner: in}
}

// NameCount returns the number of non-empty strings.
func (n *NamesTable) NameCount() int {
	return n.Count() - 1
}

// WriteTo serializes the table:
//
//	StringTableHeader | pool | u32 bucket count | u32 buckets[] | u32 name count
//
// Buckets hold string offsets placed by hashStringV1 with linear probing; 0
// marks an empty bucket.
func (n *NamesTable) WriteTo(w io.Writer) (int64, error) {
	bb := pool.NewByteBuffer(layout.StringTableHeaderSize + n.Size() + 64)

	hdr := layout.StringTableHeader{
		Signature:   layout.StringTableMagic,
		HashVersion: layout.StringTableHashV1,
		ByteSize:    uint32(n.Size()), //nolint: gosec
	}
	hdr.WriteTo(bb)
	bb.MustWrite(n.Bytes())

	count := n.NameCount()
	buckets := make([]uint32, BucketCount(count))
	for _, off := range n.Offsets() {
		if off == 0 {
			continue
		}

		h := hash.StringV1(n.at(off))
		size := uint32(len(buckets)) //nolint: gosec
		placed := false
		for i := uint32(0); i < size; i++ {
			slot := (h + i) % size
			if buckets[slot] == 0 {
				buckets[slot] = off
				placed = true

				break
			}
		}
		if !placed {
			return 0, fmt.Errorf("%w: string table hash buckets full", errs.ErrOffsetOverflow)
		}
	}

	bb.WriteUint32(uint32(len(buckets))) //nolint: gosec
	for _, b := range buckets {
		bb.WriteUint32(b)
	}
	bb.WriteUint32(uint32(count)) //nolint: gosec

	return bb.WriteTo(w)
}

// ParseNames decodes a string table stream into its strings keyed by offset.
func ParseNames(data []byte) (map[uint32]string, error) {
	var hdr layout.StringTableHeader
	if err := hdr.Parse(data); err != nil {
		return nil, err
	}
	if hdr.Signature != layout.StringTableMagic {
		return nil, fmt.Errorf("%w: string table signature 0x%x", errs.ErrInvalidSignature, hdr.Signature)
	}

	end := layout.StringTableHeaderSize + int(hdr.ByteSize)
	if end > len(data) {
		return nil, fmt.Errorf("%w: string pool of %d bytes", errs.ErrTruncatedRecord, hdr.ByteSize)
	}

	pool := data[layout.StringTableHeaderSize:end]
	names := make(map[uint32]string)
	for off := 0; off < len(pool); {
		next := off
		for next < len(pool) && pool[next] != 0 {
			next++
		}
		names[uint32(off)] = string(pool[off:next]) //nolint: gosec
		off = next + 1
	}

	return names, nil
}
