package gsi

import (
	"bytes"
	"slices"

	"github.com/arloliu/pdbgen/internal/hash"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
)

// hashEntry is one record referenced from a hash table.
type hashEntry struct {
	name   string
	offset uint32 // record offset in the symbol record stream
	refs   uint32
}

// bucketOf returns the hash bucket of a symbol name.
func bucketOf(name string) uint32 {
	return hash.StringV1String(name) % layout.GSIBuckets
}

// writeHashTable appends the GSI hash table for entries to bb:
//
//	GSIHashHeader | hash records | bucket bitmap | bucket offsets
//
// Hash records are grouped by bucket; within a bucket they are ordered by
// compareNames, then by record offset. Each hash record stores the record
// offset plus one and a reference count. Each non-empty bucket stores the
// position of its first hash record times 12, the in-memory size readers use
// for a hash record.
func writeHashTable(bb *pool.ByteBuffer, entries []hashEntry) {
	buckets := make([][]hashEntry, layout.GSIBuckets)
	for _, e := range entries {
		b := bucketOf(e.name)
		buckets[b] = append(buckets[b], e)
	}

	nonEmpty := 0
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		nonEmpty++
		slices.SortFunc(bucket, func(a, b hashEntry) int {
			if c := compareNames(a.name, b.name); c != 0 {
				return c
			}

			return int(a.offset) - int(b.offset)
		})
	}

	hdr := layout.GSIHashHeader{
		VerSignature: layout.GSIHashSignature,
		VerHdr:       layout.GSIHashVersion,
		HrSize:       uint32(len(entries) * layout.GSIHashRecordSize), //nolint: gosec
		NumBuckets:   uint32(layout.GSIBitmapWords*4 + nonEmpty*4),    //nolint: gosec
	}
	hdr.WriteTo(bb)

	var bitmap [layout.GSIBitmapWords]uint32
	starts := make([]uint32, 0, nonEmpty)
	written := 0
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		bitmap[i/32] |= 1 << (i % 32)
		starts = append(starts, uint32(written*layout.GSIOffsetCalcSize)) //nolint: gosec

		for _, e := range bucket {
			bb.WriteUint32(e.offset + 1)
			bb.WriteUint32(e.refs)
			written++
		}
	}

	for _, w := range bitmap {
		bb.WriteUint32(w)
	}
	for _, s := range starts {
		bb.WriteUint32(s)
	}
}

// compareNames orders names the way readers expect inside a bucket: shorter
// names first, then case-insensitively for ASCII names or bytewise
// otherwise.
func compareNames(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}

		return 1
	}

	if !isASCII(a) || !isASCII(b) {
		return bytes.Compare([]byte(a), []byte(b))
	}

	for i := 0; i < len(a); i++ {
		ca, cb := lower(a[i]), lower(b[i])
		if ca != cb {
			if ca < cb {
				return -1
			}

			return 1
		}
	}

	return 0
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}

	return c
}
