package typedb

import (
	"fmt"
	"math"

	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/msf"
)

// IndexOffset marks the byte offset of a record inside the record area, so a
// reader can seek near a type index without scanning every record.
type IndexOffset struct {
	Index  TypeIndex
	Offset uint32
}

// IndexOffsets returns one marker for the first record and one for each
// record starting more than 8 KiB past the previous marker.
func (t *Table) IndexOffsets() []IndexOffset {
	var (
		offsets []IndexOffset
		off     uint32
	)
	for _, e := range t.entries {
		if len(offsets) == 0 || off > offsets[len(offsets)-1].Offset+layout.TpiIndexOffsetInterval {
			offsets = append(offsets, IndexOffset{Index: e.Index, Offset: off})
		}
		off += uint32(len(e.Record)) //nolint: gosec
	}

	return offsets
}

// Serialize writes the table to out (header followed by the records in index
// order) and its hash data to hashStream (one bucket-reduced hash per record,
// then the index offsets).
func (t *Table) Serialize(out, hashStream *msf.Stream) error {
	if uint64(t.recordBytes)+layout.TpiHeaderSize > math.MaxUint32 {
		return fmt.Errorf("%w: %s records span %d bytes", errs.ErrOffsetOverflow, t.space, t.recordBytes)
	}

	offsets := t.IndexOffsets()
	hashBytes := uint32(len(t.entries)) * layout.TpiHashKeySize //nolint: gosec
	offsetBytes := uint32(len(offsets)) * 8                     //nolint: gosec

	hdr := layout.NewTpiHeader()
	hdr.TypeIndexEnd = uint32(FirstIndex) + uint32(len(t.entries)) //nolint: gosec
	hdr.TypeRecordBytes = uint32(t.recordBytes)                    //nolint: gosec
	hdr.HashStreamIndex = hashStream.Index()
	hdr.HashValueBufferOff = 0
	hdr.HashValueBufferLen = hashBytes
	hdr.IndexOffsetBufferOff = int32(hashBytes) //nolint: gosec
	hdr.IndexOffsetBufferLen = offsetBytes
	hdr.HashAdjBufferOff = int32(hashBytes + offsetBytes) //nolint: gosec
	hdr.HashAdjBufferLen = 0

	bb := pool.NewByteBuffer(layout.TpiHeaderSize + t.recordBytes)
	hdr.WriteTo(bb)
	for _, e := range t.entries {
		bb.MustWrite(e.Record)
	}
	if _, err := out.Write(bb.Bytes()); err != nil {
		return err
	}

	hb := pool.NewByteBuffer(int(hashBytes + offsetBytes))
	for _, e := range t.entries {
		hb.WriteUint32(e.Hash % layout.TpiHashBuckets)
	}
	for _, o := range offsets {
		hb.WriteUint32(uint32(o.Index))
		hb.WriteUint32(o.Offset)
	}
	if _, err := hashStream.Write(hb.Bytes()); err != nil {
		return err
	}

	return nil
}
