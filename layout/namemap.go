package layout

import (
	"fmt"
	"slices"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/hash"
	"github.com/arloliu/pdbgen/internal/pool"
)

// namedStreamMapInitialCapacity is the bucket count of an empty named stream
// map. The table doubles whenever it is more than two thirds full.
const namedStreamMapInitialCapacity = 8

// NamedStream pairs a stream name with its stream index.
type NamedStream struct {
	Name  string
	Index uint16
}

// WriteNamedStreamMap appends the named stream map of the info stream to bb:
//
//	u32 string buffer size | names (NUL-terminated) |
//	u32 size | u32 capacity | present bit vector | deleted bit vector |
//	(u32 name offset, u32 stream index) per present bucket
//
// Buckets are chosen by hashStringV1 of the name truncated to 16 bits with
// linear probing. Bit vectors are a u32 word count followed by the words.
func WriteNamedStreamMap(bb *pool.ByteBuffer, streams []NamedStream) {
	var names []byte
	offsets := make([]uint32, len(streams))
	for i, s := range streams {
		offsets[i] = uint32(len(names)) //nolint: gosec
		names = endian.AppendCString(names, s.Name)
	}

	capacity := namedStreamMapInitialCapacity
	for len(streams) >= capacity*2/3+1 {
		capacity *= 2
	}

	buckets := make([]int, capacity)
	for i := range buckets {
		buckets[i] = -1
	}
	for i, s := range streams {
		b := int(uint16(hash.StringV1String(s.Name))) % capacity //nolint: gosec
		for buckets[b] != -1 {
			b = (b + 1) % capacity
		}
		buckets[b] = i
	}

	bb.WriteUint32(uint32(len(names))) //nolint: gosec
	bb.MustWrite(names)
	bb.WriteUint32(uint32(len(streams))) //nolint: gosec
	bb.WriteUint32(uint32(capacity))     //nolint: gosec

	present := make([]uint32, (capacity+31)/32)
	for b, i := range buckets {
		if i >= 0 {
			present[b/32] |= 1 << (b % 32)
		}
	}
	bb.WriteUint32(uint32(len(present))) //nolint: gosec
	for _, w := range present {
		bb.WriteUint32(w)
	}
	bb.WriteUint32(0) // deleted

	for _, i := range buckets {
		if i >= 0 {
			bb.WriteUint32(offsets[i])
			bb.WriteUint32(uint32(streams[i].Index))
		}
	}
}

// ParseNamedStreamMap parses a named stream map from the start of data.
//
// Returns:
//   - []NamedStream: the entries ordered by stream index
//   - int: number of bytes consumed
//   - error: ErrInvalidHeaderSize on truncated data, ErrMalformedRecord when
//     an entry names an offset outside the string buffer
func ParseNamedStreamMap(data []byte) ([]NamedStream, int, error) {
	engine := endian.GetLittleEndianEngine()
	pos := 0
	u32 := func() (uint32, error) {
		if len(data)-pos < 4 {
			return 0, errs.ErrInvalidHeaderSize
		}
		v := engine.Uint32(data[pos:])
		pos += 4

		return v, nil
	}

	size, err := u32()
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(data)-pos) < uint64(size) {
		return nil, 0, errs.ErrInvalidHeaderSize
	}
	names := data[pos : pos+int(size)]
	pos += int(size)

	count, err := u32()
	if err != nil {
		return nil, 0, err
	}
	if _, err = u32(); err != nil { // capacity
		return nil, 0, err
	}

	// present and deleted bit vectors
	for range 2 {
		words, err := u32()
		if err != nil {
			return nil, 0, err
		}
		if uint64(len(data)-pos) < uint64(words)*4 {
			return nil, 0, errs.ErrInvalidHeaderSize
		}
		pos += int(words) * 4
	}

	streams := make([]NamedStream, 0, min(count, 64))
	for range count {
		off, err := u32()
		if err != nil {
			return nil, 0, err
		}
		idx, err := u32()
		if err != nil {
			return nil, 0, err
		}
		if uint64(off) >= uint64(len(names)) {
			return nil, 0, fmt.Errorf("%w: named stream offset %d outside %d-byte buffer", errs.ErrMalformedRecord, off, len(names))
		}
		name, _, ok := endian.CString(names[off:])
		if !ok {
			return nil, 0, fmt.Errorf("%w: named stream at %d", errs.ErrMissingTerminator, off)
		}
		streams = append(streams, NamedStream{Name: name, Index: uint16(idx)}) //nolint: gosec
	}

	slices.SortFunc(streams, func(a, b NamedStream) int {
		return int(a.Index) - int(b.Index)
	})

	return streams, pos, nil
}
