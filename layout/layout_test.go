package layout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
)

// =============================================================================
// SuperBlock
// =============================================================================

func TestSuperBlock_BytesAndParse(t *testing.T) {
	sb := SuperBlock{
		BlockSize:         4096,
		FreeBlockMapBlock: 1,
		NumBlocks:         17,
		NumDirectoryBytes: 120,
		BlockMapAddr:      16,
	}

	data := sb.Bytes()
	require.Len(t, data, SuperBlockSize)
	assert.Equal(t, SuperBlockMagic, string(data[:32]))

	var parsed SuperBlock
	require.NoError(t, parsed.Parse(data))
	assert.Equal(t, sb, parsed)
}

func TestSuperBlock_ParseErrors(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		var sb SuperBlock
		require.ErrorIs(t, sb.Parse(make([]byte, 10)), errs.ErrInvalidHeaderSize)
	})

	t.Run("bad magic", func(t *testing.T) {
		var sb SuperBlock
		require.ErrorIs(t, sb.Parse(make([]byte, SuperBlockSize)), errs.ErrInvalidSuperBlock)
	})

	t.Run("bad block size", func(t *testing.T) {
		data := (&SuperBlock{BlockSize: 4096}).Bytes()
		data[32] = 3
		var sb SuperBlock
		require.ErrorIs(t, sb.Parse(data), errs.ErrInvalidSuperBlock)
	})
}

func TestValidBlockSize(t *testing.T) {
	for _, size := range []uint32{512, 1024, 2048, 4096} {
		assert.True(t, ValidBlockSize(size), "size %d", size)
	}
	for _, size := range []uint32{0, 256, 3000, 8192} {
		assert.False(t, ValidBlockSize(size), "size %d", size)
	}
}

// =============================================================================
// Info stream
// =============================================================================

func TestGUIDBytes_MixedEndian(t *testing.T) {
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")

	b := GUIDBytes(id)
	assert.Equal(t, []byte{
		0x33, 0x22, 0x11, 0x00,
		0x55, 0x44,
		0x77, 0x66,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
	}, b)
	assert.Equal(t, id, GUIDFromBytes(b))
}

func TestInfoHeader_RoundTrip(t *testing.T) {
	h := InfoHeader{
		Version:   InfoVersionVC70,
		Signature: 0x5f3e1a00,
		Age:       1,
		GUID:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}

	data := h.Bytes()
	require.Len(t, data, InfoHeaderSize)

	var parsed InfoHeader
	require.NoError(t, parsed.Parse(data))
	assert.Equal(t, h, parsed)
}

// =============================================================================
// Fixed-size structures
// =============================================================================

func TestFixedSizes(t *testing.T) {
	bb := pool.NewByteBuffer(128)

	NewTpiHeader().WriteTo(bb)
	assert.Equal(t, TpiHeaderSize, bb.Len(), "tpi header")

	bb.Reset()
	(&DbiHeader{}).WriteTo(bb)
	assert.Equal(t, DbiHeaderSize, bb.Len(), "dbi header")

	bb.Reset()
	(&ModInfoHeader{}).WriteTo(bb)
	assert.Equal(t, ModInfoHeaderSize, bb.Len(), "module info")

	bb.Reset()
	(&SectionContrib{}).WriteTo(bb)
	assert.Equal(t, SectionContribSize, bb.Len(), "section contribution")

	bb.Reset()
	(&SectionMapEntry{}).WriteTo(bb)
	assert.Equal(t, SectionMapEntrySize, bb.Len(), "section map entry")

	bb.Reset()
	(&GSIHashHeader{}).WriteTo(bb)
	assert.Equal(t, GSIHashHeaderSize, bb.Len(), "gsi hash header")

	bb.Reset()
	(&PublicsHeader{}).WriteTo(bb)
	assert.Equal(t, PublicsHeaderSize, bb.Len(), "publics header")

	bb.Reset()
	(&StringTableHeader{}).WriteTo(bb)
	assert.Equal(t, StringTableHeaderSize, bb.Len(), "string table header")

	bb.Reset()
	dbg := NewDbgHeader()
	dbg.WriteTo(bb)
	assert.Equal(t, DbgHeaderEntries*2, bb.Len(), "dbg header")
}

func TestTpiHeader_RoundTrip(t *testing.T) {
	h := NewTpiHeader()
	h.TypeIndexEnd = 0x1234
	h.TypeRecordBytes = 4096
	h.HashStreamIndex = 5
	h.HashValueBufferLen = 0x234 * 4
	h.IndexOffsetBufferOff = int32(h.HashValueBufferLen)
	h.IndexOffsetBufferLen = 8

	var parsed TpiHeader
	require.NoError(t, parsed.Parse(h.Bytes()))
	assert.Equal(t, *h, parsed)
	assert.Equal(t, uint16(InvalidStreamIndex), parsed.HashAuxStreamIndex)
}

func TestDbiHeader_RoundTrip(t *testing.T) {
	h := DbiHeader{
		VersionSignature:     DbiVersionSignature,
		VersionHeader:        DbiVersionV70,
		Age:                  1,
		GlobalStreamIndex:    8,
		BuildNumber:          BuildNumber(14, 10),
		PublicStreamIndex:    9,
		SymRecordStreamIndex: 7,
		ModInfoSize:          128,
		SectionMapSize:       44,
		Machine:              0x8664,
	}

	bb := pool.NewByteBuffer(DbiHeaderSize)
	h.WriteTo(bb)

	var parsed DbiHeader
	require.NoError(t, parsed.Parse(bb.Bytes()))
	assert.Equal(t, h, parsed)
}

func TestBuildNumber(t *testing.T) {
	assert.Equal(t, uint16(0x8e0a), BuildNumber(14, 10))
	assert.Equal(t, uint16(0x8000), BuildNumber(0, 0))
}

func TestModInfoHeader_RoundTrip(t *testing.T) {
	h := ModInfoHeader{
		SectionContr: SectionContrib{
			Section:         1,
			Offset:          0x10,
			Size:            0x20,
			Characteristics: 0x60000020,
			ModuleIndex:     3,
		},
		ModuleSymStream: 12,
		SymByteSize:     400,
		C13ByteSize:     96,
		SourceFileCount: 2,
	}

	bb := pool.NewByteBuffer(ModInfoHeaderSize)
	h.WriteTo(bb)

	var parsed ModInfoHeader
	require.NoError(t, parsed.Parse(bb.Bytes()))
	assert.Equal(t, h, parsed)
}

func TestDbgHeader_AbsentByDefault(t *testing.T) {
	h := NewDbgHeader()
	h[DbgSectionHdr] = 10

	bb := pool.NewByteBuffer(32)
	h.WriteTo(bb)

	parsed, err := ParseDbgHeader(bb.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(10), parsed[DbgSectionHdr])
	assert.Equal(t, uint16(InvalidStreamIndex), parsed[DbgFPO])
	assert.Equal(t, uint16(InvalidStreamIndex), parsed[DbgSectionHdrOrig])
}

func TestPublicsHeader_RoundTrip(t *testing.T) {
	h := PublicsHeader{SymHash: 100, AddrMap: 12, NumSections: 3}

	bb := pool.NewByteBuffer(PublicsHeaderSize)
	h.WriteTo(bb)

	var parsed PublicsHeader
	require.NoError(t, parsed.Parse(bb.Bytes()))
	assert.Equal(t, h, parsed)
}

// =============================================================================
// Named stream map
// =============================================================================

func TestNamedStreamMap_RoundTrip(t *testing.T) {
	streams := []NamedStream{{Name: "/names", Index: 12}, {Name: "/LinkInfo", Index: 13}}

	bb := pool.NewByteBuffer(64)
	WriteNamedStreamMap(bb, streams)
	bb.WriteUint32(0xdeadbeef) // trailing data must not be consumed

	parsed, n, err := ParseNamedStreamMap(bb.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 4+len("/names\x00/LinkInfo\x00")+8+8+4+2*8, n)
	assert.Equal(t, streams, parsed)
}

func TestNamedStreamMap_Grows(t *testing.T) {
	var streams []NamedStream
	for i, name := range []string{"/a", "/b", "/c", "/d", "/e", "/f"} {
		streams = append(streams, NamedStream{Name: name, Index: uint16(i + 1)}) //nolint: gosec
	}

	bb := pool.NewByteBuffer(128)
	WriteNamedStreamMap(bb, streams)

	data := bb.Bytes()
	namesLen := 6 * 3
	engine := endian.GetLittleEndianEngine()
	assert.Equal(t, uint32(6), engine.Uint32(data[4+namesLen:]))
	assert.Equal(t, uint32(16), engine.Uint32(data[8+namesLen:]), "capacity")

	parsed, _, err := ParseNamedStreamMap(data)
	require.NoError(t, err)
	assert.Equal(t, streams, parsed)
}

func TestNamedStreamMap_Truncated(t *testing.T) {
	bb := pool.NewByteBuffer(64)
	WriteNamedStreamMap(bb, []NamedStream{{Name: "/names", Index: 5}})
	data := bb.Bytes()

	for _, n := range []int{0, 3, 10, len(data) - 1} {
		_, _, err := ParseNamedStreamMap(data[:n])
		require.ErrorIs(t, err, errs.ErrInvalidHeaderSize, "length %d", n)
	}
}
