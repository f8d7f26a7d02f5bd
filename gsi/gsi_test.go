package gsi

import (
	"bytes"
	"math/bits"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/internal/cvtest"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
)

func dataRecord(name string, off uint32) []byte {
	return codeview.AppendSymbolRecord(nil, uint16(format.S_GDATA32), cvtest.Data(cvtest.TInt4, off, 1, name))
}

type parsedTable struct {
	header  layout.GSIHashHeader
	records [][2]uint32 // (offset+1, refs)
	bitmap  []uint32
	starts  []uint32
}

func parseTable(t *testing.T, data []byte) parsedTable {
	t.Helper()

	var p parsedTable
	require.NoError(t, p.header.Parse(data))
	engine := endian.GetLittleEndianEngine()
	data = data[layout.GSIHashHeaderSize:]

	require.Zero(t, p.header.HrSize%layout.GSIHashRecordSize)
	for i := 0; i < int(p.header.HrSize)/layout.GSIHashRecordSize; i++ {
		p.records = append(p.records, [2]uint32{engine.Uint32(data[i*8:]), engine.Uint32(data[i*8+4:])})
	}
	data = data[p.header.HrSize:]

	require.Len(t, data, int(p.header.NumBuckets))
	for i := 0; i < layout.GSIBitmapWords; i++ {
		p.bitmap = append(p.bitmap, engine.Uint32(data[i*4:]))
	}
	for off := layout.GSIBitmapWords * 4; off < len(data); off += 4 {
		p.starts = append(p.starts, engine.Uint32(data[off:]))
	}

	return p
}

// =============================================================================
// Globals
// =============================================================================

func TestGlobals_IdenticalRecordsShareOneEntry(t *testing.T) {
	records := NewSymbolRecords()
	globals := NewGlobals(records)

	first, err := globals.Insert(dataRecord("g_counter", 0x10))
	require.NoError(t, err)
	second, err := globals.Insert(dataRecord("g_counter", 0x10))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, uint32(2), first.RefCount)
	assert.Equal(t, "g_counter", first.Name)
	assert.Equal(t, format.S_GDATA32, first.Kind)
	assert.Equal(t, 1, globals.Len())
	assert.Equal(t, len(dataRecord("g_counter", 0x10)), records.Len())
}

func TestGlobals_SameNameDifferentBytes(t *testing.T) {
	globals := NewGlobals(NewSymbolRecords())

	a, err := globals.Insert(dataRecord("dup", 0x10))
	require.NoError(t, err)
	b, err := globals.Insert(dataRecord("dup", 0x20))
	require.NoError(t, err)

	assert.NotEqual(t, a.Offset, b.Offset)
	assert.Equal(t, 2, globals.Len())
	assert.Equal(t, uint32(1), a.RefCount)
	assert.Equal(t, uint32(1), b.RefCount)
}

func TestGlobals_RecordAtOffset(t *testing.T) {
	records := NewSymbolRecords()
	globals := NewGlobals(records)

	rec := codeview.AppendSymbolRecord(nil, uint16(format.S_CONSTANT), cvtest.Constant(cvtest.TInt4, 70000, "kLimit"))
	_, err := globals.Insert(dataRecord("first", 0))
	require.NoError(t, err)
	e, err := globals.Insert(rec)
	require.NoError(t, err)

	assert.Equal(t, "kLimit", e.Name)
	assert.Equal(t, rec, records.At(e.Offset))
	assert.Zero(t, e.Offset%4)
}

func TestGlobals_InsertErrors(t *testing.T) {
	globals := NewGlobals(NewSymbolRecords())

	_, err := globals.Insert([]byte{2, 0})
	require.ErrorIs(t, err, errs.ErrTruncatedRecord)

	_, err = globals.Insert(codeview.AppendSymbolRecord(nil, 0x7777, []byte{1, 2, 3, 0}))
	require.ErrorIs(t, err, errs.ErrUnknownRecordKind)
	assert.Zero(t, globals.Len())
}

func TestGlobals_WriteTo(t *testing.T) {
	records := NewSymbolRecords()
	globals := NewGlobals(records)

	names := []string{"alpha", "beta", "gamma", "delta"}
	for i, n := range names {
		_, err := globals.Insert(dataRecord(n, uint32(i)))
		require.NoError(t, err)
	}
	_, err := globals.Insert(dataRecord("beta", 1))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = globals.WriteTo(&buf)
	require.NoError(t, err)

	table := parseTable(t, buf.Bytes())
	assert.Equal(t, uint32(layout.GSIHashSignature), table.header.VerSignature)
	assert.Equal(t, uint32(layout.GSIHashVersion), table.header.VerHdr)
	require.Len(t, table.records, len(names))

	nonEmpty := 0
	for _, w := range table.bitmap {
		nonEmpty += bits.OnesCount32(w)
	}
	assert.Len(t, table.starts, nonEmpty)
	assert.Equal(t, uint32(layout.GSIBitmapWords*4+nonEmpty*4), table.header.NumBuckets)

	// Every name's bucket bit is set and the records follow bucket order.
	byOffset := map[uint32]*GlobalEntry{}
	for _, e := range globals.Entries() {
		byOffset[e.Offset] = e
		b := bucketOf(e.Name)
		assert.NotZero(t, table.bitmap[b/32]&(1<<(b%32)), e.Name)
	}

	var prev uint32
	for i, r := range table.records {
		e, ok := byOffset[r[0]-1]
		require.True(t, ok)
		assert.Equal(t, e.RefCount, r[1])
		if e.Name == "beta" {
			assert.Equal(t, uint32(2), r[1])
		}
		if i > 0 {
			assert.GreaterOrEqual(t, bucketOf(e.Name), prev)
		}
		prev = bucketOf(e.Name)
	}
}

func TestGlobals_WriteToEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewGlobals(NewSymbolRecords()).WriteTo(&buf)
	require.NoError(t, err)

	table := parseTable(t, buf.Bytes())
	assert.Zero(t, table.header.HrSize)
	assert.Equal(t, uint32(layout.GSIBitmapWords*4), table.header.NumBuckets)
	assert.Empty(t, table.starts)
}

// =============================================================================
// Bucket ordering
// =============================================================================

func TestCompareNames(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"ab", "abc", -1},
		{"abc", "ab", 1},
		{"ABC", "abc", 0},
		{"abd", "ABC", 1},
		{"Zed", "abc", 1},
		{"\xc3\xa9a", "\xc3\xa9b", -1},
		{"\xc3\x89", "\xc3\xa9", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, compareNames(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestWriteHashTable_BucketStarts(t *testing.T) {
	// Several same-bucket entries make bucket starts advance by their count.
	entries := []hashEntry{
		{name: "x", offset: 40, refs: 1},
		{name: "x", offset: 8, refs: 1},
		{name: "y", offset: 0, refs: 3},
	}

	bb := pool.NewByteBuffer(256)
	writeHashTable(bb, entries)
	table := parseTable(t, bb.Bytes())

	bx, by := bucketOf("x"), bucketOf("y")
	require.NotEqual(t, bx, by)

	xRecords := [][2]uint32{{9, 1}, {41, 1}}
	yRecords := [][2]uint32{{1, 3}}
	if bx < by {
		assert.Equal(t, append(xRecords, yRecords...), table.records)
		assert.Equal(t, []uint32{0, 2 * layout.GSIOffsetCalcSize}, table.starts)
	} else {
		assert.Equal(t, append(yRecords, xRecords...), table.records)
		assert.Equal(t, []uint32{0, layout.GSIOffsetCalcSize}, table.starts)
	}
}

// =============================================================================
// Publics
// =============================================================================

func TestPublics_InsertRecord(t *testing.T) {
	records := NewSymbolRecords()
	publics := NewPublics(records)

	e := publics.Insert("main", 1, 0x40, true)
	rec := records.At(e.RecordOffset)

	engine := endian.GetLittleEndianEngine()
	assert.Equal(t, format.S_PUB32, format.SymbolKind(engine.Uint16(rec[2:])))
	payload := rec[codeview.RecordPrefixSize:]
	assert.Equal(t, PublicFunction, engine.Uint32(payload[0:]))
	assert.Equal(t, uint32(0x40), engine.Uint32(payload[4:]))
	assert.Equal(t, uint16(1), engine.Uint16(payload[8:]))

	name, err := codeview.SymbolName(format.S_PUB32, payload)
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	assert.Zero(t, len(rec)%4)

	data := publics.Insert("g_table", 2, 0, false)
	assert.Zero(t, engine.Uint32(records.At(data.RecordOffset)[codeview.RecordPrefixSize:]))
}

func TestPublics_AddressMapOrder(t *testing.T) {
	publics := NewPublics(NewSymbolRecords())

	c := publics.Insert("c", 2, 0x10, true)
	b := publics.Insert("b", 1, 0x20, true)
	a2 := publics.Insert("a2", 1, 0x10, true)
	a1 := publics.Insert("a1", 1, 0x10, false)

	want := []uint32{a1.RecordOffset, a2.RecordOffset, b.RecordOffset, c.RecordOffset}
	assert.Equal(t, want, publics.AddressMap())
	assert.Equal(t, []*PublicEntry{c, b, a2, a1}, publics.Entries())
}

func TestPublics_WriteTo(t *testing.T) {
	records := NewSymbolRecords()
	publics := NewPublics(records)
	globals := NewGlobals(records)

	_, err := globals.Insert(dataRecord("g_shared", 0))
	require.NoError(t, err)
	publics.Insert("zeta", 1, 0x30, true)
	publics.Insert("eta", 1, 0x10, true)

	var buf bytes.Buffer
	_, err = publics.WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	var hdr layout.PublicsHeader
	require.NoError(t, hdr.Parse(data))
	assert.Equal(t, uint32(8), hdr.AddrMap)
	assert.Zero(t, hdr.NumSections)
	require.Len(t, data, layout.PublicsHeaderSize+int(hdr.SymHash)+int(hdr.AddrMap))

	table := parseTable(t, data[layout.PublicsHeaderSize:layout.PublicsHeaderSize+int(hdr.SymHash)])
	require.Len(t, table.records, 2)
	for _, r := range table.records {
		assert.Equal(t, uint32(1), r[1])
	}

	engine := endian.GetLittleEndianEngine()
	addrMap := data[layout.PublicsHeaderSize+int(hdr.SymHash):]
	got := []uint32{engine.Uint32(addrMap), engine.Uint32(addrMap[4:])}
	assert.Equal(t, publics.AddressMap(), got)

	// Publics records follow the global already in the shared stream.
	offsets := []uint32{publics.Entries()[0].RecordOffset, publics.Entries()[1].RecordOffset}
	assert.True(t, slices.IsSorted(offsets))
	assert.Positive(t, offsets[0])
}
