package inspect_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/pdbgen/builder"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/input"
	"github.com/arloliu/pdbgen/inspect"
	"github.com/arloliu/pdbgen/internal/cvtest"
	"github.com/arloliu/pdbgen/msf"
)

var testGUID = uuid.MustParse("a3b2c1d0-e5f4-4789-9abc-def012345678")

func encode(t *testing.T, img input.Image) []byte {
	t.Helper()

	b, err := builder.New(builder.WithGUID(testGUID), builder.WithSignature(7))
	require.NoError(t, err)
	art, err := b.Build(context.Background(), img)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = art.WriteTo(&buf)
	require.NoError(t, err)

	return buf.Bytes()
}

func read(t *testing.T, data []byte) *inspect.File {
	t.Helper()

	f, err := inspect.Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	return f
}

func sampleImage() *input.Static {
	debugS := cvtest.NewDebugS()
	strs := debugS.StringTable("src\\lib.c", "src\\lib.h")
	sums := debugS.FileChecksums(strs...)
	debugS.Symbols(cvtest.NewSymbols().
		Add(format.S_OBJNAME, cvtest.ObjName(0, "lib.obj")).
		Add(format.S_GDATA32, cvtest.Data(cvtest.TInt4, 4, 2, "counter")).
		Add(format.S_GPROC32, cvtest.Proc(cvtest.TVoid, 0x20, 1, 8, "tick")).
		Add(format.S_END, nil))
	debugS.Lines(0x20, 1, 8, sums[0], 12)

	return &input.Static{
		ModuleList: []*input.Module{{
			Path: "lib.obj",
			Sections: []input.Section{
				{Name: ".text$mn", Characteristics: 0x60000020, OutputSection: 1, OutputOffset: 0x20, Size: 8},
				{Name: ".bss", Characteristics: 0xc0000080, OutputSection: 2, OutputOffset: 4, Size: 4},
				{Name: input.DebugSymbolsSection, Data: debugS.Bytes()},
			},
		}},
		Sections: []input.OutputSection{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x28, Characteristics: 0x60000020},
			{Name: ".bss", VirtualAddress: 0x2000, VirtualSize: 0x8, Characteristics: 0xc0000080},
		},
		PublicList: []input.Public{
			{Name: "tick", Section: 1, Offset: 0x20, IsFunction: true},
			{Name: "counter", Section: 2, Offset: 4},
		},
		MachineType: format.MachineAMD64,
	}
}

// =============================================================================
// Read
// =============================================================================

func TestRead(t *testing.T) {
	f := read(t, encode(t, sampleImage()))

	assert.Equal(t, testGUID, f.Info.GUID)
	assert.Equal(t, uint32(7), f.Info.Signature)
	assert.Equal(t, uint16(format.MachineAMD64), f.Machine)
	assert.Zero(t, f.TypeCount)
	assert.Zero(t, f.IDCount)
	assert.Equal(t, 2, f.GlobalCount, "counter and the reference to tick")
	assert.Equal(t, 2, f.PublicCount)
	assert.Equal(t, 2, f.NameCount)
	assert.Len(t, f.Contributions, 2)
	assert.Len(t, f.Sections, 3)

	require.Len(t, f.Modules, 2)
	assert.Equal(t, []string{"src\\lib.c", "src\\lib.h"}, f.Modules[0].SourceFiles)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.pdb")
	require.NoError(t, os.WriteFile(path, encode(t, sampleImage()), 0o600))

	f, err := inspect.Open(path)
	require.NoError(t, err)
	assert.Equal(t, testGUID, f.Info.GUID)

	_, err = inspect.Open(filepath.Join(t.TempDir(), "missing.pdb"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRead_Names(t *testing.T) {
	f := read(t, encode(t, sampleImage()))

	found := map[string]bool{}
	for off := uint32(1); off < 64; off++ {
		if s, ok := f.Name(off); ok {
			found[s] = true
		}
	}
	assert.True(t, found["src\\lib.c"])
	assert.True(t, found["src\\lib.h"])

	_, ok := f.Name(0xffff)
	assert.False(t, ok)
}

func TestRead_RejectsGarbage(t *testing.T) {
	data := bytes.Repeat([]byte{0xcc}, 8192)

	_, err := inspect.Read(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, err, errs.ErrInvalidSuperBlock)
}

func TestRead_RejectsBadInfoStream(t *testing.T) {
	file, err := msf.NewBuilder(msf.DefaultBlockSize)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s, err := file.AddStream()
		require.NoError(t, err)
		if i == inspect.InfoStream {
			_, err = s.Write([]byte{1, 2, 3})
			require.NoError(t, err)
		}
		s.Seal()
	}

	var buf bytes.Buffer
	require.NoError(t, file.Commit(&buf))

	_, err = inspect.Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
	assert.Contains(t, err.Error(), "info stream")
}

// =============================================================================
// Symbol directories
// =============================================================================

func TestFile_Globals(t *testing.T) {
	f := read(t, encode(t, sampleImage()))

	globals, err := f.Globals()
	require.NoError(t, err)
	require.Len(t, globals, 2)

	kinds := map[string]format.SymbolKind{}
	for _, g := range globals {
		kinds[g.Name] = g.Kind
		assert.Equal(t, uint32(1), g.RefCount)
	}
	assert.Equal(t, format.S_GDATA32, kinds["counter"])
	assert.Equal(t, format.S_PROCREF, kinds["tick"])
}

func TestFile_Publics(t *testing.T) {
	f := read(t, encode(t, sampleImage()))

	publics, err := f.Publics()
	require.NoError(t, err)
	require.Len(t, publics, 2)
	assert.Equal(t, "tick", publics[0].Name)
	assert.Equal(t, "counter", publics[1].Name)
	assert.Equal(t, uint32(4), publics[1].Offset)
}

func TestFile_ModuleSymbols(t *testing.T) {
	f := read(t, encode(t, sampleImage()))

	records, err := f.ModuleSymbols(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, format.S_OBJNAME, format.SymbolKind(records[0].Kind))
	assert.Equal(t, format.S_GPROC32, format.SymbolKind(records[1].Kind))
	assert.Equal(t, format.S_END, format.SymbolKind(records[2].Kind))

	_, err = f.ModuleSymbols(5)
	require.ErrorIs(t, err, errs.ErrInvalidStreamIndex)
	_, err = f.ModuleSymbols(-1)
	require.ErrorIs(t, err, errs.ErrInvalidStreamIndex)
}

func TestFile_Stream(t *testing.T) {
	img := sampleImage()
	img.Headers = []byte("section headers")
	f := read(t, encode(t, img))

	data, err := f.Stream(f.SectionHeader)
	require.NoError(t, err)
	assert.Equal(t, img.Headers, data)

	_, err = f.Stream(0xfff0)
	require.ErrorIs(t, err, errs.ErrInvalidStreamIndex)
}
