package modstream_test

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/gsi"
	"github.com/arloliu/pdbgen/input"
	"github.com/arloliu/pdbgen/internal/cvtest"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/modstream"
	"github.com/arloliu/pdbgen/msf"
	"github.com/arloliu/pdbgen/strtab"
	"github.com/arloliu/pdbgen/typedb"
)

var le = endian.GetLittleEndianEngine()

type harness struct {
	records     *gsi.SymbolRecords
	names       *strtab.NamesTable
	merger      *typedb.Merger
	globals     *gsi.Globals
	transformer *modstream.Transformer
	container   *msf.Builder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	container, err := msf.NewBuilder(msf.DefaultBlockSize)
	require.NoError(t, err)

	records := gsi.NewSymbolRecords()
	names := strtab.NewNamesTable()
	merger := typedb.NewMerger(names)
	globals := gsi.NewGlobals(records)

	return &harness{
		records:     records,
		names:       names,
		merger:      merger,
		globals:     globals,
		transformer: modstream.NewTransformer(merger, names, globals),
		container:   container,
	}
}

// moduleStream is a parsed module stream.
type moduleStream struct {
	raw     []byte
	symbols []codeview.Record
	offsets []uint32
	c13     []codeview.Subsection
}

func (h *harness) transform(t *testing.T, m *input.Module, index int) (*modstream.Result, moduleStream) {
	t.Helper()

	scanned, err := modstream.Scan(m, index)
	require.NoError(t, err)

	out, err := h.container.AddStream()
	require.NoError(t, err)
	res, err := h.transformer.Transform(context.Background(), scanned, out)
	require.NoError(t, err)

	return res, parseModuleStream(t, out.Bytes(), res)
}

func parseModuleStream(t *testing.T, raw []byte, res *modstream.Result) moduleStream {
	t.Helper()

	require.Len(t, raw, int(res.SymbolsSize+res.C13Size)+4)
	require.Equal(t, uint32(layout.CVSignatureC13), le.Uint32(raw))
	require.Zero(t, le.Uint32(raw[len(raw)-4:]), "global refs size")

	ms := moduleStream{raw: raw}
	var err error
	ms.symbols, err = codeview.ParseRecords(raw[4:res.SymbolsSize])
	require.NoError(t, err)

	off := uint32(4)
	for _, rec := range ms.symbols {
		ms.offsets = append(ms.offsets, off)
		off += uint32(codeview.RecordPrefixSize + len(rec.Data))
	}

	ms.c13, err = codeview.ParseSubsections(raw[res.SymbolsSize : res.SymbolsSize+res.C13Size])
	require.NoError(t, err)

	return ms
}

func (ms moduleStream) names(t *testing.T) []string {
	t.Helper()

	var names []string
	for _, rec := range ms.symbols {
		name, err := codeview.SymbolName(format.SymbolKind(rec.Kind), rec.Data)
		require.NoError(t, err)
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

func (ms moduleStream) kinds() []format.SymbolKind {
	kinds := make([]format.SymbolKind, len(ms.symbols))
	for i, rec := range ms.symbols {
		kinds[i] = format.SymbolKind(rec.Kind)
	}

	return kinds
}

func newModule(path string, types *cvtest.Types, debugS *cvtest.DebugS) *input.Module {
	m := &input.Module{
		Path: path,
		Sections: []input.Section{
			{Name: ".text$mn", Characteristics: 0x60000020, OutputSection: 1, OutputOffset: 0x100, Size: 0x40},
		},
	}
	if types != nil {
		m.Sections = append(m.Sections, input.Section{Name: input.DebugTypesSection, Data: types.Bytes()})
	}
	if debugS != nil {
		m.Sections = append(m.Sections, input.Section{Name: input.DebugSymbolsSection, Data: debugS.Bytes()})
	}

	return m
}

// procTypes declares "void f(int)" and a function id for it. It returns the
// local indices of the procedure type and the function id.
func procTypes() (*cvtest.Types, uint32, uint32) {
	types := cvtest.NewTypes()
	args := types.Add(format.LF_ARGLIST, cvtest.ArgList(cvtest.TInt4))
	proc := types.Add(format.LF_PROCEDURE, cvtest.Procedure(cvtest.TVoid, args, 1))
	fn := types.Add(format.LF_FUNC_ID, cvtest.FuncID(0, proc, "f"))

	return types, proc, fn
}

// =============================================================================
// Scope links
// =============================================================================

func TestTransform_ScopeLinksMatchOutputOffsets(t *testing.T) {
	h := newHarness(t)
	types, proc, fn := procTypes()

	syms := cvtest.NewSymbols().
		Add(format.S_OBJNAME, cvtest.ObjName(0, "scopes.obj")).
		Add(format.S_GPROC32, cvtest.Proc(proc, 0x10, 1, 0x30, "outer")).
		Add(format.S_REGREL32, cvtest.RegRel(8, cvtest.TInt4, 335, "arg")).
		Add(format.S_BLOCK32, cvtest.Block(0x14, 1, 8, "")).
		Add(format.S_LOCAL, cvtest.Local(cvtest.TInt4, 0, "tmp")).
		Add(format.S_INLINESITE, cvtest.InlineSite(fn)).
		Add(format.S_INLINESITE_END, nil).
		Add(format.S_END, nil).
		Add(format.S_END, nil).
		Add(format.S_GPROC32, cvtest.Proc(proc, 0x40, 1, 0x10, "second")).
		Add(format.S_END, nil)

	res, ms := h.transform(t, newModule("scopes.obj", types, cvtest.NewDebugS().Symbols(syms)), 0)
	assert.Equal(t, 11, res.Records)
	assert.Zero(t, res.Dropped)

	var stack []int
	for i, rec := range ms.symbols {
		kind := format.SymbolKind(rec.Kind)
		schema, err := codeview.LookupSymbol(kind)
		require.NoError(t, err)

		switch schema.Scope {
		case codeview.ScopeOpen:
			var parent uint32
			if len(stack) > 0 {
				parent = ms.offsets[stack[len(stack)-1]]
			}
			assert.Equal(t, parent, le.Uint32(rec.Data[codeview.ParentOffset:]), "parent of record %d", i)
			stack = append(stack, i)
		case codeview.ScopeClose:
			require.NotEmpty(t, stack, "closer %d without opener", i)
			opener := ms.symbols[stack[len(stack)-1]]
			assert.Equal(t, ms.offsets[i], le.Uint32(opener.Data[codeview.EndOffset:]), "end of record %d", stack[len(stack)-1])
			stack = stack[:len(stack)-1]
		}
	}
	assert.Empty(t, stack)

	// Procedures never chain to a sibling.
	assert.Zero(t, le.Uint32(ms.symbols[1].Data[codeview.NextOffset:]))

	// Inline site ids are remapped into the IPI numbering.
	assert.Equal(t, uint32(typedb.FirstIndex), le.Uint32(ms.symbols[5].Data[8:]))
}

func TestTransform_ProcRefsPointAtModuleRecords(t *testing.T) {
	h := newHarness(t)
	types, proc, _ := procTypes()

	syms := cvtest.NewSymbols().
		Add(format.S_GPROC32, cvtest.Proc(proc, 0x10, 1, 0x30, "exported")).
		Add(format.S_END, nil).
		Add(format.S_LPROC32, cvtest.Proc(proc, 0x40, 1, 0x10, "helper")).
		Add(format.S_END, nil)

	res, ms := h.transform(t, newModule("refs.obj", types, cvtest.NewDebugS().Symbols(syms)), 2)
	assert.Equal(t, 2, res.ProcRefs)

	entries := h.globals.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, format.S_PROCREF, entries[0].Kind)
	assert.Equal(t, "exported", entries[0].Name)
	assert.Equal(t, format.S_LPROCREF, entries[1].Kind)
	assert.Equal(t, "helper", entries[1].Name)

	records := gsiRecords(t, h)
	for i, want := range []uint32{ms.offsets[0], ms.offsets[2]} {
		payload := records[i].Data
		assert.Zero(t, le.Uint32(payload[0:]))
		assert.Equal(t, want, le.Uint32(payload[4:]))
		assert.Equal(t, uint16(3), le.Uint16(payload[8:]), "1-based module index")
	}
}

// gsiRecords decodes the global records in insertion order.
func gsiRecords(t *testing.T, h *harness) []codeview.Record {
	t.Helper()

	var out []codeview.Record
	for _, e := range h.globals.Entries() {
		recs, err := codeview.ParseRecords(h.records.At(e.Offset))
		require.NoError(t, err)
		require.Len(t, recs, 1)
		out = append(out, recs[0])
	}

	return out
}

// =============================================================================
// Discarded code and data
// =============================================================================

func TestTransform_DropsDiscardedScopes(t *testing.T) {
	h := newHarness(t)
	types, proc, _ := procTypes()

	syms := cvtest.NewSymbols().
		Add(format.S_GPROC32, cvtest.Proc(proc, 0, 0, 0x30, "dead")).
		Add(format.S_BLOCK32, cvtest.Block(0x4, 1, 8, "")).
		Add(format.S_END, nil).
		Add(format.S_END, nil).
		Add(format.S_GDATA32, cvtest.Data(cvtest.TInt4, 0, 0, "g_dead")).
		Add(format.S_GPROC32, cvtest.Proc(proc, 0x20, 1, 0x10, "live")).
		Add(format.S_END, nil).
		Add(format.S_GDATA32, cvtest.Data(cvtest.TInt4, 8, 2, "g_live"))

	res, ms := h.transform(t, newModule("gc.obj", types, cvtest.NewDebugS().Symbols(syms)), 0)

	assert.Equal(t, 5, res.Dropped)
	assert.Equal(t, []format.SymbolKind{format.S_GPROC32, format.S_END}, ms.kinds())
	assert.Equal(t, []string{"live"}, ms.names(t))

	var globalNames []string
	for _, e := range h.globals.Entries() {
		globalNames = append(globalNames, e.Name)
	}
	assert.ElementsMatch(t, []string{"g_live", "live"}, globalNames)
}

// =============================================================================
// Globals routing
// =============================================================================

func TestTransform_RoutesTopLevelDataToGlobals(t *testing.T) {
	h := newHarness(t)
	types := cvtest.NewTypes()
	fields := types.Add(format.LF_FIELDLIST, cvtest.FieldList(cvtest.Member(cvtest.TInt4, 0, "x")))
	point := types.Add(format.LF_STRUCTURE, cvtest.Struct("Point", fields, 4, 0))
	args := types.Add(format.LF_ARGLIST, cvtest.ArgList())
	proc := types.Add(format.LF_PROCEDURE, cvtest.Procedure(cvtest.TVoid, args, 0))

	syms := cvtest.NewSymbols().
		Add(format.S_UDT, cvtest.UDT(point, "Point")).
		Add(format.S_CONSTANT, cvtest.Constant(cvtest.TInt4, 42, "kAnswer")).
		Add(format.S_LDATA32, cvtest.Data(point, 0, 2, "s_origin")).
		Add(format.S_GTHREAD32, cvtest.Data(cvtest.TInt4, 0, 3, "t_slot")).
		Add(format.S_GPROC32, cvtest.Proc(proc, 0, 1, 4, "main")).
		Add(format.S_UDT, cvtest.UDT(point, "LocalPoint")).
		Add(format.S_END, nil)

	res, ms := h.transform(t, newModule("route.obj", types, cvtest.NewDebugS().Symbols(syms)), 0)
	assert.Equal(t, 4, res.Globals)
	assert.Equal(t, []string{"main", "LocalPoint"}, ms.names(t))

	// The nested S_UDT refers to the global index of Point.
	globalPoint, err := res.Remap.Resolve(point, codeview.SpaceType)
	require.NoError(t, err)
	assert.Equal(t, uint32(globalPoint), le.Uint32(ms.symbols[1].Data))

	byName := map[string]*gsi.GlobalEntry{}
	for _, e := range h.globals.Entries() {
		byName[e.Name] = e
	}
	require.Contains(t, byName, "Point")
	assert.Equal(t, format.S_UDT, byName["Point"].Kind)
	assert.Equal(t, format.S_CONSTANT, byName["kAnswer"].Kind)
	assert.Equal(t, format.S_LDATA32, byName["s_origin"].Kind)
	assert.Equal(t, format.S_GTHREAD32, byName["t_slot"].Kind)
	assert.Equal(t, format.S_PROCREF, byName["main"].Kind)
}

func TestTransform_IdenticalGlobalsAcrossModules(t *testing.T) {
	h := newHarness(t)

	for i, path := range []string{"a.obj", "b.obj"} {
		syms := cvtest.NewSymbols().Add(format.S_GDATA32, cvtest.Data(cvtest.TInt4, 0x10, 3, "g_count"))
		h.transform(t, newModule(path, nil, cvtest.NewDebugS().Symbols(syms)), i)
	}

	entries := h.globals.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "g_count", entries[0].Name)
	assert.Equal(t, uint32(2), entries[0].RefCount)
}

// =============================================================================
// Id-based procedures
// =============================================================================

func TestTransform_TranslatesIDProcedures(t *testing.T) {
	h := newHarness(t)
	types, proc, fn := procTypes()

	syms := cvtest.NewSymbols().
		Add(format.S_GPROC32_ID, cvtest.Proc(fn, 0x10, 1, 0x30, "f")).
		Add(format.S_PROC_ID_END, nil)

	res, ms := h.transform(t, newModule("ids.obj", types, cvtest.NewDebugS().Symbols(syms)), 0)
	assert.Equal(t, []format.SymbolKind{format.S_GPROC32, format.S_END}, ms.kinds())

	globalProc, err := res.Remap.Resolve(proc, codeview.SpaceType)
	require.NoError(t, err)
	assert.Equal(t, uint32(globalProc), le.Uint32(ms.symbols[0].Data[24:]))

	require.Equal(t, 1, h.globals.Len())
	assert.Equal(t, format.S_PROCREF, h.globals.Entries()[0].Kind)
}

func TestTransform_IDProcedureMustNameFunctionID(t *testing.T) {
	h := newHarness(t)
	types := cvtest.NewTypes()
	str := types.Add(format.LF_STRING_ID, cvtest.StringID(0, "not a function"))

	syms := cvtest.NewSymbols().
		Add(format.S_GPROC32_ID, cvtest.Proc(str, 0x10, 1, 0x30, "f")).
		Add(format.S_PROC_ID_END, nil)

	scanned, err := modstream.Scan(newModule("bad.obj", types, cvtest.NewDebugS().Symbols(syms)), 0)
	require.NoError(t, err)
	out, err := h.container.AddStream()
	require.NoError(t, err)

	_, err = h.transformer.Transform(context.Background(), scanned, out)
	require.ErrorIs(t, err, errs.ErrMalformedRecord)

	var merr *modstream.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, format.S_GPROC32_ID, merr.Kind)
	assert.Equal(t, "bad.obj", merr.Path)
}

// =============================================================================
// Line information
// =============================================================================

func TestTransform_RewritesFileNames(t *testing.T) {
	h := newHarness(t)
	h.names.InternString("unrelated.h")

	debugS := cvtest.NewDebugS()
	strs := debugS.StringTable("src/main.c", "include/util.h")
	sums := debugS.FileChecksums(strs[0], strs[1])
	debugS.Lines(0x10, 1, 0x20, sums[1], 7)
	debugS.Symbols(cvtest.NewSymbols().
		Add(format.S_FILESTATIC, cvtest.FileStatic(cvtest.TInt4, strs[1], 0, "s_counter")))

	res, ms := h.transform(t, newModule("lines.obj", nil, debugS), 0)
	assert.Equal(t, []string{"src/main.c", "include/util.h"}, res.SourceFiles)

	require.Len(t, ms.c13, 2, "string table is dropped")
	assert.Equal(t, format.DEBUG_S_FILECHKSMS, ms.c13[0].Kind)
	assert.Equal(t, format.DEBUG_S_LINES, ms.c13[1].Kind)

	entries, offsets, err := codeview.ParseFileChecksums(ms.c13[0].Data)
	require.NoError(t, err)
	assert.Equal(t, sums, offsets)
	for i, want := range res.SourceFiles {
		got, ok := h.names.Lookup(entries[i].NameOffset)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	// S_FILESTATIC names its file through /names too.
	got, ok := h.names.Lookup(le.Uint32(ms.symbols[0].Data[4:]))
	require.True(t, ok)
	assert.Equal(t, "include/util.h", got)
}

func TestTransform_FileNameOutsideStringTable(t *testing.T) {
	h := newHarness(t)

	debugS := cvtest.NewDebugS()
	debugS.StringTable("a.c")
	debugS.FileChecksums(400)

	scanned, err := modstream.Scan(newModule("lines.obj", nil, debugS), 0)
	require.NoError(t, err)
	out, err := h.container.AddStream()
	require.NoError(t, err)

	_, err = h.transformer.Transform(context.Background(), scanned, out)
	require.ErrorIs(t, err, errs.ErrMalformedRecord)
}

// =============================================================================
// Malformed input
// =============================================================================

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		debugS  func() *cvtest.DebugS
		wantErr error
		kind    format.SymbolKind
	}{
		{
			name: "closer without opener",
			debugS: func() *cvtest.DebugS {
				return cvtest.NewDebugS().Symbols(cvtest.NewSymbols().Add(format.S_END, nil))
			},
			wantErr: errs.ErrUnbalancedScope,
			kind:    format.S_END,
		},
		{
			name: "opener without closer",
			debugS: func() *cvtest.DebugS {
				return cvtest.NewDebugS().Symbols(cvtest.NewSymbols().
					Add(format.S_GPROC32, cvtest.Proc(cvtest.TVoid, 0, 1, 4, "f")).
					Add(format.S_BLOCK32, cvtest.Block(0, 1, 4, "")).
					Add(format.S_END, nil))
			},
			wantErr: errs.ErrUnmatchedScope,
			kind:    format.S_GPROC32,
		},
		{
			name: "unknown symbol kind",
			debugS: func() *cvtest.DebugS {
				return cvtest.NewDebugS().Symbols(cvtest.NewSymbols().Add(format.SymbolKind(0x7777), []byte{0, 0, 0, 0}))
			},
			wantErr: errs.ErrUnknownRecordKind,
			kind:    format.SymbolKind(0x7777),
		},
		{
			name: "two checksum subsections",
			debugS: func() *cvtest.DebugS {
				d := cvtest.NewDebugS()
				offs := d.StringTable("a.c")
				d.FileChecksums(offs[0])
				d.FileChecksums(offs[0])

				return d
			},
			wantErr: errs.ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := modstream.Scan(newModule("broken.obj", nil, tt.debugS()), 4)
			require.ErrorIs(t, err, tt.wantErr)

			var merr *modstream.Error
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, 4, merr.Module)
			assert.Equal(t, "broken.obj", merr.Path)
			assert.Equal(t, tt.kind, merr.Kind)
			assert.Equal(t, errs.Classify(tt.wantErr), errs.Classify(err))
		})
	}
}

func TestScan_BadSignature(t *testing.T) {
	m := &input.Module{Path: "x.obj", Sections: []input.Section{{Name: input.DebugSymbolsSection, Data: []byte{1, 0, 0, 0}}}}

	_, err := modstream.Scan(m, 0)
	require.ErrorIs(t, err, errs.ErrInvalidSignature)
}

func TestTransform_TypeRecordError(t *testing.T) {
	h := newHarness(t)
	types := cvtest.NewTypes()
	types.Add(format.LF_POINTER, cvtest.Pointer(0x1005))

	scanned, err := modstream.Scan(newModule("types.obj", types, nil), 1)
	require.NoError(t, err)
	out, err := h.container.AddStream()
	require.NoError(t, err)

	_, err = h.transformer.Transform(context.Background(), scanned, out)
	require.ErrorIs(t, err, errs.ErrTypeIndexOutOfRange)

	var rerr *typedb.RecordError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Module)
	assert.Equal(t, format.LF_POINTER, rerr.Kind)
}

func TestTransform_SymbolTypeOutOfRange(t *testing.T) {
	h := newHarness(t)
	syms := cvtest.NewSymbols().Add(format.S_GDATA32, cvtest.Data(0x1000, 0, 1, "g"))

	scanned, err := modstream.Scan(newModule("syms.obj", nil, cvtest.NewDebugS().Symbols(syms)), 0)
	require.NoError(t, err)
	out, err := h.container.AddStream()
	require.NoError(t, err)

	_, err = h.transformer.Transform(context.Background(), scanned, out)
	require.ErrorIs(t, err, errs.ErrTypeIndexOutOfRange)
}

func TestTransform_CanceledContext(t *testing.T) {
	h := newHarness(t)
	scanned, err := modstream.Scan(newModule("a.obj", nil, nil), 0)
	require.NoError(t, err)
	out, err := h.container.AddStream()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.transformer.Transform(ctx, scanned, out)
	require.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Linker module
// =============================================================================

func TestTransformLinker(t *testing.T) {
	h := newHarness(t)
	out, err := h.container.AddStream()
	require.NoError(t, err)

	info := modstream.LinkerInfo{
		Machine: format.MachineAMD64,
		Version: semver.MustParse("1.4.2"),
		Env: input.Environment{
			WorkDir:     `C:\src`,
			ProgramPath: `C:\tools\link.exe`,
			OutputPath:  `C:\out\app.exe`,
			PDBPath:     `C:\out\app.pdb`,
			CommandLine: "/debug",
		},
		Sections: []input.OutputSection{
			{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x200, Characteristics: 0x60000020},
			{Name: ".data", VirtualAddress: 0x2000, VirtualSize: 0x80, Characteristics: 0xc0000040},
		},
		Groups: []modstream.CoffGroup{
			{Name: ".text$mn", Section: 1, Offset: 0, Size: 0x200, Characteristics: 0x60000020},
			{Name: ".data", Section: 2, Offset: 0, Size: 0x80, Characteristics: 0xc0000040},
		},
	}

	res, err := h.transformer.TransformLinker(context.Background(), 3, info, out)
	require.NoError(t, err)
	ms := parseModuleStream(t, out.Bytes(), res)

	assert.Equal(t, []format.SymbolKind{
		format.S_OBJNAME, format.S_COMPILE3, format.S_ENVBLOCK,
		format.S_SECTION, format.S_COFFGROUP,
		format.S_SECTION, format.S_COFFGROUP,
	}, ms.kinds())
	assert.Zero(t, res.C13Size)
	assert.Empty(t, ms.c13)

	objName, err := codeview.SymbolName(format.S_OBJNAME, ms.symbols[0].Data)
	require.NoError(t, err)
	assert.Equal(t, modstream.LinkerModuleName, objName)

	compile := ms.symbols[1].Data
	assert.Equal(t, uint16(0xd0), le.Uint16(compile[4:]))
	assert.Equal(t, []uint16{1, 4, 2}, []uint16{le.Uint16(compile[6:]), le.Uint16(compile[8:]), le.Uint16(compile[10:])})
	assert.Equal(t, []uint16{1, 4, 2}, []uint16{le.Uint16(compile[14:]), le.Uint16(compile[16:]), le.Uint16(compile[18:])})

	var env []string
	for rest := ms.symbols[2].Data[1:]; len(rest) > 0; {
		s, n, ok := endian.CString(rest)
		require.True(t, ok)
		if s == "" {
			break
		}
		env = append(env, s)
		rest = rest[n:]
	}
	assert.Equal(t, []string{"cwd", `C:\src`, "exe", `C:\tools\link.exe`, "out", `C:\out\app.exe`, "pdb", `C:\out\app.pdb`, "cmd", "/debug"}, env)

	section := ms.symbols[5].Data
	assert.Equal(t, uint16(2), le.Uint16(section[0:]))
	assert.Equal(t, uint32(0x2000), le.Uint32(section[4:]))
	group, err := codeview.SymbolName(format.S_COFFGROUP, ms.symbols[6].Data)
	require.NoError(t, err)
	assert.Equal(t, ".data", group)
}

func TestCoffGroups(t *testing.T) {
	modules := []*input.Module{
		{Path: "a.obj", Sections: []input.Section{
			{Name: ".text$mn", OutputSection: 1, OutputOffset: 0x40, Size: 0x10, Characteristics: 0x60000020},
			{Name: ".debug$S", Data: []byte{4, 0, 0, 0}},
			{Name: ".data", OutputSection: 2, OutputOffset: 0, Size: 8, Characteristics: 0xc0000040},
		}},
		{Path: "b.obj", Sections: []input.Section{
			{Name: ".text$mn", OutputSection: 1, OutputOffset: 0x10, Size: 0x20, Characteristics: 0x60000020},
			{Name: ".text$x", OutputSection: 1, OutputOffset: 0x80, Size: 0x4, Characteristics: 0x60000020},
			{Name: ".text$mn", OutputSection: 0, Size: 0x100},
		}},
	}

	assert.Equal(t, []modstream.CoffGroup{
		{Name: ".text$mn", Section: 1, Offset: 0x10, Size: 0x40, Characteristics: 0x60000020},
		{Name: ".text$x", Section: 1, Offset: 0x80, Size: 0x4, Characteristics: 0x60000020},
		{Name: ".data", Section: 2, Offset: 0, Size: 8, Characteristics: 0xc0000040},
	}, modstream.CoffGroups(modules))
}
