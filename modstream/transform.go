package modstream

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/gsi"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/msf"
	"github.com/arloliu/pdbgen/strtab"
	"github.com/arloliu/pdbgen/typedb"
)

// Result describes a finished module stream.
type Result struct {
	Module int

	// SymbolsSize is the size of the symbol substream including the 4-byte
	// signature. C13Size is the size of the C13 line information following it.
	SymbolsSize uint32
	C13Size     uint32

	// SourceFiles lists the module's file checksum names in checksum order.
	SourceFiles []string

	Records  int // records written to the module stream
	Dropped  int // records dropped with discarded code or data
	Globals  int // records forwarded to the globals table
	ProcRefs int // S_PROCREF and S_LPROCREF records added to globals

	Remap *typedb.Remap
}

// Transformer rewrites modules against the tables shared by the whole
// artifact.
//
// Note: Transformer is NOT thread-safe. Modules must be transformed one at a
// time and in module order, since later modules reuse the type records and
// globals interned by earlier ones.
type Transformer struct {
	merger  *typedb.Merger
	names   *strtab.NamesTable
	globals *gsi.Globals
}

// NewTransformer creates a transformer that merges types through merger,
// interns file names into names and forwards global symbols to globals.
func NewTransformer(merger *typedb.Merger, names *strtab.NamesTable, globals *gsi.Globals) *Transformer {
	return &Transformer{
		merger:  merger,
		names:   names,
		globals: globals,
	}
}

// moduleState is the per-module state of one Transform call.
type moduleState struct {
	t      *Transformer
	s      *Scanned
	remap  *typedb.Remap
	arena  arena
	procs  []int // top-level S_GPROC32/S_LPROC32 nodes
	result *Result
}

// Transform merges the module's types, rewrites its symbols and writes the
// module stream to out:
//
//	signature | symbol records | C13 subsections | global refs size (0)
//
// Parameters:
//   - ctx: checked before work starts
//   - s: the module as returned by Scan
//   - out: the module's stream
//
// Returns:
//   - *Result: sizes and source files for the module's DBI record
//   - error: an *Error wrapping the failure; *typedb.RecordError is
//     reachable through errors.As when a type record failed to merge
func (t *Transformer) Transform(ctx context.Context, s *Scanned, out *msf.Stream) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remap, err := t.merger.MergeModule(s.types, s.index)
	if err != nil {
		return nil, s.wrap(0, err)
	}

	ms := &moduleState{
		t:      t,
		s:      s,
		remap:  remap,
		result: &Result{Module: s.index, Remap: remap},
	}

	for i := range s.blocks {
		if err := ms.transformBlock(&s.blocks[i]); err != nil {
			return nil, err
		}
	}

	c13, err := ms.lineInfo()
	if err != nil {
		return nil, err
	}

	offsets := ms.arena.offsets()
	if err := ms.writeStream(out, offsets, c13); err != nil {
		return nil, err
	}
	if err := ms.addProcRefs(offsets); err != nil {
		return nil, err
	}

	return ms.result, nil
}

// transformBlock runs the scope state machine over one symbol subsection.
// The stack holds the arena index of every open scope; an empty stack is
// the top level.
func (ms *moduleState) transformBlock(b *symbolBlock) error {
	var stack []int

	for i := 0; i < len(b.records); i++ {
		rec := b.records[i]
		kind := format.SymbolKind(rec.Kind)

		schema, err := codeview.LookupSymbol(kind)
		if err != nil {
			return ms.s.wrap(kind, err)
		}
		if err := schema.Validate(rec.Data); err != nil {
			return ms.s.wrap(kind, err)
		}

		if seg, ok := schema.Segment(rec.Data); ok && seg == 0 {
			// Discarded code or data: an opener takes its whole scope along.
			if schema.Scope == codeview.ScopeOpen {
				ms.result.Dropped += b.closers[i] - i + 1
				i = b.closers[i]
			} else {
				ms.result.Dropped++
			}

			continue
		}

		data, err := ms.rewrite(schema, rec.Data)
		if err != nil {
			return ms.s.wrap(kind, err)
		}

		switch schema.Scope {
		case codeview.ScopeOpen:
			parent := noScope
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}

			if kind.IsProc() {
				kind, err = ms.translateProc(kind, data)
				if err != nil {
					return ms.s.wrap(schema.Kind, err)
				}
			}

			idx := ms.arena.add(kind, data, parent)
			if parent == noScope && (kind == format.S_GPROC32 || kind == format.S_LPROC32) {
				ms.procs = append(ms.procs, idx)
			}
			stack = append(stack, idx)

		case codeview.ScopeClose:
			if len(stack) == 0 {
				return ms.s.errorf(kind, "%w: record %d", errs.ErrUnbalancedScope, i)
			}
			if kind == format.S_PROC_ID_END {
				kind = format.S_END
			}

			opener := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			ms.arena.close(opener, ms.arena.add(kind, data, noScope))

		default:
			if len(stack) == 0 && routesToGlobals(kind) {
				if _, err := ms.t.globals.Insert(codeview.AppendSymbolRecord(nil, uint16(kind), data)); err != nil {
					return ms.s.wrap(kind, err)
				}
				ms.result.Globals++

				continue
			}
			ms.arena.add(kind, data, noScope)
		}
		ms.result.Records++
	}

	if len(stack) > 0 {
		return ms.s.errorf(ms.arena.nodes[stack[len(stack)-1]].kind, "%w", errs.ErrUnmatchedScope)
	}

	return nil
}

// rewrite returns a copy of a symbol payload with every type and id index
// translated to its global value and module string table offsets translated
// to /names offsets.
func (ms *moduleState) rewrite(schema codeview.SymbolSchema, payload []byte) ([]byte, error) {
	refs, err := schema.IndexRefs(payload)
	if err != nil {
		return nil, err
	}

	data := slices.Clone(payload)
	engine := endian.GetLittleEndianEngine()
	for _, ref := range refs {
		global, err := ms.remap.Resolve(engine.Uint32(data[ref.Offset:]), ref.Space)
		if err != nil {
			return nil, fmt.Errorf("field at offset %d: %w", ref.Offset, err)
		}
		engine.PutUint32(data[ref.Offset:], uint32(global))
	}

	if schema.Kind == format.S_FILESTATIC {
		off, _, err := ms.internModuleString(engine.Uint32(data[4:]))
		if err != nil {
			return nil, err
		}
		engine.PutUint32(data[4:], off)
	}

	return data, nil
}

// translateProc turns an id-based procedure into its type-based form: the
// function id at offset 24 is replaced by the type of the LF_FUNC_ID or
// LF_MFUNC_ID record it names.
func (ms *moduleState) translateProc(kind format.SymbolKind, data []byte) (format.SymbolKind, error) {
	var translated format.SymbolKind
	switch kind {
	case format.S_GPROC32_ID:
		translated = format.S_GPROC32
	case format.S_LPROC32_ID:
		translated = format.S_LPROC32
	case format.S_LPROC32_DPC_ID:
		translated = format.S_LPROC32_DPC
	default:
		return kind, nil
	}

	engine := endian.GetLittleEndianEngine()
	id := typedb.TypeIndex(engine.Uint32(data[24:]))
	if id.IsSimple() {
		return translated, nil
	}

	entry, ok := ms.t.merger.IDs().Lookup(id)
	if !ok || (entry.Kind != format.LF_FUNC_ID && entry.Kind != format.LF_MFUNC_ID) {
		return 0, fmt.Errorf("%w: procedure id 0x%x is not a function id", errs.ErrMalformedRecord, uint32(id))
	}
	payload := entry.Payload()
	if len(payload) < 8 {
		return 0, fmt.Errorf("%w: %s 0x%x", errs.ErrTruncatedRecord, entry.Kind, uint32(id))
	}
	engine.PutUint32(data[24:], engine.Uint32(payload[4:]))

	return translated, nil
}

// internModuleString interns the string at off in the module's string table
// and returns its /names offset.
func (ms *moduleState) internModuleString(off uint32) (uint32, string, error) {
	table := ms.s.strings
	if int(off) >= len(table) {
		return 0, "", fmt.Errorf("%w: string table offset %d outside %d bytes", errs.ErrMalformedRecord, off, len(table))
	}

	str, _, ok := endian.CString(table[off:])
	if !ok {
		return 0, "", fmt.Errorf("%w: string table offset %d", errs.ErrMissingTerminator, off)
	}

	return ms.t.names.InternString(str), str, nil
}

// lineInfo encodes the module's C13 subsections. File checksum names are
// re-pointed at /names; every other subsection is copied unchanged, since
// line and inlinee subsections refer to checksums by entry offset and the
// rewrite keeps entry offsets stable.
func (ms *moduleState) lineInfo() ([]byte, error) {
	var buf []byte
	for i, sub := range ms.s.subsections {
		data := sub.Data
		if i == ms.s.checksums {
			var err error
			data, err = ms.rewriteChecksums(sub.Data)
			if err != nil {
				return nil, ms.s.wrap(0, fmt.Errorf("%s: %w", sub.Kind, err))
			}
		}
		buf = codeview.AppendSubsection(buf, sub.Kind, data)
	}

	return buf, nil
}

func (ms *moduleState) rewriteChecksums(raw []byte) ([]byte, error) {
	entries, offsets, err := codeview.ParseFileChecksums(raw)
	if err != nil {
		return nil, err
	}

	data := slices.Clone(raw)
	engine := endian.GetLittleEndianEngine()
	for i, e := range entries {
		off, name, err := ms.internModuleString(e.NameOffset)
		if err != nil {
			return nil, err
		}
		engine.PutUint32(data[offsets[i]:], off)
		ms.result.SourceFiles = append(ms.result.SourceFiles, name)
	}

	return data, nil
}

func (ms *moduleState) writeStream(out *msf.Stream, offsets []uint32, c13 []byte) error {
	symbolsSize := 4 + ms.arena.size()

	bb := pool.NewByteBuffer(symbolsSize + len(c13) + 4)
	bb.MustWrite(streamHeader())
	bb.MustWrite(ms.arena.appendTo(nil, offsets))
	bb.MustWrite(c13)
	bb.WriteUint32(0) // global refs

	if _, err := bb.WriteTo(out); err != nil {
		return ms.s.wrap(0, err)
	}

	ms.result.SymbolsSize = uint32(symbolsSize) //nolint: gosec
	ms.result.C13Size = uint32(len(c13))        //nolint: gosec

	return nil
}

// addProcRefs forwards one S_PROCREF or S_LPROCREF per top-level procedure to
// the globals table. The reference names the 1-based module and the
// procedure's offset in the module stream.
func (ms *moduleState) addProcRefs(offsets []uint32) error {
	engine := endian.GetLittleEndianEngine()
	for _, idx := range ms.procs {
		n := &ms.arena.nodes[idx]
		name, err := codeview.SymbolName(n.kind, n.data)
		if err != nil {
			return ms.s.wrap(n.kind, err)
		}

		kind := format.S_PROCREF
		if n.kind == format.S_LPROC32 {
			kind = format.S_LPROCREF
		}

		payload := engine.AppendUint32(nil, 0) // SUC of the name
		payload = engine.AppendUint32(payload, offsets[idx])
		payload = engine.AppendUint16(payload, uint16(ms.s.index+1)) //nolint: gosec
		payload = endian.AppendCString(payload, name)

		if _, err := ms.t.globals.Insert(codeview.AppendSymbolRecord(nil, uint16(kind), payload)); err != nil {
			return ms.s.wrap(kind, err)
		}
		ms.result.ProcRefs++
	}

	return nil
}

// routesToGlobals reports whether a top-level record belongs to the globals
// table instead of the module stream.
func routesToGlobals(kind format.SymbolKind) bool {
	switch kind {
	case format.S_GDATA32, format.S_LDATA32, format.S_GTHREAD32, format.S_LTHREAD32,
		format.S_GMANDATA, format.S_LMANDATA, format.S_CONSTANT, format.S_UDT:
		return true
	default:
		return false
	}
}
