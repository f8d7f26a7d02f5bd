// Package modstream turns the debug sections of one object module into the
// module's symbol stream.
//
// Work on a module is split in two phases:
//
//   - Scan decodes the module's .debug$T and .debug$S sections into records
//     and subsections and matches every scope opener with its closer. It only
//     reads the module, so modules can be scanned concurrently.
//   - Transformer.Transform merges the module's type records into the shared
//     type tables, rewrites its symbols and writes the module stream. It
//     mutates tables shared by every module and must run serially, in module
//     order.
//
// Scope links are kept as arena indices while a module is transformed and
// converted to stream offsets only when the stream is serialized.
package modstream

import (
	"fmt"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/input"
)

// noScope marks an opener without an enclosing scope, or a record that is not
// an opener.
const noScope = -1

// symbolBlock is one DEBUG_S_SYMBOLS subsection.
type symbolBlock struct {
	records []codeview.Record

	// closers[i] is the index of the closer matching records[i] when
	// records[i] opens a scope, else noScope.
	closers []int
}

// Scanned is the decoded debug information of one module.
type Scanned struct {
	module *input.Module
	index  int

	types  []codeview.Record
	blocks []symbolBlock

	// subsections keeps every C13 subsection except symbols and the string
	// table, in input order.
	subsections []codeview.Subsection
	checksums   int // index of DEBUG_S_FILECHKSMS in subsections, or -1
	strings     []byte
}

// Module returns the scanned module.
func (s *Scanned) Module() *input.Module {
	return s.module
}

// Index returns the module's 0-based position in the image.
func (s *Scanned) Index() int {
	return s.index
}

// TypeRecords returns the number of records in the module's .debug$T section.
func (s *Scanned) TypeRecords() int {
	return len(s.types)
}

// SymbolRecords returns the number of input symbol records.
func (s *Scanned) SymbolRecords() int {
	n := 0
	for _, b := range s.blocks {
		n += len(b.records)
	}

	return n
}

// Scan decodes the debug sections of module m, the index-th module of the
// image.
//
// Returns:
//   - *Scanned: records and subsections ready for Transform
//   - error: an *Error wrapping ErrInvalidSignature, ErrTruncatedRecord,
//     ErrMalformedRecord, ErrUnknownRecordKind, ErrUnbalancedScope or
//     ErrUnmatchedScope
func Scan(m *input.Module, index int) (*Scanned, error) {
	s := &Scanned{module: m, index: index, checksums: -1}
	if m.LinkerGenerated {
		return s, nil
	}

	seenTypes := false
	for i := range m.Sections {
		sec := &m.Sections[i]

		switch {
		case sec.IsDebugTypes():
			if seenTypes {
				return nil, s.errorf(0, "%w: more than one %s section", errs.ErrMalformedRecord, input.DebugTypesSection)
			}
			seenTypes = true
			if err := s.scanTypes(sec.Data); err != nil {
				return nil, err
			}
		case sec.IsDebugSymbols():
			if err := s.scanSymbols(sec.Data); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *Scanned) scanTypes(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	body, err := codeview.StripSignature(data)
	if err != nil {
		return s.wrap(0, err)
	}
	s.types, err = codeview.ParseRecords(body)
	if err != nil {
		return s.wrap(0, fmt.Errorf("%s: %w", input.DebugTypesSection, err))
	}

	return nil
}

func (s *Scanned) scanSymbols(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	body, err := codeview.StripSignature(data)
	if err != nil {
		return s.wrap(0, err)
	}
	subs, err := codeview.ParseSubsections(body)
	if err != nil {
		return s.wrap(0, fmt.Errorf("%s: %w", input.DebugSymbolsSection, err))
	}

	for _, sub := range subs {
		if sub.Kind&format.DEBUG_S_IGNORE != 0 {
			continue
		}

		switch sub.Kind {
		case format.DEBUG_S_SYMBOLS:
			block, err := s.scanBlock(sub.Data)
			if err != nil {
				return err
			}
			s.blocks = append(s.blocks, block)
		case format.DEBUG_S_STRINGTABLE:
			if s.strings != nil {
				return s.errorf(0, "%w: more than one %s", errs.ErrMalformedRecord, sub.Kind)
			}
			s.strings = sub.Data
		case format.DEBUG_S_FILECHKSMS:
			if s.checksums >= 0 {
				return s.errorf(0, "%w: more than one %s", errs.ErrMalformedRecord, sub.Kind)
			}
			s.checksums = len(s.subsections)
			s.subsections = append(s.subsections, sub)
		default:
			s.subsections = append(s.subsections, sub)
		}
	}

	return nil
}

// scanBlock decodes one symbol subsection and matches its scopes. Scopes nest
// like parentheses: the closer of an opener is the first closer found at the
// opener's own depth.
func (s *Scanned) scanBlock(data []byte) (symbolBlock, error) {
	records, err := codeview.ParseRecords(data)
	if err != nil {
		return symbolBlock{}, s.wrap(0, fmt.Errorf("%s: %w", format.DEBUG_S_SYMBOLS, err))
	}

	closers := make([]int, len(records))
	var open []int
	for i, rec := range records {
		closers[i] = noScope

		kind := format.SymbolKind(rec.Kind)
		schema, err := codeview.LookupSymbol(kind)
		if err != nil {
			return symbolBlock{}, s.wrap(kind, err)
		}

		switch schema.Scope {
		case codeview.ScopeOpen:
			open = append(open, i)
		case codeview.ScopeClose:
			if len(open) == 0 {
				return symbolBlock{}, s.errorf(kind, "%w: record %d", errs.ErrUnbalancedScope, i)
			}
			closers[open[len(open)-1]] = i
			open = open[:len(open)-1]
		}
	}

	if len(open) > 0 {
		opener := open[len(open)-1]
		kind := format.SymbolKind(records[opener].Kind)

		return symbolBlock{}, s.errorf(kind, "%w: record %d", errs.ErrUnmatchedScope, opener)
	}

	return symbolBlock{records: records, closers: closers}, nil
}

func (s *Scanned) wrap(kind format.SymbolKind, err error) error {
	return &Error{Module: s.index, Path: s.module.Path, Kind: kind, Err: err}
}

func (s *Scanned) errorf(kind format.SymbolKind, msg string, args ...any) error {
	return s.wrap(kind, fmt.Errorf(msg, args...))
}
