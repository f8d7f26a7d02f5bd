// Package builder orchestrates the encoder: it creates every stream of the
// program database in a fixed order, drives the type merger, the module
// transformer and the symbol directories over the modules of a linked image,
// and writes the info stream that names the result.
//
// Stream creation order:
//
//	0  reserved            5  TPI hash            10 section headers
//	1  info                6  IPI hash            11.. module streams
//	2  TPI                 7  symbol records      then /names, /LinkInfo
//	3  DBI                 8  globals
//	4  IPI                 9  publics
//
// Modules are split into records concurrently. Everything that touches the
// shared tables runs serially in module order, so the output depends only on
// the input.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/pdbgen/dbi"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/gsi"
	"github.com/arloliu/pdbgen/input"
	"github.com/arloliu/pdbgen/internal/options"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/modstream"
	"github.com/arloliu/pdbgen/msf"
	"github.com/arloliu/pdbgen/strtab"
	"github.com/arloliu/pdbgen/typedb"
)

// Named streams listed in the info stream.
const (
	NamesStream    = "/names"
	LinkInfoStream = "/LinkInfo"
)

// Builder encodes linked images into program databases. A Builder holds
// only configuration; every Build call starts from empty tables, so one
// Builder may encode any number of images.
type Builder struct {
	cfg *Config
}

// New creates a builder.
//
// Returns:
//   - *Builder: builder ready to encode
//   - error: the first error reported by opts
func New(opts ...Option) (*Builder, error) {
	cfg := NewConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Builder{cfg: cfg}, nil
}

// Config returns the builder configuration.
func (b *Builder) Config() *Config {
	return b.cfg
}

// streams holds the fixed streams created before any module stream.
type streams struct {
	info       *msf.Stream
	tpi        *msf.Stream
	dbi        *msf.Stream
	ipi        *msf.Stream
	tpiHash    *msf.Stream
	ipiHash    *msf.Stream
	symRecords *msf.Stream
	globals    *msf.Stream
	publics    *msf.Stream
	secHeaders *msf.Stream
}

// build is the state of one Build call.
type build struct {
	cfg    *Config
	log    zerolog.Logger
	img    input.Image
	file   *msf.Builder
	s      streams
	names  *strtab.NamesTable
	merger *typedb.Merger

	records *gsi.SymbolRecords
	globals *gsi.Globals
	publics *gsi.Publics
	dbi     *dbi.Builder

	transformer *modstream.Transformer
	stats       Stats
}

// Build encodes img into a new artifact.
//
// Parameters:
//   - ctx: cancels the encode between modules
//   - img: the linked image
//
// Returns:
//   - *Artifact: the finished artifact, ready to be written
//   - error: ErrNilImage, a *modstream.Error naming the module and record
//     that failed, or a stream error. Every failure abandons the artifact;
//     errs.Classify sorts the error into the failure taxonomy.
func (b *Builder) Build(ctx context.Context, img input.Image) (*Artifact, error) {
	if img == nil {
		return nil, errs.ErrNilImage
	}

	start := time.Now()
	bd := &build{
		cfg: b.cfg,
		log: b.cfg.logger,
		img: img,
	}

	art, err := bd.run(ctx)
	if err != nil {
		bd.log.Warn().Err(err).Str("class", errs.Classify(err).String()).Msg("program database abandoned")
		return nil, err
	}

	bd.log.Info().
		Int("streams", bd.file.NumStreams()).
		Int("modules", bd.stats.Modules).
		Int("types", bd.stats.Types).
		Int("ids", bd.stats.IDs).
		Int("globals", bd.stats.Globals).
		Int("publics", bd.stats.Publics).
		Str("guid", art.guid.String()).
		Dur("elapsed", time.Since(start)).
		Msg("program database built")

	return art, nil
}

func (bd *build) run(ctx context.Context) (*Artifact, error) {
	file, err := msf.NewBuilder(bd.cfg.blockSize)
	if err != nil {
		return nil, err
	}
	bd.file = file

	if err := bd.createStreams(); err != nil {
		return nil, err
	}

	bd.names = strtab.NewNamesTable()
	bd.merger = typedb.NewMerger(bd.names)
	bd.records = gsi.NewSymbolRecords()
	bd.globals = gsi.NewGlobals(bd.records)
	bd.publics = gsi.NewPublics(bd.records)
	bd.dbi = dbi.NewBuilder()
	bd.transformer = modstream.NewTransformer(bd.merger, bd.names, bd.globals)

	modules := bd.img.Modules()
	scanned, err := bd.scan(ctx, modules)
	if err != nil {
		return nil, err
	}
	if err := bd.transformModules(ctx, modules, scanned); err != nil {
		return nil, err
	}

	bd.addPublics()
	bd.addContributions(modules)
	if err := bd.writeTables(); err != nil {
		return nil, err
	}

	namesStream, err := bd.file.AddNamedStream(NamesStream)
	if err != nil {
		return nil, err
	}
	if _, err := bd.names.WriteTo(namesStream); err != nil {
		return nil, err
	}
	namesStream.Seal()

	// The link info stream is present but empty.
	linkInfo, err := bd.file.AddNamedStream(LinkInfoStream)
	if err != nil {
		return nil, err
	}
	linkInfo.Seal()

	guid, signature := bd.identity()
	if err := bd.writeInfo(guid, signature); err != nil {
		return nil, err
	}

	bd.stats.Streams = bd.file.NumStreams()

	return &Artifact{
		file:      bd.file,
		guid:      guid,
		age:       bd.cfg.age,
		signature: signature,
		stats:     bd.stats,
	}, nil
}

func (bd *build) createStreams() error {
	for _, sp := range []**msf.Stream{
		&bd.s.info, &bd.s.tpi, &bd.s.dbi, &bd.s.ipi,
		&bd.s.tpiHash, &bd.s.ipiHash,
		&bd.s.symRecords, &bd.s.globals, &bd.s.publics,
		&bd.s.secHeaders,
	} {
		s, err := bd.file.AddStream()
		if err != nil {
			return err
		}
		*sp = s
	}

	return nil
}

// scan splits every module into records, at most scanConcurrency modules at
// a time. The first failure cancels the remaining scans.
func (bd *build) scan(ctx context.Context, modules []*input.Module) ([]*modstream.Scanned, error) {
	scanned := make([]*modstream.Scanned, len(modules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bd.cfg.scanConcurrency)
	for i, m := range modules {
		if m.LinkerGenerated {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := modstream.Scan(m, i)
			if err != nil {
				return err
			}
			scanned[i] = s

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scanned, nil
}

// transformModules writes one module stream per module, in module order,
// and the linker module after them unless the image provides one.
func (bd *build) transformModules(ctx context.Context, modules []*input.Module, scanned []*modstream.Scanned) error {
	hasLinker := false
	for i, m := range modules {
		out, err := bd.file.AddStream()
		if err != nil {
			return err
		}

		var res *modstream.Result
		if m.LinkerGenerated {
			hasLinker = true
			res, err = bd.transformer.TransformLinker(ctx, i, bd.linkerInfo(modules), out)
		} else {
			res, err = bd.transformer.Transform(ctx, scanned[i], out)
		}
		if err != nil {
			return err
		}
		out.Seal()

		name, objName := m.Path, m.ObjectName()
		if m.LinkerGenerated {
			name, objName = modstream.LinkerModuleName, ""
		}
		bd.addModule(name, objName, out, res)
	}

	if hasLinker {
		return nil
	}

	out, err := bd.file.AddStream()
	if err != nil {
		return err
	}
	res, err := bd.transformer.TransformLinker(ctx, len(modules), bd.linkerInfo(modules), out)
	if err != nil {
		return err
	}
	out.Seal()
	bd.addModule(modstream.LinkerModuleName, "", out, res)

	return nil
}

func (bd *build) addModule(name, objName string, out *msf.Stream, res *modstream.Result) {
	rec := bd.dbi.AddModule(name, objName)
	rec.SetStream(out.Index())
	rec.SetSizes(res.SymbolsSize, 0, res.C13Size)
	for _, f := range res.SourceFiles {
		rec.AddSourceFile(f)
	}

	bd.stats.Modules++
	bd.stats.DroppedRecords += res.Dropped

	bd.log.Debug().
		Int("module", res.Module).
		Str("path", name).
		Uint16("stream", out.Index()).
		Int("records", res.Records).
		Int("dropped", res.Dropped).
		Int("globals", res.Globals).
		Int("files", len(res.SourceFiles)).
		Msg("module transformed")
}

func (bd *build) linkerInfo(modules []*input.Module) modstream.LinkerInfo {
	return modstream.LinkerInfo{
		Machine:  bd.img.Machine(),
		Version:  bd.cfg.version,
		Env:      bd.img.Environment(),
		Sections: bd.img.OutputSections(),
		Groups:   modstream.CoffGroups(modules),
	}
}

// addPublics inserts every public that survived into the image. A public in
// section 0 was discarded with its definition.
func (bd *build) addPublics() {
	for _, p := range bd.img.Publics() {
		if p.Section == 0 {
			continue
		}
		bd.publics.Insert(p.Name, p.Section, p.Offset, p.IsFunction)
	}
}

// addContributions records every retained input section of every module.
func (bd *build) addContributions(modules []*input.Module) {
	for i, m := range modules {
		if m.LinkerGenerated {
			continue
		}
		for j := range m.Sections {
			sec := &m.Sections[j]
			if !sec.Retained() || sec.IsDebugTypes() || sec.IsDebugSymbols() {
				continue
			}
			bd.dbi.AddContribution(dbi.SectionContribution{
				Section:         sec.OutputSection,
				Offset:          sec.OutputOffset,
				Size:            sec.Size,
				Characteristics: sec.Characteristics,
				Module:          uint16(i), //nolint: gosec
				DataCRC:         sec.DataCRC,
				RelocCRC:        sec.RelocCRC,
			})
		}
	}

	for _, sec := range bd.img.OutputSections() {
		bd.dbi.AddOutputSection(sec)
	}
}

// writeTables serializes the type tables, the symbol directories, the
// section headers and the DBI stream into the streams created up front.
func (bd *build) writeTables() error {
	types, ids := bd.merger.Types(), bd.merger.IDs()
	if err := types.Serialize(bd.s.tpi, bd.s.tpiHash); err != nil {
		return err
	}
	if err := ids.Serialize(bd.s.ipi, bd.s.ipiHash); err != nil {
		return err
	}

	if _, err := bd.s.symRecords.Write(bd.records.Bytes()); err != nil {
		return err
	}
	if _, err := bd.globals.WriteTo(bd.s.globals); err != nil {
		return err
	}
	if _, err := bd.publics.WriteTo(bd.s.publics); err != nil {
		return err
	}
	if _, err := bd.s.secHeaders.Write(bd.img.SectionHeaders()); err != nil {
		return err
	}
	bd.dbi.SetDbgStream(layout.DbgSectionHdr, bd.s.secHeaders.Index())

	major, minor := bd.cfg.buildNumber()
	if err := bd.dbi.Finish(bd.s.dbi, dbi.Header{
		Age:             bd.cfg.age,
		Machine:         bd.img.Machine(),
		BuildMajor:      major,
		BuildMinor:      minor,
		GlobalStream:    bd.s.globals.Index(),
		PublicStream:    bd.s.publics.Index(),
		SymRecordStream: bd.s.symRecords.Index(),
	}); err != nil {
		return err
	}

	for _, s := range []*msf.Stream{
		bd.s.tpi, bd.s.tpiHash, bd.s.ipi, bd.s.ipiHash,
		bd.s.symRecords, bd.s.globals, bd.s.publics, bd.s.secHeaders, bd.s.dbi,
	} {
		s.Seal()
	}

	bd.stats.Types = types.Len()
	bd.stats.IDs = ids.Len()
	bd.stats.Globals = bd.globals.Len()
	bd.stats.Publics = bd.publics.Len()
	bd.stats.SymbolRecordBytes = bd.records.Len()
	bd.stats.Names = bd.names.NameCount()

	return nil
}

// identity returns the GUID and signature of the artifact.
func (bd *build) identity() (uuid.UUID, uint32) {
	guid := bd.cfg.guid
	signature := bd.cfg.signatureAt(time.Now())
	if guid != uuid.Nil {
		return guid, signature
	}
	if !bd.cfg.deterministic {
		return uuid.New(), signature
	}

	guid = contentGUID(bd.file)
	if !bd.cfg.hasSignature {
		signature = guidSignature(guid)
	}

	return guid, signature
}

func (bd *build) writeInfo(guid uuid.UUID, signature uint32) error {
	hdr := layout.InfoHeader{
		Version:   layout.InfoVersionVC70,
		Signature: signature,
		Age:       bd.cfg.age,
		GUID:      guid,
	}

	named := bd.file.NamedStreams()
	entries := make([]layout.NamedStream, 0, len(named))
	for _, s := range named {
		entries = append(entries, layout.NamedStream{Name: s.Name(), Index: s.Index()})
	}

	if _, err := bd.s.info.Write(infoStream(&hdr, entries)); err != nil {
		return fmt.Errorf("%w: info stream: %w", errs.ErrWriteArtifact, err)
	}
	bd.s.info.Seal()

	return nil
}
