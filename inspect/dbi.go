package inspect

import (
	"fmt"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/layout"
)

func (f *File) readDBI() error {
	data, err := f.msf.ReadStream(DBIStream)
	if err != nil {
		return err
	}

	h := &f.DbiHeader
	if err := h.Parse(data); err != nil {
		return err
	}
	f.Machine = h.Machine
	f.BuildNumber = h.BuildNumber

	rest := data[layout.DbiHeaderSize:]
	take := func(n uint32, what string) ([]byte, error) {
		if uint64(n) > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: %s substream of %d bytes", errs.ErrInvalidHeaderSize, what, n)
		}
		part := rest[:n]
		rest = rest[n:]

		return part, nil
	}

	modInfo, err := take(h.ModInfoSize, "module info")
	if err != nil {
		return err
	}
	contribs, err := take(h.SectionContributionSize, "section contribution")
	if err != nil {
		return err
	}
	secMap, err := take(h.SectionMapSize, "section map")
	if err != nil {
		return err
	}
	fileInfo, err := take(h.SourceInfoSize, "file info")
	if err != nil {
		return err
	}
	if _, err = take(h.TypeServerMapSize, "type server map"); err != nil {
		return err
	}
	if _, err = take(h.ECSubstreamSize, "EC"); err != nil {
		return err
	}
	dbg, err := take(h.OptionalDbgHeaderSize, "optional debug header")
	if err != nil {
		return err
	}

	if err := f.readModules(modInfo); err != nil {
		return err
	}
	if err := f.readContributions(contribs); err != nil {
		return err
	}
	if err := f.readSectionMap(secMap); err != nil {
		return err
	}
	if err := f.readFileInfo(fileInfo); err != nil {
		return err
	}

	f.DbgStreams, err = layout.ParseDbgHeader(dbg)
	if err != nil {
		return err
	}
	f.SectionHeader = f.DbgStreams[layout.DbgSectionHdr]

	return nil
}

func (f *File) readModules(data []byte) error {
	for len(data) > 0 {
		var hdr layout.ModInfoHeader
		if err := hdr.Parse(data); err != nil {
			return err
		}

		off := layout.ModInfoHeaderSize
		name, n, ok := endian.CString(data[off:])
		if !ok {
			return fmt.Errorf("%w: module %d name", errs.ErrMissingTerminator, len(f.Modules))
		}
		off += n
		objName, n, ok := endian.CString(data[off:])
		if !ok {
			return fmt.Errorf("%w: module %d object name", errs.ErrMissingTerminator, len(f.Modules))
		}
		off += n

		f.Modules = append(f.Modules, Module{
			Name:         name,
			ObjectFile:   objName,
			SymbolStream: hdr.ModuleSymStream,
			SymbolSize:   hdr.SymByteSize,
			C11Size:      hdr.C11ByteSize,
			C13Size:      hdr.C13ByteSize,
			Contribution: hdr.SectionContr,
		})

		next := endian.AlignUp(off, 4)
		if next > len(data) {
			return fmt.Errorf("%w: module %d entry padding", errs.ErrInvalidHeaderSize, len(f.Modules)-1)
		}
		data = data[next:]
	}

	return nil
}

func (f *File) readContributions(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < 4 {
		return errs.ErrInvalidHeaderSize
	}
	if v := endian.GetLittleEndianEngine().Uint32(data); v != layout.SectionContribVer60 {
		return fmt.Errorf("%w: section contribution version 0x%x", errs.ErrInvalidSignature, v)
	}

	for data = data[4:]; len(data) > 0; data = data[layout.SectionContribSize:] {
		sc, err := layout.ParseSectionContrib(data)
		if err != nil {
			return err
		}
		f.Contributions = append(f.Contributions, sc)
	}

	return nil
}

func (f *File) readSectionMap(data []byte) error {
	if len(data) < layout.SectionMapHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	count := int(engine.Uint16(data))
	data = data[layout.SectionMapHeaderSize:]
	if len(data) < count*layout.SectionMapEntrySize {
		return fmt.Errorf("%w: %d section map entries", errs.ErrInvalidHeaderSize, count)
	}

	for i := range count {
		e := data[i*layout.SectionMapEntrySize:]
		f.Sections = append(f.Sections, Section{
			Index:  engine.Uint16(e[6:]),
			Flags:  engine.Uint16(e[0:]),
			Length: engine.Uint32(e[16:]),
		})
	}

	return nil
}

func (f *File) readFileInfo(data []byte) error {
	engine := endian.GetLittleEndianEngine()
	if len(data) < 4 {
		return errs.ErrInvalidHeaderSize
	}

	numModules := int(engine.Uint16(data))
	if numModules != len(f.Modules) {
		return fmt.Errorf("%w: file info lists %d modules, directory %d", errs.ErrMalformedRecord, numModules, len(f.Modules))
	}

	counts := make([]int, numModules)
	total := 0
	countsAt := 4 + numModules*2
	if len(data) < countsAt+numModules*2 {
		return errs.ErrInvalidHeaderSize
	}
	for i := range counts {
		counts[i] = int(engine.Uint16(data[countsAt+i*2:]))
		total += counts[i]
	}

	offsetsAt := countsAt + numModules*2
	namesAt := offsetsAt + total*4
	if len(data) < namesAt {
		return errs.ErrInvalidHeaderSize
	}
	names := data[namesAt:]

	file := 0
	for i, n := range counts {
		for range n {
			off := engine.Uint32(data[offsetsAt+file*4:])
			if uint64(off) >= uint64(len(names)) {
				return fmt.Errorf("%w: file name offset %d outside %d-byte buffer", errs.ErrMalformedRecord, off, len(names))
			}
			name, _, ok := endian.CString(names[off:])
			if !ok {
				return fmt.Errorf("%w: file name at %d", errs.ErrMissingTerminator, off)
			}
			f.Modules[i].SourceFiles = append(f.Modules[i].SourceFiles, name)
			file++
		}
	}

	return nil
}
