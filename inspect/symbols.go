package inspect

import (
	"fmt"

	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/layout"
)

// Public is one entry of the publics directory.
type Public struct {
	Name         string `json:"name" yaml:"name"`
	Section      uint16 `json:"section" yaml:"section"`
	Offset       uint32 `json:"offset" yaml:"offset"`
	Flags        uint32 `json:"flags" yaml:"flags"`
	RecordOffset uint32 `json:"record_offset" yaml:"record_offset"`
}

// Global is one entry of the globals directory.
type Global struct {
	Kind         format.SymbolKind `json:"kind" yaml:"kind"`
	Name         string            `json:"name" yaml:"name"`
	RecordOffset uint32            `json:"record_offset" yaml:"record_offset"`
	RefCount     uint32            `json:"ref_count" yaml:"ref_count"`
	Data         []byte            `json:"-" yaml:"-"`
}

// hashRecord is one (offset+1, reference count) pair of a GSI hash table.
type hashRecord struct {
	offset   uint32
	refCount uint32
}

func parseHashRecords(data []byte) ([]hashRecord, error) {
	var hdr layout.GSIHashHeader
	if err := hdr.Parse(data); err != nil {
		return nil, err
	}
	if hdr.VerSignature != layout.GSIHashSignature || hdr.VerHdr != layout.GSIHashVersion {
		return nil, fmt.Errorf("%w: hash table version 0x%x", errs.ErrInvalidSignature, hdr.VerHdr)
	}
	if uint64(hdr.HrSize) > uint64(len(data)-layout.GSIHashHeaderSize) {
		return nil, fmt.Errorf("%w: %d hash record bytes", errs.ErrInvalidHeaderSize, hdr.HrSize)
	}

	engine := endian.GetLittleEndianEngine()
	records := make([]hashRecord, 0, hdr.HrSize/layout.GSIHashRecordSize)
	for off := layout.GSIHashHeaderSize; off+layout.GSIHashRecordSize <= layout.GSIHashHeaderSize+int(hdr.HrSize); off += layout.GSIHashRecordSize {
		records = append(records, hashRecord{
			offset:   engine.Uint32(data[off:]),
			refCount: engine.Uint32(data[off+4:]),
		})
	}

	return records, nil
}

func (f *File) readDirectoryCounts() error {
	globals, err := f.globalHashRecords()
	if err != nil {
		return fmt.Errorf("globals stream: %w", err)
	}
	f.GlobalCount = len(globals)

	publics, _, err := f.publicsTables()
	if err != nil {
		return fmt.Errorf("publics stream: %w", err)
	}
	f.PublicCount = len(publics)

	return nil
}

func (f *File) globalHashRecords() ([]hashRecord, error) {
	data, err := f.msf.ReadStream(f.DbiHeader.GlobalStreamIndex)
	if err != nil {
		return nil, err
	}

	return parseHashRecords(data)
}

// publicsTables returns the hash records and the address map of the publics
// stream.
func (f *File) publicsTables() ([]hashRecord, []uint32, error) {
	data, err := f.msf.ReadStream(f.DbiHeader.PublicStreamIndex)
	if err != nil {
		return nil, nil, err
	}

	var hdr layout.PublicsHeader
	if err := hdr.Parse(data); err != nil {
		return nil, nil, err
	}
	data = data[layout.PublicsHeaderSize:]
	if uint64(hdr.SymHash)+uint64(hdr.AddrMap) > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: publics tables of %d+%d bytes", errs.ErrInvalidHeaderSize, hdr.SymHash, hdr.AddrMap)
	}

	records, err := parseHashRecords(data[:hdr.SymHash])
	if err != nil {
		return nil, nil, err
	}

	engine := endian.GetLittleEndianEngine()
	addrMap := data[hdr.SymHash : hdr.SymHash+hdr.AddrMap]
	offsets := make([]uint32, 0, len(addrMap)/4)
	for off := 0; off+4 <= len(addrMap); off += 4 {
		offsets = append(offsets, engine.Uint32(addrMap[off:]))
	}

	return records, offsets, nil
}

// symbolRecord returns the record at off in the symbol record stream.
func symbolRecord(records []byte, off uint32) (codeview.Record, error) {
	if uint64(off)+codeview.RecordPrefixSize > uint64(len(records)) {
		return codeview.Record{}, fmt.Errorf("%w: record offset %d", errs.ErrTruncatedRecord, off)
	}

	engine := endian.GetLittleEndianEngine()
	length := int(engine.Uint16(records[off:]))
	end := int(off) + 2 + length
	if length < 2 || end > len(records) {
		return codeview.Record{}, fmt.Errorf("%w: record length %d at offset %d", errs.ErrTruncatedRecord, length, off)
	}

	return codeview.Record{Kind: engine.Uint16(records[off+2:]), Data: records[off+4 : end]}, nil
}

// Globals returns the globals directory in hash table order.
func (f *File) Globals() ([]Global, error) {
	hashed, err := f.globalHashRecords()
	if err != nil {
		return nil, err
	}
	records, err := f.msf.ReadStream(f.DbiHeader.SymRecordStreamIndex)
	if err != nil {
		return nil, err
	}

	globals := make([]Global, 0, len(hashed))
	for _, h := range hashed {
		if h.offset == 0 {
			return nil, fmt.Errorf("%w: zero hash record offset", errs.ErrMalformedRecord)
		}
		rec, err := symbolRecord(records, h.offset-1)
		if err != nil {
			return nil, err
		}
		kind := format.SymbolKind(rec.Kind)
		name, err := codeview.SymbolName(kind, rec.Data)
		if err != nil {
			return nil, err
		}
		globals = append(globals, Global{
			Kind:         kind,
			Name:         name,
			RecordOffset: h.offset - 1,
			RefCount:     h.refCount,
			Data:         rec.Data,
		})
	}

	return globals, nil
}

// Publics returns the publics directory in address map order.
func (f *File) Publics() ([]Public, error) {
	_, addrMap, err := f.publicsTables()
	if err != nil {
		return nil, err
	}
	records, err := f.msf.ReadStream(f.DbiHeader.SymRecordStreamIndex)
	if err != nil {
		return nil, err
	}

	engine := endian.GetLittleEndianEngine()
	publics := make([]Public, 0, len(addrMap))
	for _, off := range addrMap {
		rec, err := symbolRecord(records, off)
		if err != nil {
			return nil, err
		}
		if format.SymbolKind(rec.Kind) != format.S_PUB32 || len(rec.Data) < 10 {
			return nil, fmt.Errorf("%w: record at %d is not S_PUB32", errs.ErrMalformedRecord, off)
		}
		name, _, ok := endian.CString(rec.Data[10:])
		if !ok {
			return nil, fmt.Errorf("%w: public at %d", errs.ErrMissingTerminator, off)
		}
		publics = append(publics, Public{
			Name:         name,
			Flags:        engine.Uint32(rec.Data[0:]),
			Offset:       engine.Uint32(rec.Data[4:]),
			Section:      engine.Uint16(rec.Data[8:]),
			RecordOffset: off,
		})
	}

	return publics, nil
}

// ModuleSymbols returns the symbol records of the i-th module stream.
func (f *File) ModuleSymbols(i int) ([]codeview.Record, error) {
	if i < 0 || i >= len(f.Modules) {
		return nil, fmt.Errorf("%w: module %d of %d", errs.ErrInvalidStreamIndex, i, len(f.Modules))
	}

	m := f.Modules[i]
	if m.SymbolStream == layout.InvalidStreamIndex {
		return nil, nil
	}
	data, err := f.msf.ReadStream(m.SymbolStream)
	if err != nil {
		return nil, err
	}
	if uint64(m.SymbolSize) > uint64(len(data)) || m.SymbolSize < 4 {
		return nil, fmt.Errorf("%w: module %d symbols of %d bytes", errs.ErrInvalidHeaderSize, i, m.SymbolSize)
	}
	if sig := endian.GetLittleEndianEngine().Uint32(data); sig != layout.CVSignatureC13 {
		return nil, fmt.Errorf("%w: module %d signature %d", errs.ErrInvalidSignature, i, sig)
	}

	return codeview.ParseRecords(data[4:m.SymbolSize])
}
