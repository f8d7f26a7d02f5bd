package layout

import (
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
)

// GSIHashHeader precedes the hash records of the globals and publics directories.
type GSIHashHeader struct {
	VerSignature uint32 // byte offset 0-3
	VerHdr       uint32 // byte offset 4-7
	HrSize       uint32 // byte offset 8-11, hash record bytes
	NumBuckets   uint32 // byte offset 12-15, bitmap + bucket offset bytes
}

// WriteTo appends the header to bb.
func (h *GSIHashHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(h.VerSignature)
	bb.WriteUint32(h.VerHdr)
	bb.WriteUint32(h.HrSize)
	bb.WriteUint32(h.NumBuckets)
}

// Parse parses the header from the first 16 bytes of data.
func (h *GSIHashHeader) Parse(data []byte) error {
	if len(data) < GSIHashHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.VerSignature = engine.Uint32(data[0:4])
	h.VerHdr = engine.Uint32(data[4:8])
	h.HrSize = engine.Uint32(data[8:12])
	h.NumBuckets = engine.Uint32(data[12:16])

	return nil
}

// PublicsHeader precedes the hash table of the publics stream.
type PublicsHeader struct {
	SymHash         uint32 // byte offset 0-3, size of the GSI hash section
	AddrMap         uint32 // byte offset 4-7, size of the address map
	NumThunks       uint32 // byte offset 8-11
	SizeOfThunk     uint32 // byte offset 12-15
	ISectThunkTable uint16 // byte offset 16-17, 2 bytes padding follow
	OffThunkTable   uint32 // byte offset 20-23
	NumSections     uint32 // byte offset 24-27
}

// WriteTo appends the header to bb.
func (h *PublicsHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(h.SymHash)
	bb.WriteUint32(h.AddrMap)
	bb.WriteUint32(h.NumThunks)
	bb.WriteUint32(h.SizeOfThunk)
	bb.WriteUint16(h.ISectThunkTable)
	bb.WriteUint16(0)
	bb.WriteUint32(h.OffThunkTable)
	bb.WriteUint32(h.NumSections)
}

// Parse parses the header from the first 28 bytes of data.
func (h *PublicsHeader) Parse(data []byte) error {
	if len(data) < PublicsHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.SymHash = engine.Uint32(data[0:4])
	h.AddrMap = engine.Uint32(data[4:8])
	h.NumThunks = engine.Uint32(data[8:12])
	h.SizeOfThunk = engine.Uint32(data[12:16])
	h.ISectThunkTable = engine.Uint16(data[16:18])
	h.OffThunkTable = engine.Uint32(data[20:24])
	h.NumSections = engine.Uint32(data[24:28])

	return nil
}

// StringTableHeader precedes the string pool of a string table stream.
type StringTableHeader struct {
	Signature   uint32 // byte offset 0-3
	HashVersion uint32 // byte offset 4-7
	ByteSize    uint32 // byte offset 8-11
}

// WriteTo appends the header to bb.
func (h *StringTableHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(h.Signature)
	bb.WriteUint32(h.HashVersion)
	bb.WriteUint32(h.ByteSize)
}

// Parse parses the header from the first 12 bytes of data.
func (h *StringTableHeader) Parse(data []byte) error {
	if len(data) < StringTableHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.Signature = engine.Uint32(data[0:4])
	h.HashVersion = engine.Uint32(data[4:8])
	h.ByteSize = engine.Uint32(data[8:12])

	return nil
}
