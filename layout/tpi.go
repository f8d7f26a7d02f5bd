package layout

import (
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
)

// TpiHeader is the fixed header of the TPI (types) and IPI (ids) streams.
type TpiHeader struct {
	Version              uint32 // byte offset 0-3
	HeaderSize           uint32 // byte offset 4-7
	TypeIndexBegin       uint32 // byte offset 8-11
	TypeIndexEnd         uint32 // byte offset 12-15
	TypeRecordBytes      uint32 // byte offset 16-19
	HashStreamIndex      uint16 // byte offset 20-21
	HashAuxStreamIndex   uint16 // byte offset 22-23
	HashKeySize          uint32 // byte offset 24-27
	NumHashBuckets       uint32 // byte offset 28-31
	HashValueBufferOff   int32  // byte offset 32-35
	HashValueBufferLen   uint32 // byte offset 36-39
	IndexOffsetBufferOff int32  // byte offset 40-43
	IndexOffsetBufferLen uint32 // byte offset 44-47
	HashAdjBufferOff     int32  // byte offset 48-51
	HashAdjBufferLen     uint32 // byte offset 52-55
}

// NewTpiHeader returns a header with the constant fields filled in.
func NewTpiHeader() *TpiHeader {
	return &TpiHeader{
		Version:            TpiVersionV80,
		HeaderSize:         TpiHeaderSize,
		TypeIndexBegin:     FirstTypeIndex,
		TypeIndexEnd:       FirstTypeIndex,
		HashStreamIndex:    InvalidStreamIndex,
		HashAuxStreamIndex: InvalidStreamIndex,
		HashKeySize:        TpiHashKeySize,
		NumHashBuckets:     TpiHashBuckets,
	}
}

// WriteTo appends the header to bb.
func (h *TpiHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(h.Version)
	bb.WriteUint32(h.HeaderSize)
	bb.WriteUint32(h.TypeIndexBegin)
	bb.WriteUint32(h.TypeIndexEnd)
	bb.WriteUint32(h.TypeRecordBytes)
	bb.WriteUint16(h.HashStreamIndex)
	bb.WriteUint16(h.HashAuxStreamIndex)
	bb.WriteUint32(h.HashKeySize)
	bb.WriteUint32(h.NumHashBuckets)
	bb.WriteUint32(uint32(h.HashValueBufferOff)) //nolint: gosec
	bb.WriteUint32(h.HashValueBufferLen)
	bb.WriteUint32(uint32(h.IndexOffsetBufferOff)) //nolint: gosec
	bb.WriteUint32(h.IndexOffsetBufferLen)
	bb.WriteUint32(uint32(h.HashAdjBufferOff)) //nolint: gosec
	bb.WriteUint32(h.HashAdjBufferLen)
}

// Bytes serializes the header into a 56-byte slice.
func (h *TpiHeader) Bytes() []byte {
	bb := pool.NewByteBuffer(TpiHeaderSize)
	h.WriteTo(bb)

	return bb.Bytes()
}

// Parse parses the header from the first 56 bytes of data.
func (h *TpiHeader) Parse(data []byte) error {
	if len(data) < TpiHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.Version = engine.Uint32(data[0:4])
	h.HeaderSize = engine.Uint32(data[4:8])
	h.TypeIndexBegin = engine.Uint32(data[8:12])
	h.TypeIndexEnd = engine.Uint32(data[12:16])
	h.TypeRecordBytes = engine.Uint32(data[16:20])
	h.HashStreamIndex = engine.Uint16(data[20:22])
	h.HashAuxStreamIndex = engine.Uint16(data[22:24])
	h.HashKeySize = engine.Uint32(data[24:28])
	h.NumHashBuckets = engine.Uint32(data[28:32])
	h.HashValueBufferOff = int32(engine.Uint32(data[32:36])) //nolint: gosec
	h.HashValueBufferLen = engine.Uint32(data[36:40])
	h.IndexOffsetBufferOff = int32(engine.Uint32(data[40:44])) //nolint: gosec
	h.IndexOffsetBufferLen = engine.Uint32(data[44:48])
	h.HashAdjBufferOff = int32(engine.Uint32(data[48:52])) //nolint: gosec
	h.HashAdjBufferLen = engine.Uint32(data[52:56])

	return nil
}
