package layout

import (
	"github.com/google/uuid"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
)

// InfoHeader is the fixed header of the PDB info stream (stream 1).
type InfoHeader struct {
	Version   uint32    // byte offset 0-3
	Signature uint32    // byte offset 4-7
	Age       uint32    // byte offset 8-11
	GUID      uuid.UUID // byte offset 12-27, stored in Windows GUID byte order
}

// WriteTo appends the header to bb.
func (h *InfoHeader) WriteTo(bb *pool.ByteBuffer) {
	bb.WriteUint32(h.Version)
	bb.WriteUint32(h.Signature)
	bb.WriteUint32(h.Age)
	bb.MustWrite(GUIDBytes(h.GUID))
}

// Bytes serializes the header into a 28-byte slice.
func (h *InfoHeader) Bytes() []byte {
	bb := pool.NewByteBuffer(InfoHeaderSize)
	h.WriteTo(bb)

	return bb.Bytes()
}

// Parse parses the header from the first 28 bytes of data.
func (h *InfoHeader) Parse(data []byte) error {
	if len(data) < InfoHeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()
	h.Version = engine.Uint32(data[0:4])
	h.Signature = engine.Uint32(data[4:8])
	h.Age = engine.Uint32(data[8:12])
	h.GUID = GUIDFromBytes(data[12:28])

	return nil
}

// GUIDBytes converts an RFC 4122 UUID into the mixed-endian Windows GUID
// layout: Data1 (uint32), Data2 and Data3 (uint16) little-endian, Data4 as is.
func GUIDBytes(id uuid.UUID) []byte {
	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])

	return b
}

// GUIDFromBytes is the inverse of GUIDBytes.
func GUIDFromBytes(b []byte) uuid.UUID {
	var id uuid.UUID
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:16])

	return id
}
