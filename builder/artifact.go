package builder

import (
	"io"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/msf"
)

// Stats summarizes a finished artifact.
type Stats struct {
	Streams           int
	Modules           int
	Types             int
	IDs               int
	Globals           int
	Publics           int
	Names             int // non-empty strings in /names
	SymbolRecordBytes int
	DroppedRecords    int // module records dropped with discarded sections
}

// Artifact is an encoded program database that has not been written yet.
type Artifact struct {
	file      *msf.Builder
	guid      uuid.UUID
	age       uint32
	signature uint32
	stats     Stats
}

// GUID returns the artifact GUID recorded in the info stream.
func (a *Artifact) GUID() uuid.UUID {
	return a.guid
}

// Age returns the artifact age.
func (a *Artifact) Age() uint32 {
	return a.age
}

// Signature returns the 32-bit info stream signature.
func (a *Artifact) Signature() uint32 {
	return a.signature
}

// Stats returns counts describing the artifact.
func (a *Artifact) Stats() Stats {
	return a.stats
}

// Stream returns the contents of stream i.
func (a *Artifact) Stream(i uint16) ([]byte, error) {
	s, err := a.file.Stream(i)
	if err != nil {
		return nil, err
	}

	return s.Bytes(), nil
}

// WriteTo writes the container file to w. An artifact can be written once.
//
// Returns:
//   - int64: number of bytes written
//   - error: ErrDuplicateBuild on a second call, or the write error of w
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := a.file.Commit(cw)

	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)

	return n, err
}

// infoStream encodes the info stream:
//
//	InfoHeader | named stream map | u32 0 | u32 feature code (VC140)
func infoStream(hdr *layout.InfoHeader, named []layout.NamedStream) []byte {
	bb := pool.NewByteBuffer(layout.InfoHeaderSize + 128)
	hdr.WriteTo(bb)
	layout.WriteNamedStreamMap(bb, named)
	bb.WriteUint32(0)
	bb.WriteUint32(layout.InfoFeatureVC140)

	return bb.Bytes()
}

// contentGUID hashes every stream in index order. Each stream contributes its
// index, length and contents, so moving bytes between streams changes the
// result.
func contentGUID(file *msf.Builder) uuid.UUID {
	engine := endian.GetLittleEndianEngine()
	digests := make([]byte, 0, file.NumStreams()*24)
	for i := range file.NumStreams() {
		s, err := file.Stream(uint16(i)) //nolint: gosec
		if err != nil {
			continue
		}
		digests = engine.AppendUint32(digests, uint32(i))       //nolint: gosec
		digests = engine.AppendUint32(digests, uint32(s.Len())) //nolint: gosec
		sum := xxh3.Hash128(s.Bytes()).Bytes()
		digests = append(digests, sum[:]...)
	}

	id := uuid.UUID(xxh3.Hash128(digests).Bytes())
	// Mark the GUID as a name-based (version 8, RFC 9562) UUID.
	id[6] = id[6]&0x0f | 0x80
	id[8] = id[8]&0x3f | 0x80

	return id
}

// guidSignature derives a signature from a content GUID.
func guidSignature(id uuid.UUID) uint32 {
	return endian.GetLittleEndianEngine().Uint32(id[:4])
}
