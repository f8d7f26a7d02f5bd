// Package msf implements the multi-stream file container that holds every
// stream of a program database.
//
// A Builder hands out append-only streams with monotonically increasing
// indices. Stream 0 is reserved and created by NewBuilder, so the first
// stream returned by AddStream has index 1. Commit lays the streams out in
// fixed-size blocks behind a SuperBlock, a free page map and a stream
// directory (see package layout for the on-disk structures).
//
// A Builder is not safe for concurrent use.
package msf

import (
	"fmt"
	"io"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/layout"
)

// DefaultBlockSize is the block size used by NewBuilder callers that do not care.
const DefaultBlockSize = 4096

// maxStreams keeps every stream index representable in a 16-bit field that
// also reserves 0xffff as "absent".
const maxStreams = layout.InvalidStreamIndex

// Stream is an append-only byte buffer with an immutable index.
type Stream struct {
	index  uint16
	name   string
	buf    *pool.ByteBuffer
	sealed bool
}

var _ io.Writer = (*Stream)(nil)

// Index returns the stream index assigned at creation.
func (s *Stream) Index() uint16 {
	return s.index
}

// Name returns the stream name, or "" for an unnamed stream.
func (s *Stream) Name() string {
	return s.name
}

// Write appends p to the stream. It fails with ErrStreamSealed once the
// stream has been sealed.
func (s *Stream) Write(p []byte) (int, error) {
	if s.sealed {
		return 0, fmt.Errorf("%w: stream %d", errs.ErrStreamSealed, s.index)
	}

	return s.buf.Write(p)
}

// Len returns the current stream size in bytes.
func (s *Stream) Len() int {
	return s.buf.Len()
}

// Bytes returns the stream contents. The slice aliases the stream buffer and
// must not be modified.
func (s *Stream) Bytes() []byte {
	return s.buf.Bytes()
}

// Seal freezes the stream; later writes fail.
func (s *Stream) Seal() {
	s.sealed = true
}

// Sealed reports whether the stream has been sealed.
func (s *Stream) Sealed() bool {
	return s.sealed
}

// Builder accumulates streams and serializes them into an MSF file.
type Builder struct {
	blockSize uint32
	streams   []*Stream
	committed bool
}

// NewBuilder creates a builder for the given block size. Stream 0 is
// reserved and created immediately.
//
// Returns:
//   - *Builder: new builder holding only the reserved stream
//   - error: ErrInvalidBlockSize if blockSize is not 512, 1024, 2048 or 4096
func NewBuilder(blockSize uint32) (*Builder, error) {
	if !layout.ValidBlockSize(blockSize) {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidBlockSize, blockSize)
	}

	b := &Builder{blockSize: blockSize}
	reserved, err := b.AddStream()
	if err != nil {
		return nil, err
	}
	reserved.Seal()

	return b, nil
}

// BlockSize returns the configured block size.
func (b *Builder) BlockSize() uint32 {
	return b.blockSize
}

// AddStream creates a new unnamed stream with the next index.
func (b *Builder) AddStream() (*Stream, error) {
	return b.AddNamedStream("")
}

// AddNamedStream creates a new stream with the next index and records name
// for the named stream map of the info stream.
func (b *Builder) AddNamedStream(name string) (*Stream, error) {
	if b.committed {
		return nil, fmt.Errorf("%w: builder already committed", errs.ErrStreamCreate)
	}
	if len(b.streams) >= maxStreams {
		return nil, fmt.Errorf("%w: stream limit %d reached", errs.ErrStreamCreate, maxStreams)
	}

	s := &Stream{
		index: uint16(len(b.streams)), //nolint: gosec
		name:  name,
		buf:   pool.NewByteBuffer(0),
	}
	b.streams = append(b.streams, s)

	return s, nil
}

// Stream returns the stream with index i.
func (b *Builder) Stream(i uint16) (*Stream, error) {
	if int(i) >= len(b.streams) {
		return nil, fmt.Errorf("%w: %d of %d", errs.ErrInvalidStreamIndex, i, len(b.streams))
	}

	return b.streams[i], nil
}

// NumStreams returns the number of streams including the reserved stream 0.
func (b *Builder) NumStreams() int {
	return len(b.streams)
}

// NamedStreams returns the named streams in creation order.
func (b *Builder) NamedStreams() []*Stream {
	var named []*Stream
	for _, s := range b.streams {
		if s.name != "" {
			named = append(named, s)
		}
	}

	return named
}

// Commit seals every stream and writes the complete MSF file to w.
//
// Block 0 holds the SuperBlock; blocks k*BlockSize+1 and k*BlockSize+2 are
// the two free page maps of interval k. Stream data follows in index order,
// then the stream directory, then the single block listing the directory
// blocks.
func (b *Builder) Commit(w io.Writer) error {
	if b.committed {
		return fmt.Errorf("%w: commit called twice", errs.ErrDuplicateBuild)
	}

	for _, s := range b.streams {
		s.Seal()
	}

	l, err := b.plan()
	if err != nil {
		return err
	}

	out := make([]byte, int(l.numBlocks)*int(b.blockSize))

	sb := layout.SuperBlock{
		BlockSize:         b.blockSize,
		FreeBlockMapBlock: 1,
		NumBlocks:         l.numBlocks,
		NumDirectoryBytes: uint32(len(l.directory)), //nolint: gosec
		BlockMapAddr:      l.blockMapAddr,
	}
	copy(out, sb.Bytes())

	for i, s := range b.streams {
		b.scatter(out, s.Bytes(), l.streamBlocks[i])
	}
	b.scatter(out, l.directory, l.directoryBlocks)

	engine := endian.GetLittleEndianEngine()
	mapOff := int(l.blockMapAddr) * int(b.blockSize)
	for i, blk := range l.directoryBlocks {
		engine.PutUint32(out[mapOff+i*4:], blk)
	}

	b.writeFreePageMap(out, l.numBlocks)
	b.committed = true

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrWriteArtifact, err)
	}

	return nil
}

type blockPlan struct {
	streamBlocks    [][]uint32
	directory       []byte
	directoryBlocks []uint32
	blockMapAddr    uint32
	numBlocks       uint32
}

// plan assigns blocks to every stream, the directory and the block map.
func (b *Builder) plan() (*blockPlan, error) {
	alloc := allocator{blockSize: b.blockSize, next: 3}
	l := &blockPlan{streamBlocks: make([][]uint32, len(b.streams))}

	for i, s := range b.streams {
		l.streamBlocks[i] = alloc.take(b.blocksFor(s.Len()))
	}

	dir := pool.NewByteBuffer(4 + 4*len(b.streams))
	dir.WriteUint32(uint32(len(b.streams))) //nolint: gosec
	for _, s := range b.streams {
		dir.WriteUint32(uint32(s.Len())) //nolint: gosec
	}
	for _, blocks := range l.streamBlocks {
		for _, blk := range blocks {
			dir.WriteUint32(blk)
		}
	}
	l.directory = dir.Bytes()
	l.directoryBlocks = alloc.take(b.blocksFor(len(l.directory)))

	if len(l.directoryBlocks)*4 > int(b.blockSize) {
		return nil, fmt.Errorf("%w: directory needs %d blocks, block map holds %d",
			errs.ErrOffsetOverflow, len(l.directoryBlocks), b.blockSize/4)
	}
	l.blockMapAddr = alloc.take(1)[0]

	// The free page map of the last started interval must lie inside the file.
	if r := alloc.next % b.blockSize; r == 1 || r == 2 {
		alloc.next += 3 - r
	}
	l.numBlocks = alloc.next

	return l, nil
}

func (b *Builder) blocksFor(size int) int {
	return (size + int(b.blockSize) - 1) / int(b.blockSize)
}

// scatter copies data into the given blocks of out.
func (b *Builder) scatter(out, data []byte, blocks []uint32) {
	bs := int(b.blockSize)
	for i, blk := range blocks {
		start := i * bs
		end := min(start+bs, len(data))
		copy(out[int(blk)*bs:], data[start:end])
	}
}

// writeFreePageMap writes the active free page map. Bit i is set when block i
// is free; every block inside the file is in use.
func (b *Builder) writeFreePageMap(out []byte, numBlocks uint32) {
	bs := int(b.blockSize)
	intervals := (int(numBlocks) + bs - 1) / bs

	fpm := make([]byte, intervals*bs)
	for i := range fpm {
		fpm[i] = 0xff
	}
	for blk := 0; blk < int(numBlocks); blk++ {
		fpm[blk/8] &^= 1 << (blk % 8)
	}

	for k := 0; k < intervals; k++ {
		off := (k*bs + 1) * bs
		if off >= len(out) {
			break
		}
		copy(out[off:off+bs], fpm[k*bs:(k+1)*bs])
	}
}

// allocator hands out block numbers in ascending order, skipping the free
// page map blocks of every interval.
type allocator struct {
	blockSize uint32
	next      uint32
}

func (a *allocator) take(n int) []uint32 {
	blocks := make([]uint32, 0, n)
	for len(blocks) < n {
		if r := a.next % a.blockSize; r == 1 || r == 2 {
			a.next++
			continue
		}
		blocks = append(blocks, a.next)
		a.next++
	}

	return blocks
}
