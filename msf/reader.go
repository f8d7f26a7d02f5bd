package msf

import (
	"fmt"
	"io"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/layout"
)

// nilStreamSize marks a stream slot without data in the directory.
const nilStreamSize = 0xffffffff

// Reader gives random access to the streams of an MSF file.
type Reader struct {
	r            io.ReaderAt
	superBlock   layout.SuperBlock
	streamSizes  []uint32
	streamBlocks [][]uint32
}

// Open parses the SuperBlock and stream directory of the MSF file in r.
//
// Parameters:
//   - r: file contents
//   - size: total file size in bytes
//
// Returns:
//   - *Reader: reader over the file's streams
//   - error: ErrInvalidSuperBlock or ErrInvalidHeaderSize on a malformed container
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	head := make([]byte, layout.SuperBlockSize)
	if n, err := r.ReadAt(head, 0); n < len(head) {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidSuperBlock, err)
	}

	m := &Reader{r: r}
	if err := m.superBlock.Parse(head); err != nil {
		return nil, err
	}

	bs := int64(m.superBlock.BlockSize)
	if int64(m.superBlock.NumBlocks)*bs > size {
		return nil, fmt.Errorf("%w: %d blocks exceed file size %d",
			errs.ErrInvalidSuperBlock, m.superBlock.NumBlocks, size)
	}

	if err := m.readDirectory(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Reader) readDirectory() error {
	engine := endian.GetLittleEndianEngine()
	sb := &m.superBlock

	numDirBlocks := (int(sb.NumDirectoryBytes) + int(sb.BlockSize) - 1) / int(sb.BlockSize)
	blockMap, err := m.readBlock(sb.BlockMapAddr)
	if err != nil {
		return err
	}
	if numDirBlocks*4 > len(blockMap) {
		return fmt.Errorf("%w: directory of %d bytes", errs.ErrInvalidSuperBlock, sb.NumDirectoryBytes)
	}

	dirBlocks := make([]uint32, numDirBlocks)
	for i := range dirBlocks {
		dirBlocks[i] = engine.Uint32(blockMap[i*4:])
	}

	dir, err := m.gather(dirBlocks, int(sb.NumDirectoryBytes))
	if err != nil {
		return err
	}
	if len(dir) < 4 {
		return fmt.Errorf("%w: empty stream directory", errs.ErrInvalidSuperBlock)
	}

	numStreams := int(engine.Uint32(dir))
	pos := 4
	if pos+numStreams*4 > len(dir) {
		return fmt.Errorf("%w: directory truncated", errs.ErrInvalidSuperBlock)
	}

	m.streamSizes = make([]uint32, numStreams)
	for i := range m.streamSizes {
		m.streamSizes[i] = engine.Uint32(dir[pos:])
		pos += 4
	}

	m.streamBlocks = make([][]uint32, numStreams)
	for i, size := range m.streamSizes {
		if size == nilStreamSize {
			continue
		}
		n := (int(size) + int(sb.BlockSize) - 1) / int(sb.BlockSize)
		if pos+n*4 > len(dir) {
			return fmt.Errorf("%w: block list of stream %d truncated", errs.ErrInvalidSuperBlock, i)
		}
		blocks := make([]uint32, n)
		for j := range blocks {
			blocks[j] = engine.Uint32(dir[pos:])
			pos += 4
		}
		m.streamBlocks[i] = blocks
	}

	return nil
}

// BlockSize returns the block size of the file.
func (m *Reader) BlockSize() uint32 {
	return m.superBlock.BlockSize
}

// NumBlocks returns the number of blocks in the file.
func (m *Reader) NumBlocks() uint32 {
	return m.superBlock.NumBlocks
}

// NumStreams returns the number of streams in the directory.
func (m *Reader) NumStreams() int {
	return len(m.streamSizes)
}

// StreamSize returns the size of stream i in bytes.
func (m *Reader) StreamSize(i uint16) (int, error) {
	if int(i) >= len(m.streamSizes) {
		return 0, fmt.Errorf("%w: %d of %d", errs.ErrInvalidStreamIndex, i, len(m.streamSizes))
	}
	if m.streamSizes[i] == nilStreamSize {
		return 0, nil
	}

	return int(m.streamSizes[i]), nil
}

// ReadStream returns the full contents of stream i.
func (m *Reader) ReadStream(i uint16) ([]byte, error) {
	size, err := m.StreamSize(i)
	if err != nil {
		return nil, err
	}

	return m.gather(m.streamBlocks[i], size)
}

func (m *Reader) readBlock(blk uint32) ([]byte, error) {
	if blk >= m.superBlock.NumBlocks {
		return nil, fmt.Errorf("%w: block %d out of range", errs.ErrInvalidSuperBlock, blk)
	}

	bs := int64(m.superBlock.BlockSize)
	buf := make([]byte, bs)
	if n, err := m.r.ReadAt(buf, int64(blk)*bs); n < len(buf) {
		return nil, fmt.Errorf("%w: read block %d: %w", errs.ErrInvalidSuperBlock, blk, err)
	}

	return buf, nil
}

func (m *Reader) gather(blocks []uint32, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for _, blk := range blocks {
		data, err := m.readBlock(blk)
		if err != nil {
			return nil, err
		}
		out = append(out, data[:min(len(data), size-len(out))]...)
	}

	return out, nil
}
