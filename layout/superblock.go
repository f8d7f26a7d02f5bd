package layout

import (
	"fmt"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
)

// SuperBlock is the header stored in block 0 of an MSF file.
type SuperBlock struct {
	BlockSize         uint32 // byte offset 32-35
	FreeBlockMapBlock uint32 // byte offset 36-39
	NumBlocks         uint32 // byte offset 40-43
	NumDirectoryBytes uint32 // byte offset 44-47
	BlockMapAddr      uint32 // byte offset 52-55
}

// Bytes serializes the SuperBlock into a 56-byte slice.
func (s *SuperBlock) Bytes() []byte {
	engine := endian.GetLittleEndianEngine()

	b := make([]byte, SuperBlockSize)
	copy(b[0:32], SuperBlockMagic)
	engine.PutUint32(b[32:36], s.BlockSize)
	engine.PutUint32(b[36:40], s.FreeBlockMapBlock)
	engine.PutUint32(b[40:44], s.NumBlocks)
	engine.PutUint32(b[44:48], s.NumDirectoryBytes)
	engine.PutUint32(b[48:52], 0)
	engine.PutUint32(b[52:56], s.BlockMapAddr)

	return b
}

// Parse parses the SuperBlock from the first 56 bytes of data.
//
// Returns:
//   - error: ErrInvalidHeaderSize if data is too short, ErrInvalidSuperBlock on a bad magic or block size
func (s *SuperBlock) Parse(data []byte) error {
	if len(data) < SuperBlockSize {
		return errs.ErrInvalidHeaderSize
	}

	if string(data[0:32]) != SuperBlockMagic {
		return fmt.Errorf("%w: bad magic", errs.ErrInvalidSuperBlock)
	}

	engine := endian.GetLittleEndianEngine()
	s.BlockSize = engine.Uint32(data[32:36])
	s.FreeBlockMapBlock = engine.Uint32(data[36:40])
	s.NumBlocks = engine.Uint32(data[40:44])
	s.NumDirectoryBytes = engine.Uint32(data[44:48])
	s.BlockMapAddr = engine.Uint32(data[52:56])

	if !ValidBlockSize(s.BlockSize) {
		return fmt.Errorf("%w: block size %d", errs.ErrInvalidSuperBlock, s.BlockSize)
	}

	return nil
}

// ValidBlockSize reports whether size is a block size accepted by MSF readers.
func ValidBlockSize(size uint32) bool {
	switch size {
	case 512, 1024, 2048, 4096:
		return true
	default:
		return false
	}
}
