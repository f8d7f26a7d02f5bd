package compress

import (
	"bytes"
	"fmt"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
)

// FrameHeaderSize is the size of the Pack frame header.
const FrameHeaderSize = 16

// FrameMagic identifies a packed program database.
var FrameMagic = [4]byte{'P', 'D', 'B', 'Z'}

// Pack compresses data with the built-in codec for compressionType and
// wraps it in a frame.
func Pack(data []byte, compressionType format.CompressionType) ([]byte, Stats, error) {
	codec, err := GetCodec(compressionType)
	if err != nil {
		return nil, Stats{}, err
	}

	return PackWith(data, compressionType, codec)
}

// PackWith compresses data with codec and wraps it in a frame recording
// compressionType.
//
// Parameters:
//   - data: the artifact bytes
//   - compressionType: codec identifier stored in the frame
//   - codec: the codec to compress with; must match compressionType
//
// Returns:
//   - []byte: the frame
//   - Stats: sizes before and after
//   - error: compression error
func PackWith(data []byte, compressionType format.CompressionType, codec Codec) ([]byte, Stats, error) {
	payload, err := codec.Compress(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%s compression: %w", compressionType, err)
	}

	engine := endian.GetLittleEndianEngine()
	frame := make([]byte, 0, FrameHeaderSize+len(payload))
	frame = append(frame, FrameMagic[:]...)
	frame = append(frame, byte(compressionType), 0, 0, 0)
	frame = engine.AppendUint64(frame, uint64(len(data)))
	frame = append(frame, payload...)

	return frame, Stats{
		Algorithm:    compressionType,
		OriginalSize: int64(len(data)),
		PackedSize:   int64(len(frame)),
	}, nil
}

// Unpack validates a frame produced by Pack and returns the original data.
//
// Returns:
//   - []byte: the artifact bytes
//   - format.CompressionType: the codec the frame was packed with
//   - error: ErrInvalidPackedData for a malformed frame or a size mismatch,
//     ErrInvalidCodec for an unknown codec byte
func Unpack(frame []byte) ([]byte, format.CompressionType, error) {
	if len(frame) < FrameHeaderSize || !bytes.Equal(frame[:4], FrameMagic[:]) {
		return nil, 0, fmt.Errorf("%w: missing frame header", errs.ErrInvalidPackedData)
	}
	if frame[5] != 0 || frame[6] != 0 || frame[7] != 0 {
		return nil, 0, fmt.Errorf("%w: reserved bytes set", errs.ErrInvalidPackedData)
	}

	compressionType := format.CompressionType(frame[4])
	codec, err := GetCodec(compressionType)
	if err != nil {
		return nil, 0, err
	}

	size := endian.GetLittleEndianEngine().Uint64(frame[8:])
	if size > uint64(maxUnpackedSize) {
		return nil, 0, fmt.Errorf("%w: original size %d", errs.ErrInvalidPackedData, size)
	}

	payload := frame[FrameHeaderSize:]
	var data []byte
	if sd, ok := codec.(sizedDecompressor); ok {
		data, err = sd.DecompressSized(payload, int(size))
	} else {
		data, err = codec.Decompress(payload)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", errs.ErrInvalidPackedData, err)
	}
	if uint64(len(data)) != size {
		return nil, 0, fmt.Errorf("%w: expanded to %d bytes, frame records %d", errs.ErrInvalidPackedData, len(data), size)
	}

	return data, compressionType, nil
}

// maxUnpackedSize bounds the allocation Unpack makes for a frame. The MSF
// container itself cannot address more than 4 GiB.
const maxUnpackedSize = 1 << 32
