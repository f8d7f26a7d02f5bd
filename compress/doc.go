// Package compress packs program databases for transfer to symbol servers.
//
// A program database is mostly CodeView records and hash tables, which
// compress well with general-purpose algorithms. The package provides a
// small set of block codecs and a self-describing frame around them.
//
// # Supported Algorithms
//
//   - None: no compression; the frame still records the original size
//   - Zstd: best ratio, the default for uploads
//   - S2: balanced compression and speed
//   - LZ4: fastest decompression
//
// # Frame Layout
//
// Pack wraps the compressed payload in a 16-byte little-endian header:
//
//	offset  size  field
//	0       4     magic "PDBZ"
//	4       1     codec (format.CompressionType)
//	5       3     reserved, zero
//	8       8     original size in bytes
//	16      ...   payload
//
// Unpack validates the header, selects the codec from the codec byte and
// checks that the payload expands to the recorded size.
//
// # Basic Usage
//
//	frame, err := compress.Pack(data, format.CompressionZstd)
//	if err != nil {
//	    return err
//	}
//
//	data, codec, err := compress.Unpack(frame)
//
// # Zstandard Implementations
//
// The Zstd codec uses github.com/klauspost/compress/zstd by default. Building
// with the cgozstd tag switches to github.com/valyala/gozstd, which links the
// reference C library. Both produce standard zstd frames and can read each
// other's output.
//
// # Thread Safety
//
// All codecs are safe for concurrent use. Encoders and decoders are pooled.
package compress
