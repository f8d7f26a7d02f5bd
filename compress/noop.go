package compress

// NoOpCompressor stores artifacts uncompressed. A frame packed with it still
// records the original size, so Unpack can detect truncation.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor returns the pass-through codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns data itself. The result aliases the input.
func (NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data itself. The result aliases the input.
func (NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
