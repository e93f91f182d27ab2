package compress

import (
	"hash"

	"github.com/arloliu/hwdeflate/format"
)

// NoOpCodec stores payloads without compression.
//
// This codec is useful for:
//   - Incompressible data (already compressed, encrypted or random)
//   - Baseline measurements of the block format overhead
//   - Debugging block readers and writers
type NoOpCodec struct{}

var _ Codec = NoOpCodec{}

// NewNoOpCodec creates a new no-operation codec.
func NewNoOpCodec() NoOpCodec {
	return NoOpCodec{}
}

// MethodByte implements Codec.
func (c NoOpCodec) MethodByte() format.MethodByte {
	return format.MethodNone
}

// IsCompression implements Codec.
func (c NoOpCodec) IsCompression() bool {
	return false
}

// IsGenericCompression implements Codec.
func (c NoOpCodec) IsGenericCompression() bool {
	return false
}

// MaxCompressedSize implements Codec.
func (c NoOpCodec) MaxCompressedSize(uncompressedSize int) int {
	return uncompressedSize
}

// MaxDecompressedSize implements Codec.
func (c NoOpCodec) MaxDecompressedSize(compressedSize int) int {
	return compressedSize
}

// Compress copies src into dst.
func (c NoOpCodec) Compress(dst, src []byte) (int, error) {
	if err := checkCompressDst(c, dst, src); err != nil {
		return 0, err
	}

	return copy(dst, src), nil
}

// Decompress copies src into dst; both must have the same length.
func (c NoOpCodec) Decompress(dst, src []byte) error {
	if len(src) != len(dst) {
		return sizeMismatch(format.MethodNone, len(dst), len(src))
	}
	copy(dst, src)

	return nil
}

// FlushAsyncRequests implements Codec.
func (c NoOpCodec) FlushAsyncRequests() error {
	return nil
}

// UpdateHash implements Codec.
func (c NoOpCodec) UpdateHash(h hash.Hash64) {
	writeMethod(h, format.MethodNone)
}

// Close implements Codec.
func (c NoOpCodec) Close() error {
	return nil
}
