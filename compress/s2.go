package compress

import (
	"fmt"
	"hash"
	"math"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
)

// S2Codec provides S2 block compression, balancing speed and ratio.
type S2Codec struct{}

var _ Codec = S2Codec{}

// NewS2Codec creates a new S2 codec.
func NewS2Codec() S2Codec {
	return S2Codec{}
}

// MethodByte implements Codec.
func (c S2Codec) MethodByte() format.MethodByte {
	return format.MethodS2
}

// IsCompression implements Codec.
func (c S2Codec) IsCompression() bool {
	return true
}

// IsGenericCompression implements Codec.
func (c S2Codec) IsGenericCompression() bool {
	return true
}

// MaxCompressedSize implements Codec.
//
// Inputs above the S2 block limit report math.MaxInt so Compress rejects them.
func (c S2Codec) MaxCompressedSize(uncompressedSize int) int {
	n := s2.MaxEncodedLen(uncompressedSize)
	if n < 0 {
		return math.MaxInt
	}

	return n
}

// MaxDecompressedSize implements Codec.
//
// A five-byte repeat copies up to 16 MiB, so the bound is loose; readers
// rely on their total size limit for S2 streams.
func (c S2Codec) MaxDecompressedSize(compressedSize int) int {
	return expansionBound(compressedSize, 1<<22, 64)
}

// Compress compresses src into dst.
func (c S2Codec) Compress(dst, src []byte) (int, error) {
	if err := checkCompressDst(c, dst, src); err != nil {
		return 0, err
	}

	// dst is large enough, so Encode returns a prefix of it
	out := s2.Encode(dst, src)

	return copy(dst, out), nil
}

// Decompress decompresses src into dst.
func (c S2Codec) Decompress(dst, src []byte) error {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return fmt.Errorf("%w: s2 decompression failed: %w", errs.ErrEngineExecution, err)
	}

	if n != len(dst) {
		return sizeMismatch(format.MethodS2, len(dst), n)
	}

	out, err := s2.Decode(dst, src)
	if err != nil {
		return fmt.Errorf("%w: s2 decompression failed: %w", errs.ErrEngineExecution, err)
	}
	copy(dst, out)

	return nil
}

// FlushAsyncRequests implements Codec.
func (c S2Codec) FlushAsyncRequests() error {
	return nil
}

// UpdateHash implements Codec.
func (c S2Codec) UpdateHash(h hash.Hash64) {
	writeMethod(h, format.MethodS2)
}

// Close implements Codec.
func (c S2Codec) Close() error {
	return nil
}
