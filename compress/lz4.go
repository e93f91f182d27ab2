package compress

import (
	"fmt"
	"hash"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec provides LZ4 block compression: fast decompression with a moderate ratio.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// NewLZ4Codec creates a new LZ4 codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// MethodByte implements Codec.
func (c LZ4Codec) MethodByte() format.MethodByte {
	return format.MethodLZ4
}

// IsCompression implements Codec.
func (c LZ4Codec) IsCompression() bool {
	return true
}

// IsGenericCompression implements Codec.
func (c LZ4Codec) IsGenericCompression() bool {
	return true
}

// MaxCompressedSize implements Codec.
func (c LZ4Codec) MaxCompressedSize(uncompressedSize int) int {
	return lz4.CompressBlockBound(uncompressedSize)
}

// MaxDecompressedSize implements Codec.
//
// Every LZ4 length extension byte adds at most 255 bytes of output.
func (c LZ4Codec) MaxDecompressedSize(compressedSize int) int {
	return expansionBound(compressedSize, 255, 16)
}

// Compress compresses src into dst using a pooled lz4.Compressor.
//
// An empty input produces an empty payload.
func (c LZ4Codec) Compress(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	if err := checkCompressDst(c, dst, src); err != nil {
		return 0, err
	}

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(src, dst)
	if err != nil {
		return 0, fmt.Errorf("lz4 compression failed: %w", err)
	}

	return n, nil
}

// Decompress decompresses src into dst, which must be sized to the exact
// uncompressed length.
func (c LZ4Codec) Decompress(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return sizeMismatch(format.MethodLZ4, len(dst), 0)
		}

		return nil
	}

	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return fmt.Errorf("%w: lz4 decompression failed: %w", errs.ErrEngineExecution, err)
	}

	if n != len(dst) {
		return sizeMismatch(format.MethodLZ4, len(dst), n)
	}

	return nil
}

// FlushAsyncRequests implements Codec.
func (c LZ4Codec) FlushAsyncRequests() error {
	return nil
}

// UpdateHash implements Codec.
func (c LZ4Codec) UpdateHash(h hash.Hash64) {
	writeMethod(h, format.MethodLZ4)
}

// Close implements Codec.
func (c LZ4Codec) Close() error {
	return nil
}
