package compress

import (
	"hash"

	"github.com/arloliu/hwdeflate/format"
)

// ZstdCodec provides Zstandard block compression.
//
// This codec favours compression ratio over speed, making it a good fit for:
//   - Cold storage blocks that are written once and read rarely
//   - Network transmission where bandwidth is limited
//
// The default build uses the pure Go klauspost/compress/zstd implementation.
// Building with the "gozstd" tag and cgo enabled switches to the libzstd
// bindings from valyala/gozstd; both produce standard zstd frames.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

// NewZstdCodec creates a new Zstd codec with default settings.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}

// MethodByte implements Codec.
func (c ZstdCodec) MethodByte() format.MethodByte {
	return format.MethodZstd
}

// IsCompression implements Codec.
func (c ZstdCodec) IsCompression() bool {
	return true
}

// IsGenericCompression implements Codec.
func (c ZstdCodec) IsGenericCompression() bool {
	return true
}

// MaxCompressedSize implements Codec.
//
// Mirrors ZSTD_COMPRESSBOUND: the input plus 1/256 of it, plus a margin for
// inputs below 128KiB.
func (c ZstdCodec) MaxCompressedSize(uncompressedSize int) int {
	n := uncompressedSize
	bound := n + n>>8
	if n < 128<<10 {
		bound += ((128 << 10) - n) >> 11
	}

	return bound
}

// MaxDecompressedSize implements Codec.
//
// The densest zstd block is an RLE block: four bytes for up to 128 KiB.
func (c ZstdCodec) MaxDecompressedSize(compressedSize int) int {
	return expansionBound(compressedSize, 1<<15, 128<<10)
}

// FlushAsyncRequests implements Codec.
func (c ZstdCodec) FlushAsyncRequests() error {
	return nil
}

// UpdateHash implements Codec.
func (c ZstdCodec) UpdateHash(h hash.Hash64) {
	writeMethod(h, format.MethodZstd)
}

// Close implements Codec.
func (c ZstdCodec) Close() error {
	return nil
}
