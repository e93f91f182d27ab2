package compress

import (
	"fmt"
	"hash"
	"math"

	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
)

// Codec is the uniform contract every block codec implements so codecs can be
// used interchangeably by block readers and writers.
//
// Compression writes into a caller-provided destination that must be at
// least MaxCompressedSize(len(src)) bytes long. Decompression writes into a
// destination whose length is exactly the uncompressed size; that size is
// recorded out of band, in the block header, never discovered from the payload.
//
// Codecs are single-owner: one instance serves one compression stream and
// must not be used from several goroutines at the same time. Create one
// codec per goroutine instead.
type Codec interface {
	// MethodByte returns the identifier written into the block header.
	MethodByte() format.MethodByte

	// IsCompression reports whether the codec reduces size at all.
	IsCompression() bool

	// IsGenericCompression reports whether the codec is a lossless,
	// data-agnostic compressor.
	IsGenericCompression() bool

	// MaxCompressedSize returns an upper bound on the compressed length of
	// any input of uncompressedSize bytes.
	MaxCompressedSize(uncompressedSize int) int

	// MaxDecompressedSize returns an upper bound on the uncompressed length
	// a payload of compressedSize bytes can decode to. Readers check a
	// block's recorded size against it before allocating the output.
	MaxDecompressedSize(compressedSize int) int

	// Compress compresses src into dst and returns the compressed length.
	Compress(dst, src []byte) (int, error)

	// Decompress decompresses src into dst, where len(dst) is the exact
	// uncompressed length.
	//
	// Codecs running in an asynchronous mode may return before dst is
	// populated; dst is valid only after FlushAsyncRequests returns.
	Decompress(dst, src []byte) error

	// FlushAsyncRequests waits for every pending asynchronous decompression.
	FlushAsyncRequests() error

	// UpdateHash mixes the codec identity and parameters into h, so that
	// differently configured codecs produce different fingerprints.
	UpdateHash(h hash.Hash64)

	// Close releases resources held by the codec.
	Close() error
}

// CreateCodec creates a new codec for the specified method byte.
//
// Parameters:
//   - method: Method byte read from a block header or chosen by configuration
//   - opts: Options for the deflate codec; ignored by other methods
//
// Returns:
//   - Codec: New codec instance owned by the caller
//   - error: Unknown method, or deflate codec construction failure
func CreateCodec(method format.MethodByte, opts ...DeflateOption) (Codec, error) {
	switch method {
	case format.MethodNone:
		return NewNoOpCodec(), nil
	case format.MethodLZ4:
		return NewLZ4Codec(), nil
	case format.MethodZstd:
		return NewZstdCodec(), nil
	case format.MethodS2:
		return NewS2Codec(), nil
	case format.MethodDeflateQPL:
		return NewDeflateCodec(opts...)
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownMethod, method)
	}
}

// checkCompressDst verifies the compress destination contract.
func checkCompressDst(c Codec, dst, src []byte) error {
	if bound := c.MaxCompressedSize(len(src)); len(dst) < bound {
		return fmt.Errorf("%w: %s needs %d bytes for %d input bytes, got %d",
			errs.ErrShortBuffer, c.MethodByte(), bound, len(src), len(dst))
	}

	return nil
}

// expansionBound returns n*ratio + slack, saturating at math.MaxInt.
func expansionBound(n, ratio, slack int) int {
	if n > (math.MaxInt-slack)/ratio {
		return math.MaxInt
	}

	return n*ratio + slack
}

func sizeMismatch(method format.MethodByte, want, got int) error {
	return fmt.Errorf("%w: %s: expected %d bytes, got %d", errs.ErrSizeMismatch, method, want, got)
}

func writeMethod(h hash.Hash64, method format.MethodByte, params ...byte) {
	buf := make([]byte, 0, 1+len(params))
	buf = append(buf, byte(method))
	buf = append(buf, params...)
	_, _ = h.Write(buf)
}
