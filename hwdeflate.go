// Package hwdeflate provides a block compression codec family whose DEFLATE
// codec offloads work to a hardware compression accelerator and falls back to
// software transparently.
//
// The hardware path borrows job descriptors from a process-wide pool shared
// by every codec; when the pool is not ready or all jobs are busy the codec
// silently compresses on the CPU instead. Both paths produce the same raw
// DEFLATE stream, so data written on one host decompresses on any other.
//
// # Core Features
//
//   - Lock-striped job pool: one atomic flag per job, bounded non-blocking acquisition
//   - Transparent software fallback, never surfaced as an error
//   - Asynchronous decompression with an explicit flush barrier
//   - Self-describing blocks: method byte, sizes and xxHash64 checksum
//   - Sibling codecs sharing the same contract (None, LZ4, Zstd, S2)
//
// # Basic Usage
//
// Compressing and decompressing one block:
//
//	codec, err := hwdeflate.NewDefaultDeflateCodec()
//	if err != nil {
//	    return err
//	}
//	defer codec.Close()
//
//	encoded, err := hwdeflate.EncodeBlock(nil, codec, payload)
//	if err != nil {
//	    return err
//	}
//
//	decoded, err := hwdeflate.DecodeBlocks(encoded)
//
// Release the hardware jobs once at process exit:
//
//	defer hwdeflate.Shutdown()
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the compress,
// block and jobpool packages. For fine-grained control use those directly.
package hwdeflate

import (
	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/block"
	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/format"
	"github.com/arloliu/hwdeflate/internal/hash"
	"github.com/arloliu/hwdeflate/jobpool"
)

// NewDeflateCodec creates a hardware-assisted deflate codec.
//
// Available options:
//   - compress.WithDeflateLevel(accel.LevelDefault|LevelHigh)
//   - compress.WithDecompressMode(compress.DecompressSynchronous|DecompressAsynchronous)
//   - compress.WithJobPool(pool), defaults to the process-wide pool
//   - compress.WithLogger(logger)
//
// The codec must be closed by its owner and must not be shared between goroutines.
//
// Example:
//
//	codec, err := hwdeflate.NewDeflateCodec(
//	    compress.WithDeflateLevel(accel.LevelHigh),
//	    compress.WithDecompressMode(compress.DecompressAsynchronous),
//	)
func NewDeflateCodec(opts ...compress.DeflateOption) (*compress.DeflateCodec, error) {
	return compress.NewDeflateCodec(opts...)
}

// NewDefaultDeflateCodec creates a deflate codec with the default level and
// synchronous decompression on the process-wide job pool.
func NewDefaultDeflateCodec() (*compress.DeflateCodec, error) {
	return compress.NewDeflateCodec(
		compress.WithDeflateLevel(accel.LevelDefault),
		compress.WithDecompressMode(compress.DecompressSynchronous),
	)
}

// NewCodec creates a codec for method.
//
// Parameters:
//   - method: One of the format.Method* constants
//   - opts: Deflate options, ignored by other methods
//
// Returns:
//   - compress.Codec: New codec owned by the caller
//   - error: errs.ErrUnknownMethod for unknown methods
func NewCodec(method format.MethodByte, opts ...compress.DeflateOption) (compress.Codec, error) {
	return compress.CreateCodec(method, opts...)
}

// EncodeBlock compresses src with codec and appends the block to dst.
func EncodeBlock(dst []byte, codec compress.Codec, src []byte) ([]byte, error) {
	return block.Encode(dst, codec, src)
}

// DecodeBlocks decodes a stream of blocks of any method and returns the
// concatenated payloads.
func DecodeBlocks(data []byte, opts ...block.ReaderOption) ([]byte, error) {
	return block.DecodeAll(data, opts...)
}

// Fingerprint returns a 64-bit identity of the codec's method and parameters.
// Codecs producing interchangeable output share a fingerprint.
//
// Example:
//
//	if hwdeflate.Fingerprint(a) == hwdeflate.Fingerprint(b) {
//	    // a and b are configured identically
//	}
func Fingerprint(codec compress.Codec) uint64 {
	h := hash.NewFingerprint()
	codec.UpdateHash(h)

	return h.Sum64()
}

// HardwareReady reports whether the process-wide job pool can serve the
// hardware path. It creates the pool on first use.
func HardwareReady() bool {
	return jobpool.Default().Ready()
}

// Shutdown destroys the process-wide job pool, waiting for every job in use
// to be released. Codecs keep working afterwards on their software path.
func Shutdown() {
	jobpool.Shutdown()
}
