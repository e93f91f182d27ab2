//go:build !(cgo && gozstd)

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
)

// zstdDecoderPool pools zstd decoders for reuse to eliminate allocation overhead.
// The decoder operates without allocations after a warmup, so it is kept around.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(false),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}

		return decoder
	},
}

// zstdEncoderPool pools zstd encoders for reuse to eliminate allocation overhead.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false), // block header carries its own checksum
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}

		return encoder
	},
}

// Compress compresses src into dst using a pooled encoder.
func (c ZstdCodec) Compress(dst, src []byte) (int, error) {
	if err := checkCompressDst(c, dst, src); err != nil {
		return 0, err
	}

	encoder, _ := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)

	// EncodeAll is stateless, so the pooled encoder is safe to share
	out := encoder.EncodeAll(src, dst[:0])
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: zstd output %d bytes exceeds %d", errs.ErrShortBuffer, len(out), len(dst))
	}

	return copy(dst, out), nil
}

// Decompress decompresses src into dst using a pooled decoder.
func (c ZstdCodec) Decompress(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return sizeMismatch(format.MethodZstd, len(dst), 0)
		}

		return nil
	}

	decoder, _ := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	// a failed DecodeAll leaves the decoder reusable
	out, err := decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return fmt.Errorf("%w: zstd decompression failed: %w", errs.ErrEngineExecution, err)
	}

	if len(out) != len(dst) {
		return sizeMismatch(format.MethodZstd, len(dst), len(out))
	}
	copy(dst, out)

	return nil
}
