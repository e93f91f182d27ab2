//go:build cgo && gozstd

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"

	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
)

const zstdCgoLevel = 3

// Compress compresses src into dst using libzstd.
func (c ZstdCodec) Compress(dst, src []byte) (int, error) {
	if err := checkCompressDst(c, dst, src); err != nil {
		return 0, err
	}

	out := gozstd.CompressLevel(dst[:0], src, zstdCgoLevel)
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: zstd output %d bytes exceeds %d", errs.ErrShortBuffer, len(out), len(dst))
	}

	return copy(dst, out), nil
}

// Decompress decompresses src into dst using libzstd.
func (c ZstdCodec) Decompress(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return sizeMismatch(format.MethodZstd, len(dst), 0)
		}

		return nil
	}

	out, err := gozstd.Decompress(dst[:0], src)
	if err != nil {
		return fmt.Errorf("%w: zstd decompression failed: %w", errs.ErrEngineExecution, err)
	}

	if len(out) != len(dst) {
		return sizeMismatch(format.MethodZstd, len(dst), len(out))
	}
	copy(dst, out)

	return nil
}
