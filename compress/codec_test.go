package compress

import (
	"bytes"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
	"github.com/arloliu/hwdeflate/internal/hash"
	"github.com/arloliu/hwdeflate/jobpool"
)

// newTestPool creates a job pool on engine that is destroyed with the test.
func newTestPool(tb testing.TB, engine accel.Engine, capacity int) *jobpool.Pool {
	tb.Helper()

	p, err := jobpool.New(engine, jobpool.WithCapacity(capacity))
	require.NoError(tb, err)
	tb.Cleanup(p.Destroy)

	return p
}

func newTestDeflate(tb testing.TB, opts ...DeflateOption) *DeflateCodec {
	tb.Helper()

	c, err := NewDeflateCodec(opts...)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = c.Close() })

	return c
}

// testData generates data of the given size and kind.
func testData(size int, kind string) []byte {
	data := make([]byte, size)

	switch kind {
	case "zeros":
	case "text":
		pattern := []byte("the quick brown fox jumps over the lazy dog 0123456789 ")
		for i := range data {
			data[i] = pattern[i%len(pattern)]
		}
	default:
		r := rand.New(rand.NewPCG(uint64(size), 42))
		for i := range data {
			data[i] = byte(r.Uint32())
		}
	}

	return data
}

func allCodecs(t *testing.T) map[string]Codec {
	t.Helper()

	pool := newTestPool(t, accel.NewEmulator(), 8)

	return map[string]Codec{
		"none":    NewNoOpCodec(),
		"lz4":     NewLZ4Codec(),
		"zstd":    NewZstdCodec(),
		"s2":      NewS2Codec(),
		"deflate": newTestDeflate(t, WithJobPool(pool)),
	}
}

func TestCreateCodec(t *testing.T) {
	pool := newTestPool(t, accel.NewEmulator(), 4)

	methods := []format.MethodByte{
		format.MethodNone,
		format.MethodLZ4,
		format.MethodZstd,
		format.MethodDeflateQPL,
		format.MethodS2,
	}

	for _, method := range methods {
		t.Run(method.String(), func(t *testing.T) {
			codec, err := CreateCodec(method, WithJobPool(pool))
			require.NoError(t, err)
			defer codec.Close()

			require.Equal(t, method, codec.MethodByte())
			require.Equal(t, method != format.MethodNone, codec.IsCompression())
			require.Equal(t, method != format.MethodNone, codec.IsGenericCompression())
		})
	}

	t.Run("unknown method", func(t *testing.T) {
		codec, err := CreateCodec(format.MethodByte(0x42))
		require.ErrorIs(t, err, errs.ErrUnknownMethod)
		require.Nil(t, codec)
	})

	t.Run("invalid deflate option", func(t *testing.T) {
		_, err := CreateCodec(format.MethodDeflateQPL, WithDeflateLevel(accel.Level(9)))
		require.Error(t, err)
	})
}

func TestCodecs_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 4096, 1 << 20}
	kinds := []string{"zeros", "text", "random"}

	for name, codec := range allCodecs(t) {
		for _, size := range sizes {
			for _, kind := range kinds {
				t.Run(fmt.Sprintf("%s/%s/%d", name, kind, size), func(t *testing.T) {
					src := testData(size, kind)

					dst := make([]byte, codec.MaxCompressedSize(len(src)))
					n, err := codec.Compress(dst, src)
					require.NoError(t, err)
					require.LessOrEqual(t, n, codec.MaxCompressedSize(len(src)))

					out := make([]byte, len(src))
					require.NoError(t, codec.Decompress(out, dst[:n]))
					require.NoError(t, codec.FlushAsyncRequests())
					require.True(t, bytes.Equal(src, out))
				})
			}
		}
	}
}

func TestCodecs_MaxDecompressedSize(t *testing.T) {
	for name, codec := range allCodecs(t) {
		for _, size := range []int{0, 1, 4096, 1 << 20} {
			t.Run(fmt.Sprintf("%s/%d", name, size), func(t *testing.T) {
				src := testData(size, "zeros")

				dst := make([]byte, codec.MaxCompressedSize(len(src)))
				n, err := codec.Compress(dst, src)
				require.NoError(t, err)
				require.LessOrEqual(t, len(src), codec.MaxDecompressedSize(n))
			})
		}
	}

	t.Run("saturates", func(t *testing.T) {
		require.Equal(t, math.MaxInt, expansionBound(math.MaxInt/2, 1032, 258))
		require.Equal(t, 10*1032+258, expansionBound(10, 1032, 258))
	})
}

func TestCodecs_ShortDestination(t *testing.T) {
	src := testData(4096, "random")

	for name, codec := range allCodecs(t) {
		t.Run(name, func(t *testing.T) {
			dst := make([]byte, codec.MaxCompressedSize(len(src))-1)
			_, err := codec.Compress(dst, src)
			require.ErrorIs(t, err, errs.ErrShortBuffer)
		})
	}
}

func TestCodecs_DecompressSizeMismatch(t *testing.T) {
	src := testData(4096, "text")

	for name, codec := range allCodecs(t) {
		t.Run(name, func(t *testing.T) {
			dst := make([]byte, codec.MaxCompressedSize(len(src)))
			n, err := codec.Compress(dst, src)
			require.NoError(t, err)

			out := make([]byte, len(src)+1)
			err = codec.Decompress(out, dst[:n])
			if err == nil {
				err = codec.FlushAsyncRequests()
			}
			require.Error(t, err)
		})
	}
}

func TestCodecs_UpdateHash(t *testing.T) {
	fingerprint := func(c Codec) uint64 {
		h := hash.NewFingerprint()
		c.UpdateHash(h)

		return h.Sum64()
	}

	seen := make(map[uint64]string)
	for name, codec := range allCodecs(t) {
		fp := fingerprint(codec)
		require.Equal(t, fp, fingerprint(codec), "fingerprint must be stable for %s", name)

		other, dup := seen[fp]
		require.False(t, dup, "%s and %s share a fingerprint", name, other)
		seen[fp] = name
	}
}
