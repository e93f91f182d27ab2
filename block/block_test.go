package block

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
	"github.com/arloliu/hwdeflate/internal/hash"
	"github.com/arloliu/hwdeflate/jobpool"
)

func newTestPool(t *testing.T, engine accel.Engine, capacity int) *jobpool.Pool {
	t.Helper()

	p, err := jobpool.New(engine, jobpool.WithCapacity(capacity))
	require.NoError(t, err)
	t.Cleanup(p.Destroy)

	return p
}

func newDeflate(t *testing.T, opts ...compress.DeflateOption) *compress.DeflateCodec {
	t.Helper()

	c, err := compress.NewDeflateCodec(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func textData(size int) []byte {
	pattern := []byte("block payload with a moderately repetitive structure; ")
	data := make([]byte, size)
	for i := range data {
		data[i] = pattern[i%len(pattern)]
	}

	return data
}

func TestHeader_ParseAndAppend(t *testing.T) {
	h := Header{Method: format.MethodDeflateQPL, CompressedSize: 1234, UncompressedSize: 99999}

	b := h.AppendTo(nil)
	require.Len(t, b, HeaderSize)
	require.Equal(t, byte(0x96), b[0])

	var parsed Header
	require.NoError(t, parsed.Parse(b))
	require.Equal(t, h, parsed)
	require.Equal(t, 1234-HeaderSize, parsed.PayloadSize())
	require.Equal(t, 1234+ChecksumSize, parsed.BlockSize())
}

func TestHeader_ParseErrors(t *testing.T) {
	var h Header
	require.ErrorIs(t, h.Parse(make([]byte, 8)), errs.ErrInvalidBlockHeader)

	small := Header{Method: format.MethodNone, CompressedSize: 3}.AppendTo(nil)
	require.ErrorIs(t, h.Parse(small), errs.ErrInvalidBlockHeader)

	_, err := ParseHeader(make([]byte, Overhead-1))
	require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)

	// announces more payload than present
	data := append(make([]byte, ChecksumSize), Header{Method: format.MethodNone, CompressedSize: 100}.AppendTo(nil)...)
	_, err = ParseHeader(data)
	require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
}

func TestEncodeDecode(t *testing.T) {
	pool := newTestPool(t, accel.NewEmulator(), 4)

	codecs := []compress.Codec{
		compress.NewNoOpCodec(),
		compress.NewLZ4Codec(),
		compress.NewZstdCodec(),
		compress.NewS2Codec(),
		newDeflate(t, compress.WithJobPool(pool)),
	}

	for _, codec := range codecs {
		t.Run(codec.MethodByte().String(), func(t *testing.T) {
			for _, size := range []int{0, 1, 4096, 200_000} {
				src := textData(size)

				prefix := []byte("prefix")
				encoded, err := Encode(prefix, codec, src)
				require.NoError(t, err)
				require.Equal(t, []byte("prefix"), encoded[:6])

				blk := encoded[6:]
				h, err := Verify(blk)
				require.NoError(t, err)
				require.Equal(t, codec.MethodByte(), h.Method)
				require.Equal(t, uint32(size), h.UncompressedSize)
				require.Len(t, blk, h.BlockSize())

				out, consumed, err := Decode([]byte("x"), blk, codec)
				require.NoError(t, err)
				require.Equal(t, len(blk), consumed)
				require.Equal(t, byte('x'), out[0])
				require.Equal(t, src, out[1:])
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	codec := compress.NewLZ4Codec()
	blk, err := Encode(nil, codec, textData(4096))
	require.NoError(t, err)

	t.Run("checksum", func(t *testing.T) {
		corrupt := bytes.Clone(blk)
		corrupt[len(corrupt)-1] ^= 0xff

		_, _, err := Decode(nil, corrupt, codec)
		require.ErrorIs(t, err, errs.ErrChecksumMismatch)
	})

	t.Run("method mismatch", func(t *testing.T) {
		_, _, err := Decode(nil, blk, compress.NewS2Codec())
		require.ErrorIs(t, err, errs.ErrUnknownMethod)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Decode(nil, blk[:len(blk)-1], codec)
		require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
	})

	t.Run("codec failure keeps dst", func(t *testing.T) {
		h, err := Verify(blk)
		require.NoError(t, err)

		// rewrite the size and fix up the checksum
		bad := bytes.Clone(blk)
		h.UncompressedSize++
		h.AppendTo(bad[:ChecksumSize])
		resealed, err := reseal(bad)
		require.NoError(t, err)

		out, consumed, err := Decode([]byte("keep"), resealed, codec)
		require.ErrorIs(t, err, errs.ErrSizeMismatch)
		require.Zero(t, consumed)
		require.Equal(t, []byte("keep"), out)
	})
}

// reseal recomputes the checksum of a block whose header was edited.
func reseal(blk []byte) ([]byte, error) {
	h, err := ParseHeader(blk)
	if err != nil {
		return nil, err
	}

	src := blk[Overhead:h.BlockSize()]
	rebuilt := le.AppendUint64(nil, 0)
	rebuilt = h.AppendTo(rebuilt)
	rebuilt = append(rebuilt, src...)
	le.PutUint64(rebuilt, hash.Checksum(rebuilt[ChecksumSize:]))

	return rebuilt, nil
}

func TestReader_MixedMethods(t *testing.T) {
	pool := newTestPool(t, accel.NewEmulator(), 8)

	var stream, want []byte
	codecs := []compress.Codec{
		newDeflate(t, compress.WithJobPool(pool)),
		compress.NewZstdCodec(),
		compress.NewNoOpCodec(),
		newDeflate(t, compress.WithJobPool(pool), compress.WithDeflateLevel(accel.LevelHigh)),
		compress.NewLZ4Codec(),
		compress.NewS2Codec(),
	}

	for i, codec := range codecs {
		src := textData(10_000 + i*777)
		want = append(want, src...)

		var err error
		stream, err = Encode(stream, codec, src)
		require.NoError(t, err)
	}

	r, err := NewReader(WithDeflateOptions(compress.WithJobPool(pool)))
	require.NoError(t, err)

	got, err := r.Decode(stream)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Len(t, r.codecs, 5)

	// codecs are reused
	got, err = r.Decode(stream)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, r.Close())
	require.Empty(t, r.codecs)
}

func TestReader_AsyncDeflate(t *testing.T) {
	engine := accel.NewEmulator(accel.WithLatency(time.Millisecond))
	pool := newTestPool(t, engine, 32)

	writer := newDeflate(t, compress.WithJobPool(pool))

	var stream, want []byte
	for i := range 20 {
		src := textData(5000 + i*313)
		want = append(want, src...)

		var err error
		stream, err = Encode(stream, writer, src)
		require.NoError(t, err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	got, err := DecodeAll(stream,
		WithDeflateOptions(
			compress.WithJobPool(pool),
			compress.WithDecompressMode(compress.DecompressAsynchronous),
		),
		WithReaderLogger(zap.New(core)),
	)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Zero(t, pool.InUse())
	require.Equal(t, 1, logs.FilterMessage("decoded block stream").Len())
}

func TestReader_FlushesOnError(t *testing.T) {
	engine := accel.NewEmulator(accel.WithLatency(time.Millisecond))
	pool := newTestPool(t, engine, 8)

	writer := newDeflate(t, compress.WithJobPool(pool))

	stream, err := Encode(nil, writer, textData(8000))
	require.NoError(t, err)

	// a valid block whose payload is not a deflate stream
	bad, err := reseal(append(bytes.Clone(stream[:Overhead]), make([]byte, len(stream)-Overhead)...))
	require.NoError(t, err)
	stream = append(stream, bad...)

	_, err = DecodeAll(stream, WithDeflateOptions(
		compress.WithJobPool(pool),
		compress.WithDecompressMode(compress.DecompressAsynchronous),
	))
	require.ErrorIs(t, err, errs.ErrEngineExecution)
	require.Zero(t, pool.InUse())
}

func TestReader_Errors(t *testing.T) {
	blk, err := Encode(nil, compress.NewNoOpCodec(), []byte("hello"))
	require.NoError(t, err)

	t.Run("unknown method", func(t *testing.T) {
		bad := bytes.Clone(blk)
		bad[ChecksumSize] = 0x01
		bad, err := reseal(bad)
		require.NoError(t, err)

		_, err = DecodeAll(bad)
		require.ErrorIs(t, err, errs.ErrUnknownMethod)
	})

	t.Run("trailing garbage", func(t *testing.T) {
		_, err := DecodeAll(append(bytes.Clone(blk), 0x00, 0x01))
		require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
	})

	t.Run("empty stream", func(t *testing.T) {
		out, err := DecodeAll(nil)
		require.NoError(t, err)
		require.Empty(t, out)
	})
}

// withUncompressedSize rewrites the recorded uncompressed size of blk and
// reseals its checksum.
func withUncompressedSize(t *testing.T, blk []byte, size uint32) []byte {
	t.Helper()

	h, err := ParseHeader(blk)
	require.NoError(t, err)

	h.UncompressedSize = size
	edited := bytes.Clone(blk)
	h.AppendTo(edited[:ChecksumSize])
	resealed, err := reseal(edited)
	require.NoError(t, err)

	return resealed
}

func TestDecode_ImplausibleUncompressedSize(t *testing.T) {
	pool := newTestPool(t, accel.NewEmulator(), 4)

	tests := []struct {
		name  string
		codec compress.Codec
		src   []byte
	}{
		{"none", compress.NewNoOpCodec(), []byte{'x'}},
		{"lz4", compress.NewLZ4Codec(), textData(64)},
		{"zstd", compress.NewZstdCodec(), textData(64)},
		{"deflate", newDeflate(t, compress.WithJobPool(pool)), textData(64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blk, err := Encode(nil, tt.codec, tt.src)
			require.NoError(t, err)

			forged := withUncompressedSize(t, blk, 0xFFFFFFFF)
			_, err = Verify(forged)
			require.NoError(t, err, "the checksum alone does not catch a resealed header")

			out, consumed, err := Decode([]byte("keep"), forged, tt.codec)
			require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
			require.Zero(t, consumed)
			require.Equal(t, []byte("keep"), out)
		})
	}
}

func TestReader_ImplausibleUncompressedSize(t *testing.T) {
	blk, err := Encode(nil, compress.NewNoOpCodec(), []byte{'x'})
	require.NoError(t, err)

	// 256 tiny blocks each claiming 4 GiB
	forged := withUncompressedSize(t, blk, 0xFFFFFFFF)
	stream := bytes.Repeat(forged, 256)

	out, err := DecodeAll(stream)
	require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
	require.Nil(t, out)
}

func TestReader_MaxDecodedSize(t *testing.T) {
	codec := compress.NewS2Codec()

	var stream []byte
	for range 4 {
		var err error
		stream, err = Encode(stream, codec, textData(1000))
		require.NoError(t, err)
	}

	t.Run("at the limit", func(t *testing.T) {
		out, err := DecodeAll(stream, WithMaxDecodedSize(4000))
		require.NoError(t, err)
		require.Len(t, out, 4000)
	})

	t.Run("past the limit", func(t *testing.T) {
		out, err := DecodeAll(stream, WithMaxDecodedSize(3999))
		require.ErrorIs(t, err, errs.ErrSizeLimit)
		require.Nil(t, out)
	})

	t.Run("incompressible block claiming the whole range", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))
		src := make([]byte, 4096)
		for i := range src {
			src[i] = byte(rng.Uint32())
		}

		blk, err := Encode(nil, codec, src)
		require.NoError(t, err)

		// plausible for S2, so only the stream limit stops it
		forged := withUncompressedSize(t, blk, MaxUncompressedSize)
		_, err = DecodeAll(bytes.Repeat(forged, 64))
		require.ErrorIs(t, err, errs.ErrSizeLimit)
	})

	t.Run("invalid option", func(t *testing.T) {
		_, err := NewReader(WithMaxDecodedSize(0))
		require.Error(t, err)
	})
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestWriter(t *testing.T) {
	pool := newTestPool(t, accel.NewEmulator(), 4)
	codec := newDeflate(t, compress.WithJobPool(pool))

	var buf bytes.Buffer
	w, err := NewWriter(&buf, codec, WithBlockSize(1000))
	require.NoError(t, err)

	src := textData(4500)
	for chunk := range slices.Chunk(src, 333) {
		n, err := w.Write(chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.Equal(t, int64(buf.Len()), w.Written())

	_, err = w.Write([]byte("late"))
	require.Error(t, err)

	// 4 full blocks and a 500-byte tail
	blocks := 0
	for data := buf.Bytes(); len(data) > 0; blocks++ {
		h, err := Verify(data)
		require.NoError(t, err)
		data = data[h.BlockSize():]
	}
	require.Equal(t, 5, blocks)

	got, err := DecodeAll(buf.Bytes(), WithDeflateOptions(compress.WithJobPool(pool)))
	require.NoError(t, err)
	require.Equal(t, src, got)
}

func TestWriter_Errors(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, compress.NewNoOpCodec(), WithBlockSize(0))
	require.Error(t, err)

	sinkErr := errors.New("disk full")
	w, err := NewWriter(failingWriter{err: sinkErr}, compress.NewNoOpCodec(), WithBlockSize(4))
	require.NoError(t, err)

	n, err := w.Write([]byte("abcdef"))
	require.ErrorIs(t, err, sinkErr)
	require.Equal(t, 4, n)
}
