package compress

import (
	"errors"
	"fmt"
	"hash"

	"go.uber.org/zap"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
	"github.com/arloliu/hwdeflate/internal/options"
	"github.com/arloliu/hwdeflate/jobpool"
)

// DecompressMode selects how DeflateCodec.Decompress uses the hardware path.
type DecompressMode uint8

const (
	// DecompressSynchronous waits for every decompression before returning.
	DecompressSynchronous DecompressMode = iota + 1
	// DecompressAsynchronous submits hardware decompressions and returns
	// immediately; the output is valid only after FlushAsyncRequests.
	DecompressAsynchronous
)

func (m DecompressMode) String() string {
	switch m {
	case DecompressSynchronous:
		return "sync"
	case DecompressAsynchronous:
		return "async"
	default:
		return fmt.Sprintf("DecompressMode(%d)", uint8(m))
	}
}

// DeflateStats counts the operations a DeflateCodec routed to each path.
type DeflateStats struct {
	HardwareCompress   uint64 // compressions executed on a pooled hardware job
	SoftwareCompress   uint64 // compressions that fell back to the software job
	HardwareDecompress uint64 // synchronous hardware decompressions
	AsyncDecompress    uint64 // asynchronous hardware decompressions that completed at flush
	AsyncFailed        uint64 // asynchronous hardware decompressions that failed at flush
	SoftwareDecompress uint64 // decompressions that fell back to the software job
}

// HardwareRatio returns the fraction of successful operations that ran on
// the hardware path.
func (s DeflateStats) HardwareRatio() float64 {
	hw := s.HardwareCompress + s.HardwareDecompress + s.AsyncDecompress
	total := hw + s.SoftwareCompress + s.SoftwareDecompress
	if total == 0 {
		return 0
	}

	return float64(hw) / float64(total)
}

// DeflateOption configures a DeflateCodec.
type DeflateOption = options.Option[*DeflateCodec]

// WithDeflateLevel sets the compression level.
func WithDeflateLevel(level accel.Level) DeflateOption {
	return options.New(func(c *DeflateCodec) error {
		if level != accel.LevelDefault && level != accel.LevelHigh {
			return fmt.Errorf("invalid deflate level: %s", level)
		}
		c.level = level

		return nil
	})
}

// WithJobPool sets the hardware job pool. Defaults to jobpool.Default().
func WithJobPool(pool *jobpool.Pool) DeflateOption {
	return options.New(func(c *DeflateCodec) error {
		if pool == nil {
			return errors.New("job pool cannot be nil")
		}
		c.pool = pool

		return nil
	})
}

// WithEngine sets the engine used by the software path. Defaults to the
// engine of the job pool.
func WithEngine(engine accel.Engine) DeflateOption {
	return options.New(func(c *DeflateCodec) error {
		if engine == nil {
			return errors.New("engine cannot be nil")
		}
		c.engine = engine

		return nil
	})
}

// WithLogger sets the logger used for routing decisions.
func WithLogger(logger *zap.Logger) DeflateOption {
	return options.NoError(func(c *DeflateCodec) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithDecompressMode sets the decompression mode.
func WithDecompressMode(mode DecompressMode) DeflateOption {
	return options.New(func(c *DeflateCodec) error {
		if mode != DecompressSynchronous && mode != DecompressAsynchronous {
			return fmt.Errorf("invalid decompress mode: %s", mode)
		}
		c.mode = mode

		return nil
	})
}

// DeflateCodec is the DEFLATE codec with hardware offload.
//
// Every operation is tried on the hardware path first and falls back to the
// software path when no hardware job is available. Both paths emit the same
// raw DEFLATE stream, so the output carries no marker of where it was
// produced and either path can decompress it.
//
// Hardware unavailability is never an error. A job that fails on either
// path is.
type DeflateCodec struct {
	hw *HardwareDeflate
	sw *SoftwareDeflate

	pool   *jobpool.Pool
	engine accel.Engine
	level  accel.Level
	mode   DecompressMode
	logger *zap.Logger
	stats  DeflateStats
}

var _ Codec = (*DeflateCodec)(nil)

// NewDeflateCodec creates a deflate codec.
//
// Parameters:
//   - opts: Optional configuration (level, job pool, engine, logger, decompress mode)
//
// Returns:
//   - *DeflateCodec: New codec owned by the caller; Close it when done
//   - error: Invalid option, or failure to initialize the software job
func NewDeflateCodec(opts ...DeflateOption) (*DeflateCodec, error) {
	c := &DeflateCodec{
		level:  accel.LevelDefault,
		mode:   DecompressSynchronous,
		logger: zap.NewNop(),
	}

	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	if c.pool == nil {
		c.pool = jobpool.Default()
	}

	if c.engine == nil {
		c.engine = c.pool.Engine()
	}

	sw, err := NewSoftwareDeflate(c.engine, c.level)
	if err != nil {
		return nil, err
	}

	c.sw = sw
	c.hw = NewHardwareDeflate(c.pool, c.level)

	c.logger.Debug("deflate codec created",
		zap.Stringer("level", c.level),
		zap.Stringer("mode", c.mode),
		zap.Bool("hardware", c.hw.Ready()))

	return c, nil
}

// MethodByte implements Codec.
func (c *DeflateCodec) MethodByte() format.MethodByte {
	return format.MethodDeflateQPL
}

// IsCompression implements Codec.
func (c *DeflateCodec) IsCompression() bool {
	return true
}

// IsGenericCompression implements Codec.
func (c *DeflateCodec) IsGenericCompression() bool {
	return true
}

// MaxCompressedSize implements Codec using the zlib bound, which covers
// stored-block overhead for incompressible input.
func (c *DeflateCodec) MaxCompressedSize(uncompressedSize int) int {
	n := uncompressedSize
	return n + n>>12 + n>>14 + n>>25 + 13
}

// MaxDecompressedSize implements Codec. DEFLATE expands at most 1032:1, one
// 258-byte match per two bits.
func (c *DeflateCodec) MaxDecompressedSize(compressedSize int) int {
	return expansionBound(compressedSize, 1032, 258)
}

// Level returns the compression level.
func (c *DeflateCodec) Level() accel.Level {
	return c.level
}

// Mode returns the decompression mode.
func (c *DeflateCodec) Mode() DecompressMode {
	return c.mode
}

// Stats returns the per-path operation counters. Asynchronous
// decompressions are counted once FlushAsyncRequests has collected them.
func (c *DeflateCodec) Stats() DeflateStats {
	s := c.stats
	if c.hw != nil {
		s.AsyncDecompress, s.AsyncFailed = c.hw.Collected()
	}

	return s
}

// Compress compresses src into dst, which must hold at least
// MaxCompressedSize(len(src)) bytes.
func (c *DeflateCodec) Compress(dst, src []byte) (int, error) {
	if c.sw == nil {
		return 0, errs.ErrCodecClosed
	}

	if err := checkCompressDst(c, dst, src); err != nil {
		return 0, err
	}

	n, err := c.hw.Compress(dst, src)
	if !errors.Is(err, errs.ErrHardwareUnavailable) {
		if err == nil {
			c.stats.HardwareCompress++
		}

		return n, err
	}

	c.logger.Debug("hardware deflate unavailable, compressing in software", zap.Int("size", len(src)))

	n, err = c.sw.Compress(dst, src)
	if err != nil {
		return 0, err
	}
	c.stats.SoftwareCompress++

	return n, nil
}

// Decompress decompresses src into dst, whose length is the exact
// uncompressed size.
//
// In DecompressAsynchronous mode a hardware decompression is only submitted
// here; dst must not be read before FlushAsyncRequests returns.
func (c *DeflateCodec) Decompress(dst, src []byte) error {
	if c.sw == nil {
		return errs.ErrCodecClosed
	}

	var err error
	if c.mode == DecompressAsynchronous {
		_, err = c.hw.DecompressAsync(dst, src)
	} else {
		err = c.hw.Decompress(dst, src)
		if err == nil {
			c.stats.HardwareDecompress++
		}
	}

	if !errors.Is(err, errs.ErrHardwareUnavailable) {
		return err
	}

	c.logger.Debug("hardware deflate unavailable, decompressing in software", zap.Int("size", len(dst)))

	if err := c.sw.Decompress(dst, src); err != nil {
		return err
	}
	c.stats.SoftwareDecompress++

	return nil
}

// FlushAsyncRequests waits for every decompression submitted in
// DecompressAsynchronous mode. It is a no-op when nothing is pending.
func (c *DeflateCodec) FlushAsyncRequests() error {
	if c.hw == nil || c.hw.Pending() == 0 {
		return nil
	}

	return c.hw.FlushAsyncRequests()
}

// UpdateHash implements Codec. The level is mixed in so codecs with
// different levels never share a fingerprint.
func (c *DeflateCodec) UpdateHash(h hash.Hash64) {
	writeMethod(h, format.MethodDeflateQPL, byte(c.level))
}

// Close flushes pending asynchronous requests and finalizes the software job.
// Pooled hardware jobs stay with the pool.
func (c *DeflateCodec) Close() error {
	if c.sw == nil {
		return nil
	}

	flushErr := c.FlushAsyncRequests()
	closeErr := c.sw.Close()
	c.sw = nil

	return errors.Join(flushErr, closeErr)
}
