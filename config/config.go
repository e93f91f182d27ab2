// Package config loads hwdeflate settings from YAML and turns them into
// configured loggers, job pools and codec options.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/block"
	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/format"
	"github.com/arloliu/hwdeflate/jobpool"
)

// Config is the top-level configuration.
type Config struct {
	Codec   CodecConfig   `yaml:"codec"`
	Pool    PoolConfig    `yaml:"pool"`
	Logging LoggingConfig `yaml:"logging"`
}

// CodecConfig selects and tunes the block codec.
type CodecConfig struct {
	Method         string `yaml:"method"`          // none, lz4, zstd, deflate_qpl or s2
	Level          string `yaml:"level"`           // default or high, deflate only
	DecompressMode string `yaml:"decompress_mode"` // sync or async, deflate only
	BlockSize      int    `yaml:"block_size"`      // uncompressed bytes per block
	MaxDecodedSize int    `yaml:"max_decoded_size"` // largest stream decompress accepts
}

// PoolConfig sizes the hardware job pool and the emulated accelerator behind it.
type PoolConfig struct {
	Capacity int           `yaml:"capacity"` // number of pooled hardware jobs
	Hardware bool          `yaml:"hardware"` // false disables the hardware path
	Latency  time.Duration `yaml:"latency"`  // emulated device latency per job
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() *Config {
	return &Config{
		Codec: CodecConfig{
			Method:         "deflate_qpl",
			Level:          "default",
			DecompressMode: "sync",
			BlockSize:      block.DefaultBlockSize,
			MaxDecodedSize: block.DefaultMaxDecodedSize,
		},
		Pool: PoolConfig{
			Capacity: jobpool.Capacity,
			Hardware: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads and validates configuration from a YAML file. Fields
// missing from the file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errList []error

	if _, err := c.Method(); err != nil {
		errList = append(errList, err)
	}

	if _, err := c.Level(); err != nil {
		errList = append(errList, err)
	}

	if _, err := c.DecompressMode(); err != nil {
		errList = append(errList, err)
	}

	if c.Codec.BlockSize <= 0 || uint64(c.Codec.BlockSize) > block.MaxUncompressedSize {
		errList = append(errList, fmt.Errorf("codec.block_size must be between 1 and %d", uint64(block.MaxUncompressedSize)))
	}

	if c.Codec.MaxDecodedSize <= 0 {
		errList = append(errList, errors.New("codec.max_decoded_size must be positive"))
	}

	if c.Pool.Capacity <= 0 || c.Pool.Capacity > 1<<20 {
		errList = append(errList, errors.New("pool.capacity must be between 1 and 1048576"))
	}

	if c.Pool.Latency < 0 {
		errList = append(errList, errors.New("pool.latency cannot be negative"))
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errList = append(errList, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errList...)
}

// Method returns the configured method byte.
func (c *Config) Method() (format.MethodByte, error) {
	m, err := format.ParseMethod(c.Codec.Method)
	if err != nil {
		return 0, fmt.Errorf("codec.method: %w", err)
	}

	return m, nil
}

// Level returns the configured deflate level.
func (c *Config) Level() (accel.Level, error) {
	switch c.Codec.Level {
	case "default", "":
		return accel.LevelDefault, nil
	case "high":
		return accel.LevelHigh, nil
	default:
		return 0, fmt.Errorf("codec.level: unknown level %q", c.Codec.Level)
	}
}

// DecompressMode returns the configured deflate decompression mode.
func (c *Config) DecompressMode() (compress.DecompressMode, error) {
	switch c.Codec.DecompressMode {
	case "sync", "":
		return compress.DecompressSynchronous, nil
	case "async":
		return compress.DecompressAsynchronous, nil
	default:
		return 0, fmt.Errorf("codec.decompress_mode: unknown mode %q", c.Codec.DecompressMode)
	}
}

// Logger builds a zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// Engine creates the emulated accelerator described by the pool section.
func (c *Config) Engine() *accel.Emulator {
	opts := []accel.EmulatorOption{accel.WithLatency(c.Pool.Latency)}
	if !c.Pool.Hardware {
		opts = append(opts, accel.WithoutHardware())
	}

	return accel.NewEmulator(opts...)
}

// NewPool creates a job pool on a fresh engine. When the hardware path is
// disabled the pool is inert and codecs run in software.
func (c *Config) NewPool(logger *zap.Logger) (*jobpool.Pool, error) {
	return jobpool.New(c.Engine(),
		jobpool.WithCapacity(c.Pool.Capacity),
		jobpool.WithLogger(logger),
	)
}

// DeflateOptions returns the deflate codec options for pool.
func (c *Config) DeflateOptions(pool *jobpool.Pool, logger *zap.Logger) ([]compress.DeflateOption, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}

	mode, err := c.DecompressMode()
	if err != nil {
		return nil, err
	}

	return []compress.DeflateOption{
		compress.WithJobPool(pool),
		compress.WithDeflateLevel(level),
		compress.WithDecompressMode(mode),
		compress.WithLogger(logger),
	}, nil
}

// ReaderOptions returns the block reader options for pool: the deflate
// options plus the configured stream size limit.
func (c *Config) ReaderOptions(pool *jobpool.Pool, logger *zap.Logger) ([]block.ReaderOption, error) {
	deflateOpts, err := c.DeflateOptions(pool, logger)
	if err != nil {
		return nil, err
	}

	return []block.ReaderOption{
		block.WithDeflateOptions(deflateOpts...),
		block.WithMaxDecodedSize(c.Codec.MaxDecodedSize),
		block.WithReaderLogger(logger),
	}, nil
}

// NewCodec creates the configured codec on pool.
func (c *Config) NewCodec(pool *jobpool.Pool, logger *zap.Logger) (compress.Codec, error) {
	method, err := c.Method()
	if err != nil {
		return nil, err
	}

	opts, err := c.DeflateOptions(pool, logger)
	if err != nil {
		return nil, err
	}

	return compress.CreateCodec(method, opts...)
}
