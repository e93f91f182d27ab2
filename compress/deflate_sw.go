package compress

import (
	"fmt"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/errs"
)

// SoftwareDeflate compresses on the host CPU through the engine's software
// path. It owns a single job for its whole lifetime.
//
// It is the always-available fallback of DeflateCodec and is not safe for
// concurrent use.
type SoftwareDeflate struct {
	engine accel.Engine
	job    *accel.Job
	level  accel.Level
}

// NewSoftwareDeflate initializes a software-path job on engine.
func NewSoftwareDeflate(engine accel.Engine, level accel.Level) (*SoftwareDeflate, error) {
	job, err := engine.InitJob(accel.PathSoftware)
	if err != nil {
		return nil, fmt.Errorf("%w: software path: %w", errs.ErrJobInit, err)
	}

	return &SoftwareDeflate{engine: engine, job: job, level: level}, nil
}

// Compress compresses src into dst and returns the compressed length.
// dst must hold at least the deflate bound of len(src).
func (c *SoftwareDeflate) Compress(dst, src []byte) (int, error) {
	if c.job == nil {
		return 0, errs.ErrCodecClosed
	}

	job := c.job
	defer job.Reset()

	job.Op = accel.OpCompress
	job.Level = c.level
	job.Input = src
	job.Output = dst

	if err := c.engine.Execute(job); err != nil {
		return 0, fmt.Errorf("%w: software compress: %w", errs.ErrEngineExecution, err)
	}

	return job.TotalOut, nil
}

// Decompress decompresses src into dst, whose length is the exact
// uncompressed size.
func (c *SoftwareDeflate) Decompress(dst, src []byte) error {
	if c.job == nil {
		return errs.ErrCodecClosed
	}

	job := c.job
	defer job.Reset()

	job.Op = accel.OpDecompress
	job.Input = src
	job.Output = dst

	if err := c.engine.Execute(job); err != nil {
		return fmt.Errorf("%w: software decompress: %w", errs.ErrEngineExecution, err)
	}

	if job.TotalOut != len(dst) {
		return fmt.Errorf("%w: software decompress produced %d of %d bytes",
			errs.ErrSizeMismatch, job.TotalOut, len(dst))
	}

	return nil
}

// Close finalizes the owned job. It is safe to call more than once.
func (c *SoftwareDeflate) Close() error {
	if c.job == nil {
		return nil
	}

	job := c.job
	c.job = nil

	return c.engine.FiniJob(job)
}
