package compress

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/jobpool"
)

// RequestID identifies an asynchronous decompression submitted through
// HardwareDeflate.DecompressAsync.
type RequestID uint64

// HardwareDeflate runs deflate jobs on slots borrowed from a job pool.
//
// Every operation first tries to acquire a slot. When the pool is not ready
// or is saturated the operation returns errs.ErrHardwareUnavailable without
// touching the buffers, and the caller is expected to route the request to
// the software path instead.
//
// Synchronous operations hold their slot only for the duration of the call.
// Asynchronous decompressions keep their slot until FlushAsyncRequests
// collects them, which is the only point where their output becomes valid.
//
// A HardwareDeflate keeps its pending requests in an unsynchronized table
// and must be owned by a single goroutine.
type HardwareDeflate struct {
	pool  *jobpool.Pool
	level accel.Level

	pending map[RequestID]jobpool.Handle
	order   *queue.Queue
	lastID  RequestID

	completed uint64
	failed    uint64
}

// NewHardwareDeflate creates a hardware codec borrowing jobs from pool.
func NewHardwareDeflate(pool *jobpool.Pool, level accel.Level) *HardwareDeflate {
	return &HardwareDeflate{
		pool:    pool,
		level:   level,
		pending: make(map[RequestID]jobpool.Handle),
		order:   queue.New(),
	}
}

// Ready reports whether the underlying pool accepts acquisitions.
func (c *HardwareDeflate) Ready() bool {
	return c.pool.Ready()
}

// Pending returns the number of asynchronous requests not yet flushed.
func (c *HardwareDeflate) Pending() int {
	return len(c.pending)
}

// IsPending reports whether id has been submitted and not yet flushed.
func (c *HardwareDeflate) IsPending(id RequestID) bool {
	_, ok := c.pending[id]
	return ok
}

// Collected returns how many asynchronous requests FlushAsyncRequests has
// collected so far, split by outcome. Requests still pending are in neither.
func (c *HardwareDeflate) Collected() (completed, failed uint64) {
	return c.completed, c.failed
}

// Compress compresses src into dst on a pooled job and returns the
// compressed length.
func (c *HardwareDeflate) Compress(dst, src []byte) (int, error) {
	h, ok := c.pool.Acquire()
	if !ok {
		return 0, errs.ErrHardwareUnavailable
	}
	defer c.pool.Release(h)

	job := c.pool.Job(h)
	defer job.Reset()

	job.Op = accel.OpCompress
	job.Level = c.level
	job.Input = src
	job.Output = dst

	if err := c.pool.Engine().Execute(job); err != nil {
		return 0, fmt.Errorf("%w: hardware compress: %w", errs.ErrEngineExecution, err)
	}

	return job.TotalOut, nil
}

// Decompress decompresses src into dst on a pooled job and waits for it.
func (c *HardwareDeflate) Decompress(dst, src []byte) error {
	h, ok := c.pool.Acquire()
	if !ok {
		return errs.ErrHardwareUnavailable
	}
	defer c.pool.Release(h)

	job := c.pool.Job(h)
	defer job.Reset()

	job.Op = accel.OpDecompress
	job.Input = src
	job.Output = dst

	if err := c.pool.Engine().Execute(job); err != nil {
		return fmt.Errorf("%w: hardware decompress: %w", errs.ErrEngineExecution, err)
	}

	return checkDecompressed(job, len(dst))
}

// DecompressAsync submits the decompression of src into dst and returns
// without waiting for it.
//
// The slot stays held and both buffers must stay untouched until
// FlushAsyncRequests returns.
func (c *HardwareDeflate) DecompressAsync(dst, src []byte) (RequestID, error) {
	h, ok := c.pool.Acquire()
	if !ok {
		return 0, errs.ErrHardwareUnavailable
	}

	job := c.pool.Job(h)
	job.Op = accel.OpDecompress
	job.Input = src
	job.Output = dst

	if err := c.pool.Engine().Submit(job); err != nil {
		job.Reset()
		c.pool.Release(h)

		return 0, fmt.Errorf("%w: hardware decompress submit: %w", errs.ErrEngineExecution, err)
	}

	c.lastID++
	id := c.lastID
	c.pending[id] = h
	c.order.Add(id)

	return id, nil
}

// FlushAsyncRequests waits for every pending asynchronous request in
// submission order and releases its slot.
//
// The pending table is empty when FlushAsyncRequests returns, whatever the
// outcome. Failures of individual requests are joined into the returned error.
func (c *HardwareDeflate) FlushAsyncRequests() error {
	var errList []error

	for c.order.Length() > 0 {
		id, _ := c.order.Remove().(RequestID)
		h, ok := c.pending[id]
		if !ok {
			continue
		}
		delete(c.pending, id)

		if err := c.collect(h); err != nil {
			c.failed++
			errList = append(errList, fmt.Errorf("request %d: %w", id, err))
			continue
		}
		c.completed++
	}

	return errors.Join(errList...)
}

func (c *HardwareDeflate) collect(h jobpool.Handle) error {
	defer c.pool.Release(h)

	job := c.pool.Job(h)
	defer job.Reset()

	want := len(job.Output)
	if err := c.pool.Engine().Wait(job); err != nil {
		return fmt.Errorf("%w: hardware decompress: %w", errs.ErrEngineExecution, err)
	}

	return checkDecompressed(job, want)
}

func checkDecompressed(job *accel.Job, want int) error {
	if job.TotalOut != want {
		return fmt.Errorf("%w: decompress produced %d of %d bytes", errs.ErrSizeMismatch, job.TotalOut, want)
	}

	return nil
}
