// Package jobpool manages a fixed set of reusable hardware job descriptors.
//
// A Pool owns Capacity slots; each slot pairs one accelerator job with its
// own atomic lock flag. There is no pool-wide lock: ownership of a slot is
// taken with a single compare-and-swap on that slot's flag, so contention is
// spread across every slot instead of funnelling through one mutex.
//
// Acquisition never blocks. It probes randomly chosen slots and gives up
// after Capacity probes, which lets callers fall back to another execution
// path with bounded latency when the pool is saturated:
//
//	h, ok := pool.Acquire()
//	if !ok {
//	    // use the software path
//	}
//	defer pool.Release(h)
//	job := pool.Job(h)
//
// A pool whose initialization failed is permanently inert: Ready reports
// false and every Acquire fails. Destroy drains the pool, waiting for each
// slot's current owner to release it before the job is finalized.
package jobpool

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arloliu/hwdeflate/accel"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/internal/options"
)

// Capacity is the default number of slots in a pool.
const Capacity = 1024

// Handle identifies an acquired slot. It is valid from a successful Acquire
// until the matching Release. The zero Handle is never valid.
type Handle uint32

// slot is padded to a cache line so neighbouring lock flags do not share one.
type slot struct {
	locked atomic.Bool
	job    *accel.Job
	_      [48]byte
}

// Pool is a fixed-capacity, lock-striped pool of accelerator jobs.
type Pool struct {
	engine   accel.Engine
	path     accel.Path
	capacity int
	logger   *zap.Logger

	slots       []slot
	ready       atomic.Bool
	inUse       atomic.Int64
	destroyOnce sync.Once
}

// Option configures a Pool.
type Option = options.Option[*Pool]

// WithCapacity sets the number of slots.
func WithCapacity(n int) Option {
	return options.New(func(p *Pool) error {
		if n <= 0 || n > 1<<20 {
			return fmt.Errorf("invalid pool capacity: %d", n)
		}
		p.capacity = n

		return nil
	})
}

// WithPath selects the execution path the pooled jobs are initialized for.
func WithPath(path accel.Path) Option {
	return options.New(func(p *Pool) error {
		switch path {
		case accel.PathHardware, accel.PathSoftware:
			p.path = path
			return nil
		default:
			return fmt.Errorf("invalid job path: %v", path)
		}
	})
}

// WithLogger sets the logger used for initialization and teardown events.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	})
}

// New creates a pool of hardware jobs on engine.
//
// Initialization failure is not returned as an error: the pool is created
// inert, the failure is logged, and Ready reports false for the lifetime of
// the pool. An error is returned only for invalid options.
func New(engine accel.Engine, opts ...Option) (*Pool, error) {
	p := &Pool{
		engine:   engine,
		path:     accel.PathHardware,
		capacity: Capacity,
		logger:   zap.NewNop(),
	}

	if err := options.Apply(p, opts...); err != nil {
		return nil, err
	}

	p.slots = make([]slot, p.capacity)

	if err := p.init(); err != nil {
		p.logger.Warn("hardware-assisted deflate codec initialization failed, falling back to software",
			zap.Stringer("path", p.path),
			zap.Int("capacity", p.capacity),
			zap.Error(err),
		)
		p.finiAll()

		return p, nil
	}

	p.ready.Store(true)
	p.logger.Debug("job pool ready", zap.Stringer("path", p.path), zap.Int("capacity", p.capacity))

	return p, nil
}

func (p *Pool) init() error {
	if p.engine == nil {
		return fmt.Errorf("%w: no accelerator engine", errs.ErrJobInit)
	}

	if _, err := p.engine.JobSize(p.path); err != nil {
		return fmt.Errorf("%w: job size: %w", errs.ErrJobInit, err)
	}

	for i := range p.slots {
		job, err := p.engine.InitJob(p.path)
		if err != nil {
			return fmt.Errorf("%w: slot %d: %w", errs.ErrJobInit, i, err)
		}
		p.slots[i].job = job
	}

	return nil
}

// finiAll releases jobs created by a partially failed init.
func (p *Pool) finiAll() {
	for i := range p.slots {
		if job := p.slots[i].job; job != nil {
			_ = p.engine.FiniJob(job)
			p.slots[i].job = nil
		}
	}
}

// Ready reports whether every slot was initialized and the pool has not been destroyed.
func (p *Pool) Ready() bool {
	return p.ready.Load()
}

// Capacity returns the number of slots.
func (p *Pool) Capacity() int {
	return p.capacity
}

// InUse returns the number of currently acquired slots.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Engine returns the engine the pooled jobs belong to.
func (p *Pool) Engine() accel.Engine {
	return p.engine
}

// Acquire takes ownership of a free slot.
//
// The probe sequence starts at a random slot and advances by a random stride
// coprime with the capacity, so at most Capacity probes visit every slot
// once. Acquire returns false if the pool is not ready or if every probe
// found its slot locked.
func (p *Pool) Acquire() (Handle, bool) {
	if !p.ready.Load() {
		return 0, false
	}

	n := p.capacity
	index := rand.IntN(n)
	stride := randomStride(n)

	for range n {
		if p.tryLock(index) {
			// lost a race with Destroy
			if !p.ready.Load() {
				p.slots[index].locked.Store(false)
				return 0, false
			}
			p.inUse.Add(1)

			return Handle(n - index), true
		}
		index = (index + stride) % n
	}

	return 0, false
}

// Release returns the slot identified by h to the pool.
//
// Releasing a handle that is out of range or whose slot is not held panics
// with errs.ErrProtocolMisuse.
func (p *Pool) Release(h Handle) {
	index := p.index(h)

	if !p.slots[index].locked.Swap(false) {
		panic(fmt.Errorf("%w: release of unheld job handle %d", errs.ErrProtocolMisuse, h))
	}
	p.inUse.Add(-1)
}

// Job returns the job descriptor owned through h without acquiring anything.
func (p *Pool) Job(h Handle) *accel.Job {
	return p.slots[p.index(h)].job
}

// Destroy drains the pool and finalizes every job.
//
// The pool stops accepting acquisitions first. Each slot is then locked,
// spinning until its current owner (if any) releases it, before its job is
// finalized, so no operation in flight on another goroutine loses its job.
// Destroy is idempotent.
func (p *Pool) Destroy() {
	p.destroyOnce.Do(func() {
		wasReady := p.ready.Swap(false)

		for i := range p.slots {
			for !p.tryLock(i) {
				runtime.Gosched()
			}

			if job := p.slots[i].job; job != nil {
				if err := p.engine.FiniJob(job); err != nil {
					p.logger.Warn("failed to finalize pooled job", zap.Int("slot", i), zap.Error(err))
				}
				p.slots[i].job = nil
			}

			p.slots[i].locked.Store(false)
		}

		if wasReady {
			p.logger.Info("job pool destroyed", zap.Int("capacity", p.capacity))
		}
	})
}

func (p *Pool) tryLock(index int) bool {
	return p.slots[index].locked.CompareAndSwap(false, true)
}

func (p *Pool) index(h Handle) int {
	id := int(h)
	if id <= 0 || id > p.capacity {
		panic(fmt.Errorf("%w: invalid job handle %d", errs.ErrProtocolMisuse, h))
	}

	return p.capacity - id
}

// randomStride returns a random step in [1, n) that is coprime with n, or 1 when n is 1.
func randomStride(n int) int {
	if n <= 2 {
		return 1
	}

	stride := rand.IntN(n-1) + 1
	for gcd(stride, n) != 1 {
		stride--
	}

	return stride
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}
