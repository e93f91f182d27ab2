package jobpool

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arloliu/hwdeflate/accel"
)

var (
	defaultPool atomic.Pointer[Pool]
	defaultMu   sync.Mutex
	defaultOpts []Option
)

// ErrDefaultInitialized is returned by ConfigureDefault after the process-wide
// pool has been created.
var ErrDefaultInitialized = errors.New("default job pool already initialized")

// ConfigureDefault sets the options used when the process-wide pool is first
// created. It must be called before the first Default or Shutdown call.
func ConfigureDefault(opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool.Load() != nil {
		return ErrDefaultInitialized
	}
	defaultOpts = append([]Option(nil), opts...)

	return nil
}

// Default returns the process-wide hardware job pool, creating it on first use
// with the emulated accelerator from accel.Default.
//
// If creation fails the returned pool is inert and every acquisition falls
// back; creation is never retried.
func Default() *Pool {
	if p := defaultPool.Load(); p != nil {
		return p
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if p := defaultPool.Load(); p != nil {
		return p
	}

	p, err := New(accel.Default(), defaultOpts...)
	if err != nil {
		zap.L().Warn("invalid default job pool options, hardware path disabled", zap.Error(err))
		p = newInert(accel.Default())
	}
	defaultPool.Store(p)

	return p
}

// Shutdown destroys the process-wide pool, waiting for every held slot to be
// released first. It is idempotent. After Shutdown, Default returns the
// destroyed pool, which is inert, so codecs keep working on their software path.
func Shutdown() {
	defaultMu.Lock()
	p := defaultPool.Load()
	if p == nil {
		p = newInert(accel.Default())
		defaultPool.Store(p)
	}
	defaultMu.Unlock()

	p.Destroy()
}

// newInert returns a pool that never becomes ready.
func newInert(engine accel.Engine) *Pool {
	return &Pool{
		engine: engine,
		path:   accel.PathHardware,
		logger: zap.NewNop(),
	}
}
