package accel

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/arloliu/hwdeflate/internal/options"
)

// emulatedJobSize is the per-job footprint reported by JobSize: a 32KiB
// history window plus Huffman and match tables.
const emulatedJobSize = 96 * 1024

var errOutputFull = errors.New("output buffer full")

// EmulatorOption configures an Emulator.
type EmulatorOption = options.Option[*Emulator]

// WithoutHardware makes the hardware path report StatusInitHardwareNotSupported,
// as on a host with no accelerator device.
func WithoutHardware() EmulatorOption {
	return options.NoError(func(e *Emulator) {
		e.hardware = false
	})
}

// WithLatency delays completion of every hardware job by d.
func WithLatency(d time.Duration) EmulatorOption {
	return options.NoError(func(e *Emulator) {
		e.latency = d
	})
}

// Emulator is an Engine backed by klauspost/compress/flate.
type Emulator struct {
	hardware bool
	latency  time.Duration

	hardwareJobs atomic.Uint64
	softwareJobs atomic.Uint64
}

var _ Engine = (*Emulator)(nil)

var defaultEmulator = NewEmulator()

// Default returns the process-wide engine.
func Default() Engine {
	return defaultEmulator
}

// NewEmulator creates an emulated accelerator with the hardware path enabled.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{hardware: true}
	// emulator options never fail
	_ = options.Apply(e, opts...)

	return e
}

// HardwareJobs returns the number of jobs executed on the hardware path.
func (e *Emulator) HardwareJobs() uint64 {
	return e.hardwareJobs.Load()
}

// SoftwareJobs returns the number of jobs executed on the software path.
func (e *Emulator) SoftwareJobs() uint64 {
	return e.softwareJobs.Load()
}

type emulatorJob struct {
	owner     *Emulator
	writers   map[Level]*flate.Writer
	reader    io.ReadCloser
	done      chan struct{}
	err       error
	finalized bool
}

// JobSize implements Engine.
func (e *Emulator) JobSize(path Path) (int, error) {
	switch path {
	case PathHardware:
		if !e.hardware {
			return 0, &StatusError{Op: "job size", Status: StatusInitHardwareNotSupported}
		}
	case PathSoftware:
	default:
		return 0, &StatusError{Op: "job size", Status: StatusInvalidParam}
	}

	return emulatedJobSize, nil
}

// InitJob implements Engine.
func (e *Emulator) InitJob(path Path) (*Job, error) {
	if _, err := e.JobSize(path); err != nil {
		return nil, err
	}

	return NewJob(path, &emulatorJob{owner: e, writers: make(map[Level]*flate.Writer, 2)}), nil
}

// FiniJob implements Engine.
func (e *Emulator) FiniJob(job *Job) error {
	st, err := e.stateOf(job, "fini")
	if err != nil {
		return err
	}

	if st.done != nil {
		<-st.done
		st.done = nil
	}

	if st.reader != nil {
		_ = st.reader.Close()
		st.reader = nil
	}
	st.writers = nil
	st.finalized = true
	job.Reset()

	return nil
}

// Submit implements Engine.
func (e *Emulator) Submit(job *Job) error {
	st, err := e.stateOf(job, "submit")
	if err != nil {
		return err
	}

	if st.done != nil {
		return &StatusError{Op: "submit", Status: StatusBeingProcessed}
	}

	if err := validate(job); err != nil {
		return err
	}

	done := make(chan struct{})
	st.done = done
	st.err = nil

	if job.path == PathSoftware {
		e.softwareJobs.Add(1)
		st.err = e.run(job, st)
		close(done)

		return nil
	}

	e.hardwareJobs.Add(1)
	go func() {
		if e.latency > 0 {
			time.Sleep(e.latency)
		}
		st.err = e.run(job, st)
		close(done)
	}()

	return nil
}

// Check implements Engine.
func (e *Emulator) Check(job *Job) (bool, error) {
	st, err := e.stateOf(job, "check")
	if err != nil {
		return false, err
	}

	if st.done == nil {
		return false, &StatusError{Op: "check", Status: StatusJobNotSubmitted}
	}

	select {
	case <-st.done:
		st.done = nil
		return true, st.err
	default:
		return false, nil
	}
}

// Wait implements Engine.
func (e *Emulator) Wait(job *Job) error {
	st, err := e.stateOf(job, "wait")
	if err != nil {
		return err
	}

	if st.done == nil {
		return &StatusError{Op: "wait", Status: StatusJobNotSubmitted}
	}

	<-st.done
	st.done = nil

	return st.err
}

// Execute implements Engine.
func (e *Emulator) Execute(job *Job) error {
	if err := e.Submit(job); err != nil {
		return err
	}

	return e.Wait(job)
}

func (e *Emulator) stateOf(job *Job, op string) (*emulatorJob, error) {
	if job == nil {
		return nil, &StatusError{Op: op, Status: StatusInvalidParam}
	}

	st, ok := job.state.(*emulatorJob)
	if !ok || st.owner != e {
		return nil, &StatusError{Op: op, Status: StatusInvalidParam}
	}

	if st.finalized {
		return nil, &StatusError{Op: op, Status: StatusJobFinalized}
	}

	return st, nil
}

func validate(job *Job) error {
	switch job.Op {
	case OpCompress:
		if job.Level != LevelDefault && job.Level != LevelHigh {
			return &StatusError{Op: "submit", Status: StatusInvalidParam}
		}
	case OpDecompress:
	default:
		return &StatusError{Op: "submit", Status: StatusInvalidParam}
	}

	return nil
}

func (e *Emulator) run(job *Job, st *emulatorJob) error {
	job.TotalOut = 0

	switch job.Op {
	case OpCompress:
		return st.compress(job)
	case OpDecompress:
		return st.decompress(job)
	default:
		return &StatusError{Op: "execute", Status: StatusInvalidParam}
	}
}

func flateLevel(l Level) int {
	if l == LevelHigh {
		return flate.BestCompression
	}

	return flate.BestSpeed
}

func (st *emulatorJob) compress(job *Job) error {
	out := &fixedWriter{buf: job.Output}

	fw, ok := st.writers[job.Level]
	if ok {
		fw.Reset(out)
	} else {
		var err error
		fw, err = flate.NewWriter(out, flateLevel(job.Level))
		if err != nil {
			return &StatusError{Op: "compress", Status: StatusLibraryInternal, Err: err}
		}
		st.writers[job.Level] = fw
	}

	if _, err := fw.Write(job.Input); err != nil {
		return compressStatus(err)
	}

	if err := fw.Close(); err != nil {
		return compressStatus(err)
	}

	job.TotalOut = out.n

	return nil
}

func compressStatus(err error) error {
	if errors.Is(err, errOutputFull) {
		return &StatusError{Op: "compress", Status: StatusMoreOutputNeeded}
	}

	return &StatusError{Op: "compress", Status: StatusLibraryInternal, Err: err}
}

func (st *emulatorJob) decompress(job *Job) error {
	src := bytes.NewReader(job.Input)

	if st.reader == nil {
		st.reader = flate.NewReader(src)
	} else if err := st.reader.(flate.Resetter).Reset(src, nil); err != nil {
		return &StatusError{Op: "decompress", Status: StatusLibraryInternal, Err: err}
	}

	n, err := io.ReadFull(st.reader, job.Output)
	job.TotalOut = n
	if err != nil {
		return &StatusError{Op: "decompress", Status: StatusDecompressionFailed, Err: err}
	}

	// the stream must end exactly at len(Output)
	var extra [1]byte
	m, err := io.ReadFull(st.reader, extra[:])
	if m > 0 {
		return &StatusError{Op: "decompress", Status: StatusMoreOutputNeeded}
	}
	if !errors.Is(err, io.EOF) {
		return &StatusError{Op: "decompress", Status: StatusDecompressionFailed, Err: err}
	}

	return nil
}

// fixedWriter writes into a caller-provided buffer and fails instead of growing it.
type fixedWriter struct {
	buf []byte
	n   int
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	free := len(w.buf) - w.n
	if len(p) > free {
		copy(w.buf[w.n:], p[:free])
		w.n += free

		return free, errOutputFull
	}

	copy(w.buf[w.n:], p)
	w.n += len(p)

	return len(p), nil
}
