// Package accel describes the accelerator library consumed by the deflate codecs.
//
// The library is modelled on Intel QPL: callers size and initialize a job
// descriptor for an execution path, fill in the request fields, then either
// execute it synchronously or submit it and later poll or wait for its
// completion. Job descriptors are owned by the engine that created them and
// are never interpreted by callers beyond the request and result fields.
//
// The package ships an Emulator engine that implements both paths on top of
// github.com/klauspost/compress/flate. Its hardware path runs each submitted
// job on its own goroutine so that asynchronous submission behaves like a
// device queue; its software path executes inline.
package accel

import (
	"fmt"
)

// Path selects where a job executes.
type Path uint8

const (
	PathHardware Path = iota + 1 // PathHardware runs jobs on the accelerator device.
	PathSoftware                 // PathSoftware runs jobs on the host CPU.
)

func (p Path) String() string {
	switch p {
	case PathHardware:
		return "hardware"
	case PathSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Operation is the kind of work a job performs.
type Operation uint8

const (
	OpCompress   Operation = iota + 1 // OpCompress produces a raw DEFLATE stream.
	OpDecompress                      // OpDecompress inflates a raw DEFLATE stream.
)

func (o Operation) String() string {
	switch o {
	case OpCompress:
		return "compress"
	case OpDecompress:
		return "decompress"
	default:
		return "unknown"
	}
}

// Level is the compression effort requested for OpCompress jobs.
type Level uint8

const (
	LevelDefault Level = iota + 1 // LevelDefault favours throughput.
	LevelHigh                     // LevelHigh favours ratio.
)

func (l Level) String() string {
	switch l {
	case LevelDefault:
		return "default"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Status is a completion code reported by the engine.
type Status int

const (
	StatusOK Status = iota
	StatusBeingProcessed
	StatusMoreOutputNeeded
	StatusInitHardwareNotSupported
	StatusInvalidParam
	StatusJobNotSubmitted
	StatusJobFinalized
	StatusDecompressionFailed
	StatusLibraryInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBeingProcessed:
		return "being processed"
	case StatusMoreOutputNeeded:
		return "more output needed"
	case StatusInitHardwareNotSupported:
		return "hardware path not supported"
	case StatusInvalidParam:
		return "invalid parameter"
	case StatusJobNotSubmitted:
		return "job not submitted"
	case StatusJobFinalized:
		return "job finalized"
	case StatusDecompressionFailed:
		return "decompression failed"
	case StatusLibraryInternal:
		return "library internal error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusError carries a non-success Status together with the operation that produced it.
type StatusError struct {
	Op     string
	Status Status
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("accel: %s: %s: %v", e.Op, e.Status, e.Err)
	}

	return fmt.Sprintf("accel: %s: %s", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Job is a job descriptor.
//
// The exported fields form the request and result; everything else belongs
// to the engine that created the job.
type Job struct {
	// Op is the operation to perform.
	Op Operation
	// Level is the compression level, only used by OpCompress.
	Level Level
	// Input is the source buffer.
	Input []byte
	// Output is the destination buffer. For OpDecompress its length is the
	// exact expected uncompressed size.
	Output []byte
	// TotalOut is the number of bytes written to Output by the last completed job.
	TotalOut int

	path  Path
	state any
}

// NewJob creates a descriptor bound to path. Engine implementations use it
// from InitJob and keep their private state in state.
func NewJob(path Path, state any) *Job {
	return &Job{path: path, state: state}
}

// Path returns the execution path the job was initialized for.
func (j *Job) Path() Path {
	return j.path
}

// State returns the engine private state.
func (j *Job) State() any {
	return j.state
}

// Reset clears the request and result fields so the descriptor does not
// retain caller buffers between uses.
func (j *Job) Reset() {
	j.Op = 0
	j.Level = 0
	j.Input = nil
	j.Output = nil
	j.TotalOut = 0
}

// Engine is the accelerator library.
//
// A single job must not be used by more than one goroutine at a time; the
// engine itself is safe for concurrent use across distinct jobs.
type Engine interface {
	// JobSize reports the memory needed by one job on path, or an error when
	// the path is not available.
	JobSize(path Path) (int, error)
	// InitJob allocates and initializes a job for path.
	InitJob(path Path) (*Job, error)
	// FiniJob releases engine resources held by job. A job still in flight
	// is waited for first.
	FiniJob(job *Job) error
	// Submit starts the job without waiting for it. Only submission problems
	// are reported here; execution results come from Check or Wait.
	Submit(job *Job) error
	// Check polls a submitted job. It reports done=false while the job is
	// still being processed.
	Check(job *Job) (bool, error)
	// Wait blocks until a submitted job completes and returns its result.
	Wait(job *Job) error
	// Execute submits the job and waits for it.
	Execute(job *Job) error
}
