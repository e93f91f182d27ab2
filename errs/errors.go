// Package errs defines the sentinel errors shared by the hwdeflate packages.
//
// Errors returned by the codecs wrap one of these values, so callers should
// compare with errors.Is:
//
//	if errors.Is(err, errs.ErrEngineExecution) {
//	    // the accelerator (or its software path) rejected the job
//	}
package errs

import "errors"

var (
	// ErrHardwareUnavailable reports that the job pool is not ready or that no
	// slot could be acquired within the probe limit. It is a routing signal:
	// the deflate codec answers it by switching to the software path.
	ErrHardwareUnavailable = errors.New("hardware path unavailable")

	// ErrJobInit reports that the accelerator failed to size or initialize a job.
	ErrJobInit = errors.New("accelerator job initialization failed")

	// ErrEngineExecution reports a non-success status for a submitted job.
	ErrEngineExecution = errors.New("accelerator job execution failed")

	// ErrProtocolMisuse reports a violated calling contract, e.g. releasing a
	// handle that is not held.
	ErrProtocolMisuse = errors.New("job protocol misuse")

	// ErrShortBuffer reports a destination buffer that cannot hold the result.
	ErrShortBuffer = errors.New("destination buffer too small")

	// ErrSizeMismatch reports a decompressed length that differs from the
	// length recorded in the block header.
	ErrSizeMismatch = errors.New("decompressed size mismatch")

	// ErrCodecClosed reports use of a codec after Close.
	ErrCodecClosed = errors.New("codec is closed")

	// ErrUnknownMethod reports a method byte with no registered codec.
	ErrUnknownMethod = errors.New("unknown compression method")

	// ErrInvalidBlockHeader reports a block that is too short or whose sizes
	// are inconsistent.
	ErrInvalidBlockHeader = errors.New("invalid block header")

	// ErrSizeLimit reports a block stream that decodes to more bytes than the
	// reader accepts.
	ErrSizeLimit = errors.New("decoded size limit exceeded")

	// ErrChecksumMismatch reports a block whose checksum does not match its content.
	ErrChecksumMismatch = errors.New("block checksum mismatch")
)
