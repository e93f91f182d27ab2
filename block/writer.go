package block

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/internal/options"
	"github.com/arloliu/hwdeflate/internal/pool"
)

// DefaultBlockSize is the uncompressed size at which Writer cuts a block.
const DefaultBlockSize = 1 << 20

// Writer buffers writes and emits one compressed block per BlockSize bytes.
type Writer struct {
	w         io.Writer
	codec     compress.Codec
	blockSize int

	pending *pool.ByteBuffer
	encoded []byte
	written int64
	closed  bool
}

// WriterOption configures a Writer.
type WriterOption = options.Option[*Writer]

// WithBlockSize sets the uncompressed block size.
func WithBlockSize(size int) WriterOption {
	return options.New(func(w *Writer) error {
		if size <= 0 || uint64(size) > MaxUncompressedSize {
			return fmt.Errorf("invalid block size: %d", size)
		}
		w.blockSize = size

		return nil
	})
}

// NewWriter creates a Writer compressing with codec into w.
// The codec stays owned by the caller.
func NewWriter(w io.Writer, codec compress.Codec, opts ...WriterOption) (*Writer, error) {
	bw := &Writer{
		w:         w,
		codec:     codec,
		blockSize: DefaultBlockSize,
	}

	if err := options.Apply(bw, opts...); err != nil {
		return nil, err
	}

	bw.pending = pool.NewByteBuffer(bw.blockSize)

	return bw, nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("block writer is closed")
	}

	n := len(p)
	for len(p) > 0 {
		free := w.blockSize - w.pending.Len()
		take := min(free, len(p))
		w.pending.B = append(w.pending.B, p[:take]...)
		p = p[take:]

		if w.pending.Len() == w.blockSize {
			if err := w.Flush(); err != nil {
				return n - len(p), err
			}
		}
	}

	return n, nil
}

// Flush encodes buffered data as a block and writes it out.
func (w *Writer) Flush() error {
	if w.pending.Len() == 0 {
		return nil
	}

	var err error
	w.encoded, err = Encode(w.encoded[:0], w.codec, w.pending.Bytes())
	if err != nil {
		return err
	}
	w.pending.Reset()

	n, err := w.w.Write(w.encoded)
	w.written += int64(n)
	if err != nil {
		return err
	}

	return nil
}

// Written returns the number of encoded bytes written to the underlying writer.
func (w *Writer) Written() int64 {
	return w.written
}

// Close flushes buffered data. It does not close the underlying writer or the codec.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	return w.Flush()
}
