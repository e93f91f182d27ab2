package block

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
	"github.com/arloliu/hwdeflate/internal/options"
)

// Reader decodes streams of concatenated blocks.
//
// It keeps one codec per method byte seen so far and reuses them across
// Decode calls. Like the codecs it owns, a Reader is single-owner.
type Reader struct {
	deflateOpts    []compress.DeflateOption
	logger         *zap.Logger
	maxDecodedSize int
	codecs         map[format.MethodByte]compress.Codec
}

// DefaultMaxDecodedSize is the largest stream a Reader decodes unless
// WithMaxDecodedSize says otherwise.
const DefaultMaxDecodedSize = 1 << 30

// ReaderOption configures a Reader.
type ReaderOption = options.Option[*Reader]

// WithDeflateOptions sets the options used to create deflate codecs, for
// example compress.WithDecompressMode(compress.DecompressAsynchronous).
func WithDeflateOptions(opts ...compress.DeflateOption) ReaderOption {
	return options.NoError(func(r *Reader) {
		r.deflateOpts = append(r.deflateOpts, opts...)
	})
}

// WithReaderLogger sets the logger.
func WithReaderLogger(logger *zap.Logger) ReaderOption {
	return options.NoError(func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	})
}

// WithMaxDecodedSize limits the total uncompressed size of one decoded
// stream. Decode fails with errs.ErrSizeLimit before allocating anything
// when the block headers add up to more.
func WithMaxDecodedSize(size int) ReaderOption {
	return options.New(func(r *Reader) error {
		if size <= 0 {
			return fmt.Errorf("invalid max decoded size: %d", size)
		}
		r.maxDecodedSize = size

		return nil
	})
}

// NewReader creates a block stream reader.
func NewReader(opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		logger:         zap.NewNop(),
		maxDecodedSize: DefaultMaxDecodedSize,
		codecs: make(map[format.MethodByte]compress.Codec),
	}

	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}

	return r, nil
}

type pendingBlock struct {
	header Header
	codec  compress.Codec
	data   []byte
}

// Decode decodes every block in data and returns the concatenated payloads.
//
// All checksums and recorded sizes are verified before any payload is
// decompressed, so the output can be allocated once. A block claiming more
// output than its payload can produce fails with errs.ErrInvalidBlockHeader,
// and a stream larger than the reader's limit fails with errs.ErrSizeLimit.
//
// Codecs decompressing asynchronously are flushed before Decode returns; the
// result is complete whenever the error is nil.
func (r *Reader) Decode(data []byte) ([]byte, error) {
	var blocks []pendingBlock
	total := 0

	for offset := 0; offset < len(data); {
		h, err := Verify(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("block at offset %d: %w", offset, err)
		}

		codec, err := r.codec(h.Method)
		if err != nil {
			return nil, fmt.Errorf("block at offset %d: %w", offset, err)
		}

		if err := checkExpansion(h, codec); err != nil {
			return nil, fmt.Errorf("block at offset %d: %w", offset, err)
		}

		size := int(h.UncompressedSize)
		if size > r.maxDecodedSize-total {
			return nil, fmt.Errorf("%w: block at offset %d brings the stream past %d bytes",
				errs.ErrSizeLimit, offset, r.maxDecodedSize)
		}

		blocks = append(blocks, pendingBlock{header: h, codec: codec, data: data[offset : offset+h.BlockSize()]})
		total += size
		offset += h.BlockSize()
	}

	out := make([]byte, total)
	used := make([]format.MethodByte, 0, 2)
	pos := 0

	var decodeErr error
	for i, b := range blocks {
		if !slices.Contains(used, b.header.Method) {
			used = append(used, b.header.Method)
		}

		size := int(b.header.UncompressedSize)
		if err := b.codec.Decompress(out[pos:pos+size], payload(b.data, b.header)); err != nil {
			decodeErr = fmt.Errorf("block %d: %w", i, err)
			break
		}
		pos += size
	}

	// submitted jobs write into out, so every codec is flushed even on error
	errList := []error{decodeErr}
	for _, method := range used {
		if err := r.codecs[method].FlushAsyncRequests(); err != nil {
			errList = append(errList, fmt.Errorf("flush %s: %w", method, err))
		}
	}

	if err := errors.Join(errList...); err != nil {
		return nil, err
	}

	r.logger.Debug("decoded block stream",
		zap.Int("blocks", len(blocks)),
		zap.Int("compressed", len(data)),
		zap.Int("uncompressed", total))

	return out, nil
}

func (r *Reader) codec(method format.MethodByte) (compress.Codec, error) {
	if c, ok := r.codecs[method]; ok {
		return c, nil
	}

	c, err := compress.CreateCodec(method, r.deflateOpts...)
	if err != nil {
		return nil, err
	}
	r.codecs[method] = c

	return c, nil
}

// Close closes every codec the reader created.
func (r *Reader) Close() error {
	var errList []error
	for method, c := range r.codecs {
		if err := c.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close %s: %w", method, err))
		}
		delete(r.codecs, method)
	}

	return errors.Join(errList...)
}

// DecodeAll decodes a block stream with a temporary Reader.
func DecodeAll(data []byte, opts ...ReaderOption) ([]byte, error) {
	r, err := NewReader(opts...)
	if err != nil {
		return nil, err
	}

	out, err := r.Decode(data)

	return out, errors.Join(err, r.Close())
}
