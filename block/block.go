package block

import (
	"fmt"
	"slices"

	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/internal/hash"
	"github.com/arloliu/hwdeflate/internal/pool"
)

// Encode compresses src with codec and appends the resulting block to dst.
//
// The codec output goes through a pooled scratch buffer sized with
// codec.MaxCompressedSize, so only the final block is appended to dst.
func Encode(dst []byte, codec compress.Codec, src []byte) ([]byte, error) {
	if uint64(len(src)) > MaxUncompressedSize {
		return dst, fmt.Errorf("%w: %d bytes exceed the block limit", errs.ErrInvalidBlockHeader, len(src))
	}

	bound := codec.MaxCompressedSize(len(src))
	scratch, release := pool.GetScratch(bound)
	defer release()

	n, err := codec.Compress(scratch.Bytes(), src)
	if err != nil {
		return dst, err
	}

	if uint64(n) > MaxUncompressedSize {
		return dst, fmt.Errorf("%w: compressed payload of %d bytes exceeds the block limit", errs.ErrInvalidBlockHeader, n)
	}

	h := Header{
		Method:           codec.MethodByte(),
		CompressedSize:   uint32(HeaderSize + n), //nolint: gosec
		UncompressedSize: uint32(len(src)),       //nolint: gosec
	}

	start := len(dst)
	dst = slices.Grow(dst, ChecksumSize+int(h.CompressedSize))
	dst = le.AppendUint64(dst, 0)
	dst = h.AppendTo(dst)
	dst = append(dst, scratch.Bytes()[:n]...)

	le.PutUint64(dst[start:], hash.Checksum(dst[start+ChecksumSize:]))

	return dst, nil
}

// Verify checks the checksum of the block at the start of data and returns
// its header.
func Verify(data []byte) (Header, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return Header{}, err
	}

	want := le.Uint64(data[:ChecksumSize])
	if got := hash.Checksum(data[ChecksumSize:h.BlockSize()]); got != want {
		return Header{}, fmt.Errorf("%w: stored %016x, computed %016x", errs.ErrChecksumMismatch, want, got)
	}

	return h, nil
}

// Decode decodes the block at the start of data with codec and appends the
// uncompressed payload to dst.
//
// It returns the extended slice and the number of bytes of data the block
// occupied. The codec must match the block's method byte. When the codec
// decompresses asynchronously, the appended bytes are valid only after
// codec.FlushAsyncRequests returns.
func Decode(dst, data []byte, codec compress.Codec) ([]byte, int, error) {
	h, err := Verify(data)
	if err != nil {
		return dst, 0, err
	}

	if h.Method != codec.MethodByte() {
		return dst, 0, fmt.Errorf("%w: block uses %s, codec is %s", errs.ErrUnknownMethod, h.Method, codec.MethodByte())
	}

	if err := checkExpansion(h, codec); err != nil {
		return dst, 0, err
	}

	start := len(dst)
	size := int(h.UncompressedSize)
	dst = slices.Grow(dst, size)[:start+size]

	if err := codec.Decompress(dst[start:], payload(data, h)); err != nil {
		return dst[:start], 0, err
	}

	return dst, h.BlockSize(), nil
}

// checkExpansion rejects a header whose uncompressed size is larger than
// its payload can decode to with codec. It runs before any output is sized
// from the header, since the checksum does not authenticate the sizes.
func checkExpansion(h Header, codec compress.Codec) error {
	limit := codec.MaxDecompressedSize(h.PayloadSize())
	if uint64(h.UncompressedSize) > uint64(limit) { //nolint: gosec
		return fmt.Errorf("%w: %d-byte %s payload cannot decode to %d bytes",
			errs.ErrInvalidBlockHeader, h.PayloadSize(), h.Method, h.UncompressedSize)
	}

	return nil
}

func payload(data []byte, h Header) []byte {
	return data[Overhead:h.BlockSize()]
}
