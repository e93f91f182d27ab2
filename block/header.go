// Package block implements the self-describing compressed block envelope.
//
// Each block carries everything needed to pick a codec and size the output:
//
//	offset  size  field
//	0       8     checksum of bytes [8, end), xxhash64
//	8       1     codec method byte
//	9       4     compressed size, including the 9-byte header
//	13      4     uncompressed size
//	17      n     codec payload
//
// All integers are little-endian. Blocks can be concatenated into a stream;
// Reader decodes such a stream, creating one codec per method byte it meets.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/format"
)

const (
	// ChecksumSize is the size of the leading checksum.
	ChecksumSize = 8
	// HeaderSize is the size of the method byte plus the two size fields.
	HeaderSize = 9
	// Overhead is the number of bytes a block adds around its payload.
	Overhead = ChecksumSize + HeaderSize

	// MaxUncompressedSize is the largest payload a single block can describe.
	MaxUncompressedSize = 1<<32 - 1 - HeaderSize
)

var le = binary.LittleEndian

// Header is the fixed part of a block following the checksum.
type Header struct {
	// Method selects the codec. byte offset 8
	Method format.MethodByte
	// CompressedSize is the header plus payload size. byte offset 9-12
	CompressedSize uint32
	// UncompressedSize is the exact decompressed payload size. byte offset 13-16
	UncompressedSize uint32
}

// PayloadSize returns the codec payload size.
func (h Header) PayloadSize() int {
	return int(h.CompressedSize) - HeaderSize
}

// BlockSize returns the total encoded size including checksum and header.
func (h Header) BlockSize() int {
	return ChecksumSize + int(h.CompressedSize)
}

// Parse parses the header from exactly HeaderSize bytes.
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, got %d", errs.ErrInvalidBlockHeader, HeaderSize, len(data))
	}

	h.Method = format.MethodByte(data[0])
	h.CompressedSize = le.Uint32(data[1:5])
	h.UncompressedSize = le.Uint32(data[5:9])

	if h.CompressedSize < HeaderSize {
		return fmt.Errorf("%w: compressed size %d is smaller than the header", errs.ErrInvalidBlockHeader, h.CompressedSize)
	}

	return nil
}

// AppendTo appends the serialized header to dst.
func (h Header) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(h.Method))
	dst = le.AppendUint32(dst, h.CompressedSize)
	dst = le.AppendUint32(dst, h.UncompressedSize)

	return dst
}

// ParseHeader parses the header of the block at the start of data.
//
// Returns:
//   - Header: Parsed header
//   - error: ErrInvalidBlockHeader if data is too short for the header or for
//     the block it announces
func ParseHeader(data []byte) (Header, error) {
	if len(data) < Overhead {
		return Header{}, fmt.Errorf("%w: block needs at least %d bytes, got %d", errs.ErrInvalidBlockHeader, Overhead, len(data))
	}

	var h Header
	if err := h.Parse(data[ChecksumSize:Overhead]); err != nil {
		return Header{}, err
	}

	if len(data) < h.BlockSize() {
		return Header{}, fmt.Errorf("%w: truncated block, need %d bytes, got %d", errs.ErrInvalidBlockHeader, h.BlockSize(), len(data))
	}

	return h, nil
}
