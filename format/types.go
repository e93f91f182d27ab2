package format

import "fmt"

// MethodByte identifies the codec that produced a compressed block. It is the
// first byte of every block header and the only part of the header a codec
// contributes.
type MethodByte uint8

const (
	MethodNone       MethodByte = 0x02 // MethodNone stores the payload as-is.
	MethodLZ4        MethodByte = 0x82 // MethodLZ4 represents LZ4 block compression.
	MethodZstd       MethodByte = 0x90 // MethodZstd represents Zstandard compression.
	MethodDeflateQPL MethodByte = 0x96 // MethodDeflateQPL represents accelerator-backed DEFLATE.
	MethodS2         MethodByte = 0xB2 // MethodS2 represents S2 compression.
)

func (m MethodByte) String() string {
	switch m {
	case MethodNone:
		return "None"
	case MethodLZ4:
		return "LZ4"
	case MethodZstd:
		return "Zstd"
	case MethodDeflateQPL:
		return "DeflateQPL"
	case MethodS2:
		return "S2"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(m))
	}
}

// ParseMethod maps a codec name, as written in configuration files, to its method byte.
func ParseMethod(name string) (MethodByte, error) {
	switch name {
	case "none", "None", "NONE":
		return MethodNone, nil
	case "lz4", "LZ4":
		return MethodLZ4, nil
	case "zstd", "Zstd", "ZSTD":
		return MethodZstd, nil
	case "deflate_qpl", "DeflateQPL", "DEFLATE_QPL":
		return MethodDeflateQPL, nil
	case "s2", "S2":
		return MethodS2, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q", name)
	}
}
