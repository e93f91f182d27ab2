package cmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arloliu/hwdeflate/block"
	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/config"
	"github.com/arloliu/hwdeflate/errs"
	"github.com/arloliu/hwdeflate/internal/hash"
	"github.com/arloliu/hwdeflate/jobpool"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, "hwdeflate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	packed := filepath.Join(dir, "input.hwd")
	unpacked := filepath.Join(dir, "output.txt")

	payload := []byte(strings.Repeat("GET /api/v1/items 200 12ms\n", 20_000))
	require.NoError(t, os.WriteFile(input, payload, 0o600))

	cfg := writeConfig(t, dir, `
codec:
  block_size: 65536
  decompress_mode: async
pool:
  capacity: 16
logging:
  level: warn
`)

	out, err := run(t, "compress", "-c", cfg, input, packed)
	require.NoError(t, err)
	assert.Contains(t, out, "(DeflateQPL)")
	assert.Contains(t, out, "software blocks: 0")

	out, err = run(t, "inspect", "-c", cfg, packed)
	require.NoError(t, err)
	assert.Contains(t, out, "DeflateQPL")
	assert.Contains(t, out, "total")
	// header, 9 blocks and the total line
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 11)

	_, err = run(t, "decompress", "-c", cfg, packed, unpacked)
	require.NoError(t, err)

	got, err := os.ReadFile(unpacked)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestCompress_MethodOverride(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.bin")
	packed := filepath.Join(dir, "input.hwd")
	require.NoError(t, os.WriteFile(input, bytes.Repeat([]byte{1, 2, 3, 4}, 4096), 0o600))

	out, err := run(t, "compress", "--method", "zstd", input, packed)
	require.NoError(t, err)
	assert.Contains(t, out, "(Zstd)")

	out, err = run(t, "inspect", packed)
	require.NoError(t, err)
	assert.Contains(t, out, "Zstd")

	_, err = run(t, "compress", "--method", "brotli", input, packed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --method")
}

func TestCompress_SoftwareOnly(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	packed := filepath.Join(dir, "input.hwd")
	require.NoError(t, os.WriteFile(input, []byte(strings.Repeat("software path ", 1000)), 0o600))

	cfg := writeConfig(t, dir, "pool:\n  hardware: false\nlogging:\n  level: error\n")

	out, err := run(t, "compress", "-c", cfg, input, packed)
	require.NoError(t, err)
	assert.Contains(t, out, "hardware blocks: 0, software blocks: 1")
}

func TestInspect_Corrupt(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	packed := filepath.Join(dir, "input.hwd")
	require.NoError(t, os.WriteFile(input, []byte(strings.Repeat("x", 5000)), 0o600))

	_, err := run(t, "compress", "-m", "lz4", input, packed)
	require.NoError(t, err)

	data, err := os.ReadFile(packed)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(packed, data, 0o600))

	_, err = run(t, "inspect", packed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")

	_, err = run(t, "decompress", packed, filepath.Join(dir, "out"))
	require.Error(t, err)
}

func TestMissingArguments(t *testing.T) {
	_, err := run(t, "compress", "only-one")
	require.Error(t, err)
}

func TestDecompress_ImplausibleSizes(t *testing.T) {
	dir := t.TempDir()
	packed := filepath.Join(dir, "forged.hwd")

	blk, err := block.Encode(nil, compress.NewNoOpCodec(), []byte{'x'})
	require.NoError(t, err)

	// claim 4 GiB for a one-byte payload and reseal the checksum
	binary.LittleEndian.PutUint32(blk[block.ChecksumSize+5:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint64(blk, hash.Checksum(blk[block.ChecksumSize:]))
	require.NoError(t, os.WriteFile(packed, bytes.Repeat(blk, 256), 0o600))

	_, err = run(t, "decompress", packed, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
	assert.NoFileExists(t, filepath.Join(dir, "out"))
}

func TestDecompress_MaxDecodedSize(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	packed := filepath.Join(dir, "input.hwd")
	require.NoError(t, os.WriteFile(input, []byte(strings.Repeat("y", 5000)), 0o600))

	_, err := run(t, "compress", "-m", "lz4", input, packed)
	require.NoError(t, err)

	cfg := writeConfig(t, dir, "codec:\n  max_decoded_size: 4096\n")
	_, err = run(t, "decompress", "-c", cfg, packed, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, errs.ErrSizeLimit)
}

// closeFailingCodec is a codec whose Close reports an error.
type closeFailingCodec struct {
	compress.NoOpCodec
	err error
}

func (c closeFailingCodec) Close() error { return c.err }

func TestCompress_ReportsCodecCloseError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	packed := filepath.Join(dir, "input.hwd")
	require.NoError(t, os.WriteFile(input, []byte("payload"), 0o600))

	errClose := errors.New("flush failed")
	a := &app{
		cfg:    config.DefaultConfig(),
		logger: zap.NewNop(),
		newCodec: func(*jobpool.Pool, *zap.Logger) (compress.Codec, error) {
			return closeFailingCodec{err: errClose}, nil
		},
	}

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := a.compressFile(cmd, input, packed)
	require.ErrorIs(t, err, errClose)
}
