package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/hwdeflate/block"
	"github.com/arloliu/hwdeflate/compress"
)

func newCompressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compress <input> <output>",
		Short: "Compress a file into a block stream",
		Long: `Compress a file into a stream of blocks using the configured codec.

Example:
  hwdeflate compress --method deflate_qpl access.log access.log.hwd`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.compressFile(cmd, args[0], args[1])
		},
	}
}

func (a *app) compressFile(cmd *cobra.Command, input, output string) (err error) {
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()

	newCodec := a.cfg.NewCodec
	if a.newCodec != nil {
		newCodec = a.newCodec
	}

	codec, err := newCodec(a.pool, a.logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, codec.Close()) }()

	bw := bufio.NewWriter(out)
	w, err := block.NewWriter(bw, codec, block.WithBlockSize(a.cfg.Codec.BlockSize))
	if err != nil {
		return err
	}

	n, err := io.Copy(w, in)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d bytes (%s)\n", input, n, w.Written(), codec.MethodByte())
	if deflate, ok := codec.(*compress.DeflateCodec); ok {
		stats := deflate.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "hardware blocks: %d, software blocks: %d\n",
			stats.HardwareCompress, stats.SoftwareCompress)
	}

	return nil
}
