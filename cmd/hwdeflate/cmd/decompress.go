package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/hwdeflate/block"
)

func newDecompressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decompress <input> <output>",
		Short: "Decompress a block stream",
		Long: `Decompress a stream of blocks of any method. Deflate blocks use the
configured decompression mode. Streams decoding to more than
codec.max_decoded_size bytes are rejected before any output is allocated.

Example:
  hwdeflate decompress access.log.hwd access.log`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			opts, err := a.cfg.ReaderOptions(a.pool, a.logger)
			if err != nil {
				return err
			}

			decoded, err := block.DecodeAll(data, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if err := os.WriteFile(args[1], decoded, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d bytes\n", args[0], len(data), len(decoded))

			return nil
		},
	}
}
