package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/hwdeflate/block"
)

func newInspectCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <input>",
		Short: "List the blocks of a block stream",
		Long: `Verify every block checksum and print one line per block.

Example:
  hwdeflate inspect access.log.hwd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tOFFSET\tMETHOD\tCOMPRESSED\tUNCOMPRESSED\tRATIO")

			var compressed, uncompressed int
			index := 0
			for offset := 0; offset < len(data); index++ {
				h, err := block.Verify(data[offset:])
				if err != nil {
					_ = tw.Flush()
					return fmt.Errorf("block %d at offset %d: %w", index, offset, err)
				}

				fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%s\n",
					index, offset, h.Method, h.BlockSize(), h.UncompressedSize, ratio(int(h.UncompressedSize), h.BlockSize()))

				compressed += h.BlockSize()
				uncompressed += int(h.UncompressedSize)
				offset += h.BlockSize()
			}

			fmt.Fprintf(tw, "total\t\t\t%d\t%d\t%s\n", compressed, uncompressed, ratio(uncompressed, compressed))

			return tw.Flush()
		},
	}
}

func ratio(uncompressed, compressed int) string {
	if compressed == 0 {
		return "-"
	}

	return fmt.Sprintf("%.2f", float64(uncompressed)/float64(compressed))
}
