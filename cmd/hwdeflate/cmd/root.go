// Package cmd implements the hwdeflate command line tool.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arloliu/hwdeflate/compress"
	"github.com/arloliu/hwdeflate/config"
	"github.com/arloliu/hwdeflate/jobpool"
)

// app holds the state shared by subcommands for one invocation.
type app struct {
	configPath string
	method     string

	cfg    *config.Config
	logger *zap.Logger
	pool   *jobpool.Pool

	// newCodec overrides cfg.NewCodec when set.
	newCodec func(*jobpool.Pool, *zap.Logger) (compress.Codec, error)
}

// NewRootCommand builds the hwdeflate command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hwdeflate",
		Short: "Compress and inspect hwdeflate block files",
		Long: `hwdeflate reads and writes streams of self-describing compressed blocks.

Deflate blocks are compressed on the accelerator when a job is available and
in software otherwise; the output is identical either way.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVarP(&a.method, "method", "m", "", "codec method, overrides the configuration")

	root.AddCommand(
		newCompressCommand(a),
		newDecompressCommand(a),
		newInspectCommand(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.cfg = config.DefaultConfig()
	if a.configPath != "" {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	if a.method != "" {
		a.cfg.Codec.Method = a.method
		if err := a.cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --method: %w", err)
		}
	}

	logger, err := a.cfg.Logger()
	if err != nil {
		return err
	}
	a.logger = logger

	pool, err := a.cfg.NewPool(logger)
	if err != nil {
		return err
	}
	a.pool = pool

	a.logger.Debug("command ready",
		zap.String("command", cmd.Name()),
		zap.Bool("hardware", pool.Ready()))

	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.pool != nil {
		a.pool.Destroy()
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}

	return nil
}
