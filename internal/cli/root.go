// Package cli provides the linesearch command tree: one-shot search, the
// interactive prompt, the HTTP service and index statistics.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

type globalOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

// NewRootCmd creates the root command. Every subcommand shares one app whose
// config is loaded before the subcommand runs.
func NewRootCmd() *cobra.Command {
	var opts globalOptions
	a := &app{}

	cmd := &cobra.Command{
		Use:   "linesearch",
		Short: "Search lines of local text files",
		Long: `linesearch indexes every line of the text files under a directory and
answers free-text queries with the best matching lines.

A line matches when it contains every known query word. One misspelt
word is tolerated and replaced by its closest vocabulary neighbours.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if opts.dataDir != "" {
				cfg.Corpus.Dir = opts.dataDir
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("configuring logging: %w", err)
			}
			a.init(cfg)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data", "", "Directory of text files to index (overrides corpus.dir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newReplCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newLoadCmd(a))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
