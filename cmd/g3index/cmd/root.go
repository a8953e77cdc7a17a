// Package cmd provides the CLI commands for g3index.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/silviusavu/g3index/internal/logging"
	"github.com/silviusavu/g3index/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the g3index CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "g3index",
		Short:   "Local-first hybrid code index: lexical, semantic, and graph search",
		Version: version.Version,
		Long: `g3index indexes a codebase into BM25, semantic, and knowledge-graph
indexes and serves hybrid search over them.

Run 'g3index index' once to build the index, then 'g3index search <query>'
or 'g3index watch' to keep it current.`,
	}

	cmd.SetVersionTemplate("g3index version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newGraphCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
