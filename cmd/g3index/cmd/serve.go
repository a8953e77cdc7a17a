package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/silviusavu/g3index/internal/mcpadapter"
	"github.com/silviusavu/g3index/internal/unified"
)

func newServeCmd() *cobra.Command {
	var hybrid bool

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the index over MCP (stdio) for AI coding assistants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runServe(cmd.Context(), dir, hybrid)
		},
	}

	cmd.Flags().BoolVar(&hybrid, "hybrid", true, "Allow the planner to route to hybrid BM25+semantic search")
	return cmd
}

func runServe(ctx context.Context, dir string, hybrid bool) error {
	proj, err := openProject(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = proj.Close() }()

	idx := unified.New(proj.Engine, proj.Metadata, proj.Graph.Graph(), hybrid)
	srv, err := mcpadapter.New(idx)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(sigCtx)
}
