package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silviusavu/g3index/internal/unified"
)

func newGraphCmd() *cobra.Command {
	var queryType string
	var depth int

	cmd := &cobra.Command{
		Use:   "graph <query-type> <symbol>",
		Short: "Query the knowledge graph directly: find, callers, callees, references, files, types, traverse",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			queryType = args[0]
			symbol := args[1]
			return runGraphQuery(cmd.Context(), symbol, queryType, depth)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 3, "Traversal depth for the traverse query type")
	return cmd
}

func runGraphQuery(ctx context.Context, symbol, queryType string, depth int) error {
	proj, err := openProject(ctx, ".")
	if err != nil {
		return err
	}
	defer func() { _ = proj.Close() }()

	idx := unified.New(proj.Engine, proj.Metadata, proj.Graph.Graph(), true)

	results, err := idx.QueryGraph(symbol, unified.GraphQueryType(queryType), depth)
	if err != nil {
		return fmt.Errorf("graph query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s %s (%s:%d-%d) score=%.3f\n", r.Kind, r.Name, r.FilePath, r.StartLine, r.EndLine, r.Score)
	}
	return nil
}
