package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silviusavu/g3index/internal/search"
	"github.com/silviusavu/g3index/internal/unified"
)

type searchOptions struct {
	limit   int
	hybrid  bool
	explain bool
}

func newSearchCmd() *cobra.Command {
	opts := searchOptions{limit: 10, hybrid: true}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search (lexical + semantic + graph) against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			for _, a := range args[1:] {
				query += " " + a
			}
			return runSearch(cmd.Context(), query, opts)
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.hybrid, "hybrid", true, "Allow the planner to route to hybrid BM25+semantic search")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Include per-result scoring explanation")
	return cmd
}

func runSearch(ctx context.Context, query string, opts searchOptions) error {
	proj, err := openProject(ctx, ".")
	if err != nil {
		return err
	}
	defer func() { _ = proj.Close() }()

	idx := unified.New(proj.Engine, proj.Metadata, proj.Graph.Graph(), opts.hybrid)

	plan := search.Plan(query, opts.hybrid)
	fmt.Printf("strategy: %s\n", plan.Strategy)

	results, err := idx.UnifiedSearch(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) > opts.limit {
		results = results[:opts.limit]
	}

	for i, r := range results {
		fmt.Printf("%d. [%s] %s:%d-%d (score %.4f)\n", i+1, r.Source, r.FilePath, r.StartLine, r.EndLine, r.Score)
		if r.Name != "" {
			fmt.Printf("   %s %s\n", r.Kind, r.Name)
		}
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}
