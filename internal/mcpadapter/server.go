// Package mcpadapter exposes the unified search façade (internal/unified) as
// an MCP server, so AI coding assistants can call search and graph_query as
// tools over stdio.
package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/silviusavu/g3index/internal/unified"
	"github.com/silviusavu/g3index/pkg/version"
)

// Server bridges AI clients to the unified search and graph facade.
type Server struct {
	mcp    *mcp.Server
	index  *unified.Index
	logger *slog.Logger
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to execute"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Hybrid *bool  `json:"hybrid,omitempty" jsonschema:"allow hybrid BM25+semantic routing, default true"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Strategy string               `json:"strategy" jsonschema:"the routing strategy the planner chose"`
	Results  []SearchResultOutput `json:"results" jsonschema:"list of search results"`
}

// SearchResultOutput is a single result, flattened for MCP JSON output.
type SearchResultOutput struct {
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line,omitempty"`
	EndLine   int     `json:"end_line,omitempty"`
	Name      string  `json:"name,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	Score     float64 `json:"score"`
	Source    string  `json:"source"`
}

// GraphQueryInput is the input schema for the graph_query tool.
type GraphQueryInput struct {
	Symbol    string `json:"symbol" jsonschema:"the symbol name to query"`
	QueryType string `json:"query_type" jsonschema:"one of: find, callers, callees, references, files, types, traverse"`
	Depth     int    `json:"depth,omitempty" jsonschema:"traversal depth for the traverse query type, default 3"`
}

// GraphQueryOutput is the output schema for the graph_query tool.
type GraphQueryOutput struct {
	Results []SearchResultOutput `json:"results"`
}

// New creates an MCP server wrapping idx. Returns an error if idx is nil.
func New(idx *unified.Index) (*Server, error) {
	if idx == nil {
		return nil, errors.New("unified index is required")
	}

	s := &Server{index: idx, logger: slog.Default()}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "g3index",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid search over the indexed codebase: lexical, semantic, and graph, routed automatically by query shape.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "graph_query",
		Description: "Structural query against the knowledge graph: find, callers, callees, references, files, types, or traverse.",
	}, s.graphQueryHandler)
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query parameter is required")
	}

	hybrid := true
	if input.Hybrid != nil {
		hybrid = *input.Hybrid
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	idx := &unified.Index{Engine: s.index.Engine, Metadata: s.index.Metadata, Graph: s.index.Graph, HybridEnabled: hybrid}
	results, err := idx.UnifiedSearch(ctx, input.Query)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			FilePath: r.FilePath, StartLine: r.StartLine, EndLine: r.EndLine,
			Name: r.Name, Kind: r.Kind, Score: r.Score, Source: string(r.Source),
		})
	}
	return nil, out, nil
}

func (s *Server) graphQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, input GraphQueryInput) (*mcp.CallToolResult, GraphQueryOutput, error) {
	if input.Symbol == "" {
		return nil, GraphQueryOutput{}, errors.New("symbol parameter is required")
	}
	depth := input.Depth
	if depth <= 0 {
		depth = 3
	}

	results, err := s.index.QueryGraph(input.Symbol, unified.GraphQueryType(input.QueryType), depth)
	if err != nil {
		return nil, GraphQueryOutput{}, fmt.Errorf("graph query failed: %w", err)
	}

	out := GraphQueryOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			FilePath: r.FilePath, StartLine: r.StartLine, EndLine: r.EndLine,
			Name: r.Name, Kind: r.Kind, Score: r.Score, Source: string(r.Source),
		})
	}
	return nil, out, nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
	}
	return err
}
