// Package unified provides a single façade over semantic, lexical, AST, and
// graph search, dispatching each query through the planner and fusing
// results into one result shape regardless of origin.
package unified

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/silviusavu/g3index/internal/graph"
	"github.com/silviusavu/g3index/internal/search"
	"github.com/silviusavu/g3index/internal/store"
)

// ResultSource identifies which sub-index produced a UnifiedSearchResult.
type ResultSource string

const (
	SourceSemantic ResultSource = "Semantic"
	SourceLexical  ResultSource = "Lexical"
	SourceAst      ResultSource = "Ast"
	SourceGraph    ResultSource = "Graph"
	SourceLsp      ResultSource = "Lsp"
)

// UnifiedSearchResult is the common result shape every search surface
// converges to, whatever sub-index produced it.
type UnifiedSearchResult struct {
	ID         string
	FilePath   string
	StartLine  int
	EndLine    int
	Content    string
	Kind       string
	Name       string
	Signature  string
	Scope      string
	Score      float64
	Source     ResultSource
	Metadata   map[string]any
}

// GraphQueryType is the closed set of structural query shapes query_graph
// accepts.
type GraphQueryType string

const (
	GraphQueryFind       GraphQueryType = "find"
	GraphQueryCallers    GraphQueryType = "callers"
	GraphQueryCallees    GraphQueryType = "callees"
	GraphQueryReferences GraphQueryType = "references"
	GraphQueryFiles      GraphQueryType = "files"
	GraphQueryTypes      GraphQueryType = "types"
	GraphQueryTraverse   GraphQueryType = "traverse"
)

// typeSymbolKinds is the set query_type="types" filters to.
var typeSymbolKinds = map[graph.SymbolKind]bool{
	graph.SymbolStruct:    true,
	graph.SymbolEnum:      true,
	graph.SymbolTrait:     true,
	graph.SymbolInterface: true,
	graph.SymbolTypeAlias: true,
}

// Index is the unified façade: it owns references to the hybrid search
// engine, the metadata store (for AST pattern search), and the knowledge
// graph, and routes queries across them.
type Index struct {
	Engine        search.SearchEngine
	Metadata      store.MetadataStore
	Graph         *graph.CodeGraph
	HybridEnabled bool
}

// New constructs a unified façade over the given collaborators.
func New(engine search.SearchEngine, metadata store.MetadataStore, g *graph.CodeGraph, hybridEnabled bool) *Index {
	return &Index{Engine: engine, Metadata: metadata, Graph: g, HybridEnabled: hybridEnabled}
}

// SearchSemantic runs a vector-only search, optionally restricted by filter
// ("all", "code", "docs").
func (idx *Index) SearchSemantic(ctx context.Context, query string, filter string) ([]UnifiedSearchResult, error) {
	opts := search.SearchOptions{
		Filter:  orDefault(filter, "all"),
		Weights: &search.Weights{BM25: 0.0, Semantic: 1.0},
	}
	results, err := idx.Engine.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return fromSearchResults(results, SourceSemantic), nil
}

// SearchLexical runs a BM25-only search.
func (idx *Index) SearchLexical(ctx context.Context, query string) ([]UnifiedSearchResult, error) {
	opts := search.SearchOptions{BM25Only: true}
	results, err := idx.Engine.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return fromSearchResults(results, SourceLexical), nil
}

// SearchAST finds symbols whose name matches pattern literally. A full
// tree-sitter query grammar is out of scope here; this covers the common
// "find this symbol" case the planner routes AST-intent queries to.
func (idx *Index) SearchAST(ctx context.Context, pattern string) ([]UnifiedSearchResult, error) {
	symbols, err := idx.Metadata.SearchSymbols(ctx, pattern, 50)
	if err != nil {
		return nil, fmt.Errorf("ast search: %w", err)
	}

	out := make([]UnifiedSearchResult, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, UnifiedSearchResult{
			ID:        fmt.Sprintf("%s@%d", s.Name, s.StartLine),
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			Content:   s.Signature,
			Kind:      string(s.Type),
			Name:      s.Name,
			Signature: s.Signature,
			Scope:     s.Scope,
			Score:     1.0,
			Source:    SourceAst,
			Metadata:  map[string]any{"doc_comment": s.DocComment},
		})
	}
	return out, nil
}

// QueryGraph dispatches a structural query against the knowledge graph.
// Unknown query types return graph.ErrUnknownQueryType.
func (idx *Index) QueryGraph(symbolName string, queryType GraphQueryType, depth int) ([]UnifiedSearchResult, error) {
	switch queryType {
	case GraphQueryFind:
		return idx.graphFind(symbolName), nil
	case GraphQueryCallers:
		return idx.graphEdgeSet(idx.Graph.FindCallers(symbolName), 1.0), nil
	case GraphQueryCallees:
		return idx.graphEdgeSet(idx.Graph.FindCallees(symbolName), 1.0), nil
	case GraphQueryReferences:
		return idx.graphReferences(symbolName), nil
	case GraphQueryFiles:
		return idx.graphFiles(symbolName), nil
	case GraphQueryTypes:
		return idx.graphTypes(symbolName), nil
	case GraphQueryTraverse:
		return idx.graphTraverse(symbolName, depth), nil
	default:
		return nil, graph.ErrUnknownQueryType{QueryType: string(queryType)}
	}
}

func (idx *Index) graphFind(name string) []UnifiedSearchResult {
	symbols := idx.Graph.FindSymbolsByName(name)
	out := make([]UnifiedSearchResult, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, unifiedFromSymbol(s, 1.0))
	}
	return out
}

func (idx *Index) graphEdgeSet(ids []string, score float64) []UnifiedSearchResult {
	out := make([]UnifiedSearchResult, 0, len(ids))
	for _, id := range ids {
		if s, ok := idx.Graph.GetSymbol(id); ok {
			out = append(out, unifiedFromSymbol(s, score))
		}
	}
	return out
}

func (idx *Index) graphReferences(name string) []UnifiedSearchResult {
	var out []UnifiedSearchResult
	for _, s := range idx.Graph.FindSymbolsByName(name) {
		for _, e := range idx.Graph.FindReferences(s.ID) {
			otherID := e.Target
			if otherID == s.ID {
				otherID = e.Source
			}
			if other, ok := idx.Graph.GetSymbol(otherID); ok {
				r := unifiedFromSymbol(other, 1.0)
				r.Metadata["edge_kind"] = string(e.Kind)
				out = append(out, r)
			}
		}
	}
	return out
}

func (idx *Index) graphFiles(name string) []UnifiedSearchResult {
	seen := make(map[string]bool)
	var out []UnifiedSearchResult
	for _, s := range idx.Graph.FindSymbolsByName(name) {
		if seen[s.FileID] {
			continue
		}
		seen[s.FileID] = true
		if f, ok := idx.Graph.GetFile(s.FileID); ok {
			out = append(out, UnifiedSearchResult{
				ID:       f.ID,
				FilePath: f.Path,
				Kind:     "file",
				Name:     f.Path,
				Score:    1.0,
				Source:   SourceGraph,
				Metadata: map[string]any{"language": f.Language, "symbol_count": f.SymbolCount},
			})
		}
	}
	return out
}

func (idx *Index) graphTypes(name string) []UnifiedSearchResult {
	var out []UnifiedSearchResult
	for _, s := range idx.Graph.FindSymbolsByName(name) {
		if typeSymbolKinds[s.Kind] {
			out = append(out, unifiedFromSymbol(s, 1.0))
		}
	}
	return out
}

// graphTraverse runs a BFS from every symbol named name to depth, scoring
// each discovered node by 1/(d+1).
func (idx *Index) graphTraverse(name string, depth int) []UnifiedSearchResult {
	opts := graph.TraverseOptions{MaxDepth: depth, Dedup: true}
	var out []UnifiedSearchResult
	for _, start := range idx.Graph.FindSymbolsByName(name) {
		for _, r := range idx.Graph.BFS(start.ID, opts) {
			if r.ID == start.ID {
				continue
			}
			score := 1.0 / float64(r.Depth+1)
			if s, ok := idx.Graph.GetSymbol(r.ID); ok {
				out = append(out, unifiedFromSymbol(s, score))
			} else if f, ok := idx.Graph.GetFile(r.ID); ok {
				out = append(out, UnifiedSearchResult{
					ID: f.ID, FilePath: f.Path, Kind: "file", Name: f.Path,
					Score: score, Source: SourceGraph,
					Metadata: map[string]any{"depth": r.Depth},
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func unifiedFromSymbol(s *graph.SymbolNode, score float64) UnifiedSearchResult {
	return UnifiedSearchResult{
		ID:        s.ID,
		FilePath:  s.FileID,
		StartLine: s.LineStart,
		EndLine:   s.LineEnd,
		Kind:      string(s.Kind),
		Name:      s.Name,
		Signature: s.Signature,
		Scope:     s.ParentID,
		Score:     score,
		Source:    SourceGraph,
		Metadata:  map[string]any{},
	}
}

// UnifiedSearch classifies query via the planner and dispatches to the
// strategy it selects.
func (idx *Index) UnifiedSearch(ctx context.Context, query string) ([]UnifiedSearchResult, error) {
	plan := search.Plan(query, idx.HybridEnabled)

	switch plan.Strategy {
	case search.StrategyGraphOnly:
		return idx.QueryGraph(extractSymbolToken(query), GraphQueryFind, 0)

	case search.StrategyAstOnly:
		return idx.SearchAST(ctx, extractSymbolToken(query))

	case search.StrategyVectorOnly:
		return idx.SearchSemantic(ctx, query, "all")

	case search.StrategyHybrid:
		opts := search.SearchOptions{
			Weights: &search.Weights{BM25: plan.WBM25, Semantic: plan.WVector},
		}
		results, err := idx.Engine.Search(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("hybrid search: %w", err)
		}
		return fromSearchResults(results, ""), nil

	default:
		return nil, fmt.Errorf("unhandled strategy: %s", plan.Strategy)
	}
}

// extractSymbolToken pulls the identifier-shaped token out of a natural
// query like "callers of HandleRequest" for graph/AST dispatch.
func extractSymbolToken(query string) string {
	fields := strings.Fields(query)
	for i := len(fields) - 1; i >= 0; i-- {
		token := strings.Trim(fields[i], "()[]{};,.")
		if token != "" && token[0] != '"' {
			return token
		}
	}
	return query
}

func fromSearchResults(results []*search.SearchResult, source ResultSource) []UnifiedSearchResult {
	out := make([]UnifiedSearchResult, 0, len(results))
	for _, r := range results {
		src := source
		if src == "" {
			src = sourceForResult(r)
		}
		c := r.Chunk
		ur := UnifiedSearchResult{
			Score:    r.Score,
			Source:   src,
			Metadata: map[string]any{"vector_score": r.VecScore, "bm25_score": r.BM25Score},
		}
		if c != nil {
			ur.ID = c.ID
			ur.FilePath = c.FilePath
			ur.StartLine = c.StartLine
			ur.EndLine = c.EndLine
			ur.Content = c.Content
			ur.Kind = string(c.ContentType)
			if len(c.Symbols) > 0 {
				ur.Name = c.Symbols[0].Name
				ur.Signature = c.Symbols[0].Signature
				ur.Scope = c.Symbols[0].Scope
			}
		}
		out = append(out, ur)
	}
	return out
}

// sourceForResult infers a source tag for hybrid results that didn't come
// through a single-source call: a result present in both lists is tagged
// Semantic (it carries both subscores in metadata regardless).
func sourceForResult(r *search.SearchResult) ResultSource {
	switch {
	case r.InBothLists:
		return SourceSemantic
	case r.VecRank > 0:
		return SourceSemantic
	default:
		return SourceLexical
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
