package graph

import (
	"fmt"
	"sync"

	dbgraph "github.com/dominikbraun/graph"
	"github.com/maypok86/otter"
)

// queryCacheWeight bounds the symbol/file query-result cache (keys are small
// string slices, so a modest fixed weight budget is enough).
const queryCacheWeight = 8 * 1024 * 1024

// CodeGraph is the mutable knowledge graph of symbols, files, and edges.
// All mutation methods acquire the write lock; queries take the read lock.
type CodeGraph struct {
	mu sync.RWMutex

	symbols map[string]*SymbolNode
	files   map[string]*FileNode

	edges    map[string]Edge   // edgeKey -> edge, the authoritative edge set
	outgoing map[string][]Edge // source id -> edges
	incoming map[string][]Edge // target id -> edges

	byName     map[string]map[string]struct{} // symbol name -> set of symbol ids
	byLanguage map[string]map[string]struct{} // language -> set of file ids

	// underlying is a plain directed graph mirroring node/edge existence,
	// collapsing parallel edges of different kinds between the same pair.
	// It backs ShortestPath for the traverser (C9) so the structural graph
	// dependency stays load-bearing rather than decorative.
	underlying dbgraph.Graph[string, string]

	cache otter.Cache[string, []string] // invalidated wholesale on any mutation
}

// New creates an empty knowledge graph.
func New() (*CodeGraph, error) {
	cache, err := otter.MustBuilder[string, []string](queryCacheWeight).
		Cost(func(key string, value []string) uint32 {
			return uint32(16 + len(value)*24)
		}).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}

	return &CodeGraph{
		symbols:    make(map[string]*SymbolNode),
		files:      make(map[string]*FileNode),
		edges:      make(map[string]Edge),
		outgoing:   make(map[string][]Edge),
		incoming:   make(map[string][]Edge),
		byName:     make(map[string]map[string]struct{}),
		byLanguage: make(map[string]map[string]struct{}),
		underlying: dbgraph.New(func(id string) string { return id }, dbgraph.Directed()),
		cache:      cache,
	}, nil
}

// Close releases the query cache's resources.
func (g *CodeGraph) Close() {
	g.cache.Close()
}

// ErrNotFound is returned by query/removal operations targeting a missing node.
type ErrNotFound struct {
	Kind string // "symbol", "file", "edge"
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (g *CodeGraph) invalidate() {
	g.cache.Clear()
}

// AddFile inserts or replaces a file node. Pre-existing symbols belonging to
// the file are left untouched; callers that re-scan a file should RemoveFile
// first, per the storage layer's remove-then-readd incremental algorithm.
func (g *CodeGraph) AddFile(f *FileNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.files[f.ID]; !exists {
		_ = g.underlying.AddVertex(f.ID)
	}
	g.files[f.ID] = f

	if g.byLanguage[f.Language] == nil {
		g.byLanguage[f.Language] = make(map[string]struct{})
	}
	g.byLanguage[f.Language][f.ID] = struct{}{}

	g.invalidate()
}

// AddSymbol inserts a symbol and creates the Defines (file->symbol) and
// BelongsTo (symbol->file) edges per invariant (ii). Fails if the owning
// file does not exist (invariant i).
func (g *CodeGraph) AddSymbol(s *SymbolNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	file, ok := g.files[s.FileID]
	if !ok {
		return ErrNotFound{Kind: "file", ID: s.FileID}
	}

	if _, exists := g.symbols[s.ID]; !exists {
		file.SymbolCount++
	}
	g.symbols[s.ID] = s

	if g.byName[s.Name] == nil {
		g.byName[s.Name] = make(map[string]struct{})
	}
	g.byName[s.Name][s.ID] = struct{}{}

	_ = g.underlying.AddVertex(s.ID)
	g.addEdgeLocked(Edge{Source: s.FileID, Target: s.ID, Kind: EdgeDefines})
	g.addEdgeLocked(Edge{Source: s.ID, Target: s.FileID, Kind: EdgeBelongsTo})

	g.invalidate()
	return nil
}

// AddEdge inserts an arbitrary edge between two existing ids.
func (g *CodeGraph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(e)
	g.invalidate()
}

func (g *CodeGraph) addEdgeLocked(e Edge) {
	key := edgeKey(e)
	if _, exists := g.edges[key]; exists {
		return
	}
	g.edges[key] = e
	g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	g.incoming[e.Target] = append(g.incoming[e.Target], e)

	if err := g.underlying.AddEdge(e.Source, e.Target); err != nil {
		// Parallel edge of a different kind between the same pair, or a
		// dangling reference (add_reference tolerates forward references):
		// the structural graph only needs one edge per pair to exist.
		_ = err
	}
}

// AddReference resolves symbolName against the name index and emits one
// References edge per matching symbol, tagged with the originating file and
// line. Unresolved names are silently skipped: no edge is recorded, and a
// symbol added later does not pick the reference up unless AddReference is
// called again.
func (g *CodeGraph) AddReference(fromFile, symbolName string, kind EdgeKind, line int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range g.byName[symbolName] {
		g.addEdgeLocked(Edge{
			Source:       fromFile,
			Target:       id,
			Kind:         kind,
			LocationFile: fromFile,
			LocationLine: line,
		})
	}
	g.invalidate()
}

// RemoveSymbol removes a symbol and both of its structural edges
// (Defines, BelongsTo), decrementing the owning file's symbol count.
func (g *CodeGraph) RemoveSymbol(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeSymbolLocked(id)
}

func (g *CodeGraph) removeSymbolLocked(id string) error {
	s, ok := g.symbols[id]
	if !ok {
		return ErrNotFound{Kind: "symbol", ID: id}
	}

	g.removeEdgesTouchingLocked(id)
	delete(g.symbols, id)
	if names := g.byName[s.Name]; names != nil {
		delete(names, id)
		if len(names) == 0 {
			delete(g.byName, s.Name)
		}
	}
	_ = g.underlying.RemoveVertex(id)

	if file, ok := g.files[s.FileID]; ok && file.SymbolCount > 0 {
		file.SymbolCount--
	}

	g.invalidate()
	return nil
}

// RemoveFile removes a file node and cascades to every symbol it defines.
func (g *CodeGraph) RemoveFile(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	file, ok := g.files[id]
	if !ok {
		return ErrNotFound{Kind: "file", ID: id}
	}

	for _, sid := range g.symbolsInFileLocked(id) {
		_ = g.removeSymbolLocked(sid)
	}

	g.removeEdgesTouchingLocked(id)
	delete(g.files, id)
	if langs := g.byLanguage[file.Language]; langs != nil {
		delete(langs, id)
		if len(langs) == 0 {
			delete(g.byLanguage, file.Language)
		}
	}
	_ = g.underlying.RemoveVertex(id)

	g.invalidate()
	return nil
}

// removeEdgesTouchingLocked drops every edge whose source or target is id,
// keeping outgoing/incoming/edges consistent (invariant v).
func (g *CodeGraph) removeEdgesTouchingLocked(id string) {
	for _, e := range g.outgoing[id] {
		delete(g.edges, edgeKey(e))
		g.incoming[e.Target] = removeEdge(g.incoming[e.Target], e)
	}
	delete(g.outgoing, id)

	for _, e := range g.incoming[id] {
		delete(g.edges, edgeKey(e))
		g.outgoing[e.Source] = removeEdge(g.outgoing[e.Source], e)
	}
	delete(g.incoming, id)
}

func removeEdge(edges []Edge, target Edge) []Edge {
	key := edgeKey(target)
	out := edges[:0]
	for _, e := range edges {
		if edgeKey(e) != key {
			out = append(out, e)
		}
	}
	return out
}

// Clear resets the graph to empty.
func (g *CodeGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.symbols = make(map[string]*SymbolNode)
	g.files = make(map[string]*FileNode)
	g.edges = make(map[string]Edge)
	g.outgoing = make(map[string][]Edge)
	g.incoming = make(map[string][]Edge)
	g.byName = make(map[string]map[string]struct{})
	g.byLanguage = make(map[string]map[string]struct{})
	g.underlying = dbgraph.New(func(id string) string { return id }, dbgraph.Directed())
	g.invalidate()
}

// Merge adds every node and edge from other into g. Edges are deduplicated
// by (source, target, kind, location_file); conflicting node metadata favors
// the node already present in g.
func (g *CodeGraph) Merge(other *CodeGraph) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, f := range other.files {
		if _, exists := g.files[id]; !exists {
			cp := *f
			g.files[id] = &cp
			_ = g.underlying.AddVertex(id)
			if g.byLanguage[f.Language] == nil {
				g.byLanguage[f.Language] = make(map[string]struct{})
			}
			g.byLanguage[f.Language][id] = struct{}{}
		}
	}
	for id, s := range other.symbols {
		if _, exists := g.symbols[id]; !exists {
			cp := *s
			g.symbols[id] = &cp
			_ = g.underlying.AddVertex(id)
			if g.byName[s.Name] == nil {
				g.byName[s.Name] = make(map[string]struct{})
			}
			g.byName[s.Name][id] = struct{}{}
		}
	}
	for _, e := range other.edges {
		g.addEdgeLocked(e)
	}

	g.invalidate()
}

// --- Queries ---

// FindSymbolsByName returns every symbol with the given name.
func (g *CodeGraph) FindSymbolsByName(name string) []*SymbolNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.byName[name]
	out := make([]*SymbolNode, 0, len(ids))
	for id := range ids {
		out = append(out, g.symbols[id])
	}
	return out
}

// GetSymbol returns the symbol with the given id, or false if absent.
func (g *CodeGraph) GetSymbol(id string) (*SymbolNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.symbols[id]
	return s, ok
}

// GetFile returns the file with the given id, or false if absent.
func (g *CodeGraph) GetFile(id string) (*FileNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	f, ok := g.files[id]
	return f, ok
}

// SymbolsInFile returns every symbol whose FileID equals fileID.
func (g *CodeGraph) SymbolsInFile(fileID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.symbolsInFileLocked(fileID)
}

func (g *CodeGraph) symbolsInFileLocked(fileID string) []string {
	var out []string
	for _, e := range g.outgoing[fileID] {
		if e.Kind == EdgeDefines {
			out = append(out, e.Target)
		}
	}
	return out
}

// FilesByLanguage returns every file id tagged with the given language.
func (g *CodeGraph) FilesByLanguage(language string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.byLanguage[language]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

// IncomingEdges returns every edge whose target is id.
func (g *CodeGraph) IncomingEdges(target string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.incoming[target]...)
}

// OutgoingEdges returns every edge whose source is id.
func (g *CodeGraph) OutgoingEdges(source string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.outgoing[source]...)
}

// EdgesByKind returns every edge of the given kind.
func (g *CodeGraph) EdgesByKind(kind EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, e := range g.edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// FindCallers returns the ids of symbols with a Calls edge targeting id.
func (g *CodeGraph) FindCallers(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, e := range g.incoming[id] {
		if e.Kind == EdgeCalls {
			out = append(out, e.Source)
		}
	}
	return out
}

// FindCallees returns the ids of symbols id has a Calls edge to.
func (g *CodeGraph) FindCallees(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, e := range g.outgoing[id] {
		if e.Kind == EdgeCalls {
			out = append(out, e.Target)
		}
	}
	return out
}

// FindReferences returns every edge touching id excluding the structural
// Defines/BelongsTo pair.
func (g *CodeGraph) FindReferences(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, e := range g.incoming[id] {
		if e.Kind != EdgeDefines && e.Kind != EdgeBelongsTo {
			out = append(out, e)
		}
	}
	for _, e := range g.outgoing[id] {
		if e.Kind != EdgeDefines && e.Kind != EdgeBelongsTo {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a defensive copy of the graph's nodes and edges, used by
// the storage layer to serialize to disk.
func (g *CodeGraph) Snapshot() ([]*FileNode, []*SymbolNode, []Edge) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	files := make([]*FileNode, 0, len(g.files))
	for _, f := range g.files {
		cp := *f
		files = append(files, &cp)
	}
	symbols := make([]*SymbolNode, 0, len(g.symbols))
	for _, s := range g.symbols {
		cp := *s
		symbols = append(symbols, &cp)
	}
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	return files, symbols, edges
}

// Restore replaces the graph's contents with the given nodes and edges,
// rebuilding every index. Used by the storage layer on load.
func (g *CodeGraph) Restore(files []*FileNode, symbols []*SymbolNode, edges []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.symbols = make(map[string]*SymbolNode, len(symbols))
	g.files = make(map[string]*FileNode, len(files))
	g.edges = make(map[string]Edge, len(edges))
	g.outgoing = make(map[string][]Edge)
	g.incoming = make(map[string][]Edge)
	g.byName = make(map[string]map[string]struct{})
	g.byLanguage = make(map[string]map[string]struct{})
	g.underlying = dbgraph.New(func(id string) string { return id }, dbgraph.Directed())

	for _, f := range files {
		g.files[f.ID] = f
		_ = g.underlying.AddVertex(f.ID)
		if g.byLanguage[f.Language] == nil {
			g.byLanguage[f.Language] = make(map[string]struct{})
		}
		g.byLanguage[f.Language][f.ID] = struct{}{}
	}
	for _, s := range symbols {
		g.symbols[s.ID] = s
		_ = g.underlying.AddVertex(s.ID)
		if g.byName[s.Name] == nil {
			g.byName[s.Name] = make(map[string]struct{})
		}
		g.byName[s.Name][s.ID] = struct{}{}
	}
	for _, e := range edges {
		g.addEdgeLocked(e)
	}

	g.invalidate()
}

// NodeCount and EdgeCount report the current size of the graph.
func (g *CodeGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.symbols) + len(g.files)
}

func (g *CodeGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// underlyingGraph exposes the structural graph.Graph for the traverser's
// shortest_path operation. Not part of the public contract surface.
func (g *CodeGraph) underlyingGraph() dbgraph.Graph[string, string] {
	return g.underlying
}
