package graph

import (
	"fmt"

	dbgraph "github.com/dominikbraun/graph"
)

// TraverseOptions bounds every traversal operation.
type TraverseOptions struct {
	MaxDepth     int               // 0 means unbounded
	EdgeKinds    map[EdgeKind]bool // nil or empty means follow every kind
	Dedup        bool              // default true in the constructors below
	CollectPaths bool              // find_paths/extract_subgraph path capture
}

// DefaultTraverseOptions returns deduplicating, unbounded-depth, all-edge-kind options.
func DefaultTraverseOptions() TraverseOptions {
	return TraverseOptions{Dedup: true}
}

func (o TraverseOptions) follows(kind EdgeKind) bool {
	if len(o.EdgeKinds) == 0 {
		return true
	}
	return o.EdgeKinds[kind]
}

func (o TraverseOptions) depthAllowed(depth int) bool {
	return o.MaxDepth <= 0 || depth <= o.MaxDepth
}

func (g *CodeGraph) neighbors(id string, opts TraverseOptions) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, e := range g.outgoing[id] {
		if opts.follows(e.Kind) {
			out = append(out, e.Target)
		}
	}
	return out
}

// BFSResult is one node discovered during a bounded breadth-first walk.
type BFSResult struct {
	ID    string
	Depth int
}

// BFS walks breadth-first from start, bounded by opts.MaxDepth and opts.EdgeKinds.
func (g *CodeGraph) BFS(start string, opts TraverseOptions) []BFSResult {
	visited := map[string]bool{start: true}
	queue := []BFSResult{{ID: start, Depth: 0}}
	var out []BFSResult

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)

		if !opts.depthAllowed(cur.Depth + 1) {
			continue
		}
		for _, next := range g.neighbors(cur.ID, opts) {
			if opts.Dedup && visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, BFSResult{ID: next, Depth: cur.Depth + 1})
		}
	}
	return out
}

// DFS walks depth-first from start, bounded by opts.MaxDepth and opts.EdgeKinds.
func (g *CodeGraph) DFS(start string, opts TraverseOptions) []BFSResult {
	visited := make(map[string]bool)
	var out []BFSResult

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if opts.Dedup {
			if visited[id] {
				return
			}
			visited[id] = true
		}
		out = append(out, BFSResult{ID: id, Depth: depth})
		if !opts.depthAllowed(depth + 1) {
			return
		}
		for _, next := range g.neighbors(id, opts) {
			walk(next, depth+1)
		}
	}
	walk(start, 0)
	return out
}

// ShortestPath returns the shortest path from start to end over the
// structural graph, or an error if no path exists.
func (g *CodeGraph) ShortestPath(start, end string) ([]string, error) {
	g.mu.RLock()
	u := g.underlying
	g.mu.RUnlock()
	return dbgraph.ShortestPath(u, start, end)
}

// HasPath reports whether any path exists from start to end following the
// given edge kinds (BFS reachability, not shortest-path).
func (g *CodeGraph) HasPath(start, end string, opts TraverseOptions) bool {
	for _, r := range g.BFS(start, opts) {
		if r.ID == end {
			return true
		}
	}
	return false
}

// FindPaths enumerates up to maxPaths distinct simple paths from start to end.
func (g *CodeGraph) FindPaths(start, end string, maxPaths int, opts TraverseOptions) [][]string {
	var paths [][]string
	visited := map[string]bool{start: true}
	path := []string{start}

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if len(paths) >= maxPaths {
			return
		}
		if id == end {
			cp := append([]string(nil), path...)
			paths = append(paths, cp)
			return
		}
		if !opts.depthAllowed(depth + 1) {
			return
		}
		for _, next := range g.neighbors(id, opts) {
			if visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, next)
			walk(next, depth+1)
			path = path[:len(path)-1]
			visited[next] = false
			if len(paths) >= maxPaths {
				return
			}
		}
	}
	walk(start, 0)
	return paths
}

// ReachableNodes returns every node reachable from start, bounded by opts.
func (g *CodeGraph) ReachableNodes(start string, opts TraverseOptions) []string {
	results := g.BFS(start, opts)
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.ID != start {
			out = append(out, r.ID)
		}
	}
	return out
}

// ExtractSubgraph returns the set of nodes and edges within maxDistance hops
// of start.
func (g *CodeGraph) ExtractSubgraph(start string, maxDistance int) ([]string, []Edge) {
	opts := TraverseOptions{MaxDepth: maxDistance, Dedup: true}
	results := g.BFS(start, opts)

	nodeSet := make(map[string]bool, len(results))
	for _, r := range results {
		nodeSet[r.ID] = true
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	var edges []Edge
	for id := range nodeSet {
		for _, e := range g.outgoing[id] {
			if nodeSet[e.Target] {
				edges = append(edges, e)
			}
		}
	}

	nodes := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodes = append(nodes, id)
	}
	return nodes, edges
}

// cycleColor is the classic white/gray/black DFS coloring for cycle detection.
type cycleColor int

const (
	white cycleColor = iota
	gray
	black
)

// DetectCycles runs a white/gray/black DFS from start and returns every
// cycle found as the path slice from the revisited gray node onward,
// closed by repeating that node.
func (g *CodeGraph) DetectCycles(start string, opts TraverseOptions) [][]string {
	color := make(map[string]cycleColor)
	var path []string
	var cycles [][]string

	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		color[id] = gray
		path = append(path, id)

		if opts.depthAllowed(depth + 1) {
			for _, next := range g.neighbors(id, opts) {
				switch color[next] {
				case white:
					visit(next, depth+1)
				case gray:
					// Back-edge to an ancestor: emit the cycle from that
					// ancestor onward, closed by repeating it.
					for i, n := range path {
						if n == next {
							cycle := append([]string(nil), path[i:]...)
							cycle = append(cycle, next)
							cycles = append(cycles, cycle)
							break
						}
					}
				case black:
					// Cross/forward edge, not a cycle.
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
	}

	visit(start, 0)
	return cycles
}

// ErrUnknownQueryType is returned by callers dispatching on a traversal
// query type string they don't recognize (used by the unified façade).
type ErrUnknownQueryType struct {
	QueryType string
}

func (e ErrUnknownQueryType) Error() string {
	return fmt.Sprintf("unknown graph query type: %q", e.QueryType)
}
