// Package graphstore persists the knowledge graph (internal/graph) to disk:
// a full graph JSON dump, a file-level incremental index, and periodic
// version snapshots for rollback.
package graphstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/silviusavu/g3index/internal/graph"
)

const (
	graphFileName      = "graph.json"
	fileIndexFileName  = "file_index.json"
	snapshotsDirName   = "snapshots"
	snapshotEveryNth   = 10
	snapshotRetainN    = 10
)

// ScannedSymbol is one symbol reported by the scanner collaborator for a file.
type ScannedSymbol struct {
	Name          string
	Kind          graph.SymbolKind
	LineStart     int
	LineEnd       int
	ColumnStart   int
	ColumnEnd     int
	Signature     string
	Documentation string
	ModulePath    string
	ParentName    string
	Visibility    string
}

// ScannedReference is an inter-file reference emitted by the scanner; it is
// resolved against the name index via CodeGraph.AddReference, which
// tolerates forward references to symbols not yet seen.
type ScannedReference struct {
	SymbolName string
	Kind       graph.EdgeKind
	Line       int
}

// ScannedFile is the per-file record the scan_fn collaborator returns.
type ScannedFile struct {
	Path        string
	Language    string
	LOC         int
	ModifiedAt  int64
	ContentHash string
	Symbols     []ScannedSymbol
	References  []ScannedReference
}

// ScanFunc is the external collaborator the incremental/rebuild algorithms
// call to obtain the current state of the workspace.
type ScanFunc func() ([]ScannedFile, error)

// fileIndexEntry mirrors the stored per-file state used for change detection.
type fileIndexEntry struct {
	ModifiedAt  int64  `json:"modified_at"`
	SymbolCount int    `json:"symbol_count"`
	ContentHash string `json:"content_hash"`
}

// fileIndex is the on-disk companion index (graph/file_index.json).
type fileIndex struct {
	Files       map[string]fileIndexEntry `json:"files"`
	LastUpdated time.Time                 `json:"last_updated"`
	Version     int                       `json:"version"`
}

// graphDoc is the on-disk shape of graph/graph.json.
type graphDoc struct {
	Files   []*graph.FileNode   `json:"files"`
	Symbols []*graph.SymbolNode `json:"symbols"`
	Edges   []graph.Edge        `json:"edges"`
}

// snapshotRecord is one entry under graph/snapshots/v<N>-<epoch>.json: a
// full point-in-time copy of the graph and file index at that version,
// doubling as both the version's metadata and its restorable state.
type snapshotRecord struct {
	Version   int       `json:"version"`
	Epoch     int64     `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
	Graph     graphDoc  `json:"graph"`
	FileIndex fileIndex `json:"file_index"`
}

// Storage owns a CodeGraph and its on-disk persistence under dir.
type Storage struct {
	dir   string
	graph *graph.CodeGraph
	index fileIndex
	dirty bool
}

// Init loads an existing graph+index from dir, or starts empty if none
// exists or either file is corrupt (§7 Integrity: start empty, mark dirty,
// never crash).
func Init(dir string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Join(dir, snapshotsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("creating graph storage dir: %w", err)
	}

	g, err := graph.New()
	if err != nil {
		return nil, fmt.Errorf("creating graph: %w", err)
	}

	s := &Storage{
		dir:   dir,
		graph: g,
		index: fileIndex{Files: make(map[string]fileIndexEntry)},
	}

	doc, ferr := loadGraphDoc(filepath.Join(dir, graphFileName))
	idx, ierr := loadFileIndex(filepath.Join(dir, fileIndexFileName))

	if ferr != nil {
		if !os.IsNotExist(ferr) {
			slog.Warn("graph file corrupt, starting empty", slog.String("error", ferr.Error()))
		}
		s.dirty = true
	}
	if ierr != nil {
		if !os.IsNotExist(ierr) {
			slog.Warn("file index corrupt, starting empty", slog.String("error", ierr.Error()))
		}
		s.dirty = true
	}

	if ferr == nil && doc != nil {
		g.Restore(doc.Files, doc.Symbols, doc.Edges)
	}
	if ierr == nil && idx != nil {
		s.index = *idx
	}

	return s, nil
}

// Graph returns the underlying knowledge graph for direct queries.
func (s *Storage) Graph() *graph.CodeGraph { return s.graph }

func loadGraphDoc(path string) (*graphDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc graphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing graph json: %w", err)
	}
	return &doc, nil
}

func loadFileIndex(path string) (*fileIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx fileIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing file index json: %w", err)
	}
	if idx.Files == nil {
		idx.Files = make(map[string]fileIndexEntry)
	}
	return &idx, nil
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Save writes the graph and file index atomically and bumps the version.
// No-op if the storage isn't dirty. Every tenth version also writes a
// snapshot record, pruning all but the N=10 most recent.
func (s *Storage) Save() error {
	if !s.dirty {
		return nil
	}

	files, symbols, edges := s.graph.Snapshot()
	doc := graphDoc{Files: files, Symbols: symbols, Edges: edges}

	s.index.Version++
	s.index.LastUpdated = time.Now()

	if err := atomicWriteJSON(filepath.Join(s.dir, graphFileName), doc); err != nil {
		return err
	}
	if err := atomicWriteJSON(filepath.Join(s.dir, fileIndexFileName), s.index); err != nil {
		return err
	}

	if s.index.Version%snapshotEveryNth == 0 {
		if err := s.writeSnapshot(doc); err != nil {
			slog.Warn("snapshot write failed", slog.String("error", err.Error()))
		}
	}

	s.dirty = false
	return nil
}

func (s *Storage) writeSnapshot(doc graphDoc) error {
	epoch := time.Now().Unix()
	rec := snapshotRecord{
		Version:   s.index.Version,
		Epoch:     epoch,
		CreatedAt: time.Now(),
		Graph:     doc,
		FileIndex: s.index,
	}
	name := fmt.Sprintf("v%d-%d.json", rec.Version, rec.Epoch)
	path := filepath.Join(s.dir, snapshotsDirName, name)
	if err := atomicWriteJSON(path, rec); err != nil {
		return err
	}
	return s.pruneSnapshots()
}

func (s *Storage) pruneSnapshots() error {
	entries, err := s.listSnapshotFiles()
	if err != nil {
		return err
	}
	if len(entries) <= snapshotRetainN {
		return nil
	}
	// Oldest first; entries are already sorted ascending by version.
	toRemove := entries[:len(entries)-snapshotRetainN]
	for _, e := range toRemove {
		_ = os.Remove(filepath.Join(s.dir, snapshotsDirName, e.name))
	}
	return nil
}

type snapshotFile struct {
	name    string
	version int
}

func (s *Storage) listSnapshotFiles() ([]snapshotFile, error) {
	dir := filepath.Join(s.dir, snapshotsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []snapshotFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var version int
		var epoch int64
		if _, err := fmt.Sscanf(e.Name(), "v%d-%d.json", &version, &epoch); err != nil {
			continue
		}
		out = append(out, snapshotFile{name: e.Name(), version: version})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// ListSnapshots returns the versions of every retained snapshot, ascending.
func (s *Storage) ListSnapshots() ([]int, error) {
	entries, err := s.listSnapshotFiles()
	if err != nil {
		return nil, err
	}
	versions := make([]int, len(entries))
	for i, e := range entries {
		versions[i] = e.version
	}
	return versions, nil
}

// RestoreSnapshot loads the graph from the snapshot at the given version,
// replacing the current in-memory graph and file index.
func (s *Storage) RestoreSnapshot(version int) error {
	entries, err := s.listSnapshotFiles()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.version != version {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, snapshotsDirName, e.name))
		if err != nil {
			return err
		}
		var rec snapshotRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parsing snapshot %d: %w", version, err)
		}
		s.graph.Restore(rec.Graph.Files, rec.Graph.Symbols, rec.Graph.Edges)
		s.index = rec.FileIndex
		s.dirty = true
		return nil
	}
	return fmt.Errorf("snapshot version %d not found", version)
}

// Clear empties the graph and file index and marks the storage dirty.
func (s *Storage) Clear() {
	s.graph.Clear()
	s.index = fileIndex{Files: make(map[string]fileIndexEntry)}
	s.dirty = true
}

// IncrementalUpdate diffs scan() against the stored file index: removed
// files are dropped from the graph, changed files are remove-then-readd,
// unchanged files are skipped entirely. Symbols are added whole; references
// are resolved via AddReference, which tolerates forward references.
func (s *Storage) IncrementalUpdate(scan ScanFunc) error {
	files, err := scan()
	if err != nil {
		return fmt.Errorf("scanning workspace: %w", err)
	}

	current := make(map[string]ScannedFile, len(files))
	for _, f := range files {
		current[f.Path] = f
	}

	for path := range s.index.Files {
		if _, ok := current[path]; !ok {
			_ = s.graph.RemoveFile(path)
			delete(s.index.Files, path)
			s.dirty = true
		}
	}

	for path, f := range current {
		prior, existed := s.index.Files[path]
		changed := !existed || prior.ModifiedAt != f.ModifiedAt || prior.ContentHash != f.ContentHash
		if !changed {
			continue
		}
		if existed {
			_ = s.graph.RemoveFile(path)
		}
		s.applyScannedFile(f)
		s.dirty = true
	}

	return nil
}

// Rebuild discards the current graph and file index and replays every file
// the scanner reports, from scratch.
func (s *Storage) Rebuild(scan ScanFunc) error {
	files, err := scan()
	if err != nil {
		return fmt.Errorf("scanning workspace: %w", err)
	}

	s.graph.Clear()
	s.index = fileIndex{Files: make(map[string]fileIndexEntry)}

	for _, f := range files {
		s.applyScannedFile(f)
	}
	s.dirty = true
	return nil
}

func (s *Storage) applyScannedFile(f ScannedFile) {
	s.graph.AddFile(&graph.FileNode{
		ID:       f.Path,
		Path:     f.Path,
		Language: f.Language,
		LOC:      f.LOC,
	})

	for _, sym := range f.Symbols {
		id := graph.SymbolID(f.Path, sym.Name, sym.LineStart)
		var parentID string
		if sym.ParentName != "" {
			for _, p := range f.Symbols {
				if p.Name == sym.ParentName {
					parentID = graph.SymbolID(f.Path, p.Name, p.LineStart)
					break
				}
			}
		}
		_ = s.graph.AddSymbol(&graph.SymbolNode{
			ID:            id,
			Name:          sym.Name,
			Kind:          sym.Kind,
			FileID:        f.Path,
			LineStart:     sym.LineStart,
			LineEnd:       sym.LineEnd,
			ColumnStart:   sym.ColumnStart,
			ColumnEnd:     sym.ColumnEnd,
			Signature:     sym.Signature,
			Documentation: sym.Documentation,
			ModulePath:    sym.ModulePath,
			ParentID:      parentID,
			Visibility:    sym.Visibility,
		})
	}

	for _, ref := range f.References {
		s.graph.AddReference(f.Path, ref.SymbolName, ref.Kind, ref.Line)
	}

	file, _ := s.graph.GetFile(f.Path)
	symCount := 0
	if file != nil {
		symCount = file.SymbolCount
	}
	s.index.Files[f.Path] = fileIndexEntry{
		ModifiedAt:  f.ModifiedAt,
		SymbolCount: symCount,
		ContentHash: f.ContentHash,
	}
}
