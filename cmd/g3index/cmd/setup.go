package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/silviusavu/g3index/internal/chunk"
	"github.com/silviusavu/g3index/internal/config"
	"github.com/silviusavu/g3index/internal/embed"
	"github.com/silviusavu/g3index/internal/graphstore"
	"github.com/silviusavu/g3index/internal/index"
	"github.com/silviusavu/g3index/internal/scanner"
	"github.com/silviusavu/g3index/internal/search"
	"github.com/silviusavu/g3index/internal/store"
)

const dataDirName = ".g3-index"

// project bundles everything a subcommand needs: the resolved project root,
// its data directory, and the stores/engine built from them.
type project struct {
	Root     string
	DataDir  string
	Config   *config.Config
	Metadata *store.SQLiteStore
	BM25     store.BM25Index
	Vector   store.VectorStore
	Manifest *store.Manifest
	Graph    *graphstore.Storage
	Engine   *search.Engine
	Scanner  *scanner.Scanner
}

// openProject resolves the project root from dir, loads configuration, and
// opens every on-disk store. Callers must call Close when done.
func openProject(ctx context.Context, dir string) (*project, error) {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		root = dir
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	dataDir := filepath.Join(root, dataDirName)

	metadata, err := store.NewSQLiteStore(filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	bm25, err := store.NewBM25IndexWithBackend(filepath.Join(dataDir, "bm25"), store.DefaultBM25Config(), string(store.BM25BackendOkapi))
	if err != nil {
		_ = metadata.Close()
		return nil, fmt.Errorf("opening bm25 index: %w", err)
	}

	dims := cfg.Embeddings.Dimensions
	if dims == 0 {
		dims = 768
	}
	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vector.Load(vectorPath); err != nil {
			_ = metadata.Close()
			_ = bm25.Close()
			return nil, fmt.Errorf("loading vector store: %w", err)
		}
	}

	manifest := store.NewManifest()
	_ = manifest.Load(filepath.Join(dataDir, "manifest.json"))

	graphStorage, err := graphstore.Init(filepath.Join(dataDir, "graph"))
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, fmt.Errorf("opening graph store: %w", err)
	}

	embedder, err := embed.NewDefaultEmbedder(ctx)
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	engine, err := search.NewEngine(bm25, vector, embedder, metadata, search.DefaultConfig())
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, fmt.Errorf("creating search engine: %w", err)
	}

	sc, err := scanner.New()
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		return nil, fmt.Errorf("creating scanner: %w", err)
	}

	return &project{
		Root:     root,
		DataDir:  dataDir,
		Config:   cfg,
		Metadata: metadata,
		BM25:     bm25,
		Vector:   vector,
		Manifest: manifest,
		Graph:    graphStorage,
		Engine:   engine,
		Scanner:  sc,
	}, nil
}

// Close persists every mutable store and releases resources.
func (p *project) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(p.Manifest.Save(filepath.Join(p.DataDir, "manifest.json")))
	record(p.Graph.Save())
	record(p.BM25.Save(filepath.Join(p.DataDir, "bm25")))
	record(p.Vector.Save(filepath.Join(p.DataDir, "vectors.hnsw")))
	record(p.Engine.Close())
	record(p.Metadata.Close())
	return firstErr
}

// newCoordinator builds an index.Coordinator over the opened project,
// suitable for driving indexsvc.Service or the one-shot index command.
func (p *project) newCoordinator(projectID string) *index.Coordinator {
	return index.NewCoordinator(index.CoordinatorConfig{
		ProjectID:       projectID,
		RootPath:        p.Root,
		DataDir:         p.DataDir,
		Engine:          p.Engine,
		Metadata:        p.Metadata,
		CodeChunker:     chunk.NewCodeChunker(),
		MDChunker:       chunk.NewMarkdownChunker(),
		Scanner:         p.Scanner,
		ExcludePatterns: p.Config.Paths.Exclude,
	})
}
