// Package progress reports indexing stage progress to the terminal.
package progress

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents an indexing stage.
type Stage int

const (
	// StageScanning is the file discovery stage.
	StageScanning Stage = iota
	// StageChunking is the AST chunking stage.
	StageChunking
	// StageContextual is the contextual enrichment stage.
	StageContextual
	// StageEmbedding is the embedding generation stage.
	StageEmbedding
	// StageIndexing is the BM25/vector index build stage.
	StageIndexing
	// StageGraph is the knowledge graph build stage.
	StageGraph
	// StageComplete indicates indexing finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageChunking:
		return "Chunking"
	case StageContextual:
		return "Contextual"
	case StageEmbedding:
		return "Embedding"
	case StageIndexing:
		return "Indexing"
	case StageGraph:
		return "Graph"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag used in plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageChunking:
		return "CHUNK"
	case StageContextual:
		return "CTX"
	case StageEmbedding:
		return "EMBED"
	case StageIndexing:
		return "INDEX"
	case StageGraph:
		return "GRAPH"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// Event represents a progress update within the current stage.
type Event struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents an error or warning encountered while processing a file.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration spent in each indexing stage.
type StageTimings struct {
	Scan    time.Duration
	Chunk   time.Duration
	Context time.Duration
	Embed   time.Duration
	Index   time.Duration
	Graph   time.Duration
}

// EmbedderInfo describes the embedding backend in use.
type EmbedderInfo struct {
	Backend    string
	Model      string
	Dimensions int
}

// CompletionStats summarizes a finished indexing run.
type CompletionStats struct {
	Files    int
	Chunks   int
	Symbols  int
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
	Embedder EmbedderInfo
}

// Reporter receives progress updates during indexing.
// The default implementation writes plain text lines suitable for both
// interactive terminals and CI logs; there is no curses-style renderer.
type Reporter interface {
	Start(ctx context.Context) error
	UpdateProgress(event Event)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a Reporter.
type Config struct {
	Output     io.Writer
	NoColor    bool
	ProjectDir string
}

// NewConfig builds a Config writing to the given output.
func NewConfig(output io.Writer) Config {
	return Config{Output: output, NoColor: DetectNoColor()}
}

// NewReporter returns the plain text progress reporter.
func NewReporter(cfg Config) Reporter {
	return NewPlainReporter(cfg)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
