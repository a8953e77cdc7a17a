// Package indexsvc connects the file watcher to the indexer: it consumes
// watcher.FileEvent values and drives index_file/remove_file accordingly,
// logging and continuing on error rather than aborting the loop.
package indexsvc

import (
	"context"
	"log/slog"

	"github.com/silviusavu/g3index/internal/watcher"
)

// Indexer is the minimal surface the service needs from the indexer (C6).
// Kept separate from index.Coordinator so this service can be driven by any
// implementation, including a fake in tests.
type Indexer interface {
	IndexFile(ctx context.Context, path string) error
	RemoveFile(ctx context.Context, path string) error
}

// Service dispatches watcher events to an Indexer: Created/Modified ->
// index_file, Deleted -> remove_file, Renamed(old, new) -> remove_file(old)
// then index_file(new).
type Service struct {
	indexer Indexer
	logger  *slog.Logger
}

// New constructs a Service over indexer. A nil logger uses slog.Default.
func New(indexer Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{indexer: indexer, logger: logger}
}

// Run consumes events until the channel closes or ctx is canceled. Each
// event's error is logged, never fatal to the loop.
func (s *Service) Run(ctx context.Context, events <-chan watcher.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Service) handle(ctx context.Context, ev watcher.FileEvent) {
	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if err := s.indexer.IndexFile(ctx, ev.Path); err != nil {
			s.logger.Error("index_file failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		}

	case watcher.OpDelete:
		if err := s.indexer.RemoveFile(ctx, ev.Path); err != nil {
			s.logger.Error("remove_file failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		}

	case watcher.OpRename:
		if err := s.indexer.RemoveFile(ctx, ev.OldPath); err != nil {
			s.logger.Error("remove_file failed during rename", slog.String("path", ev.OldPath), slog.String("error", err.Error()))
		}
		if err := s.indexer.IndexFile(ctx, ev.Path); err != nil {
			s.logger.Error("index_file failed during rename", slog.String("path", ev.Path), slog.String("error", err.Error()))
		}

	case watcher.OpGitignoreChange, watcher.OpConfigChange:
		// Reconciliation is the coordinator's concern; this driver only
		// handles the four-event indexing contract.

	default:
		s.logger.Warn("unhandled watcher operation", slog.String("op", ev.Operation.String()))
	}
}
