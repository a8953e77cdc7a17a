package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/silviusavu/g3index/internal/indexsvc"
	"github.com/silviusavu/g3index/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a project for changes and keep the index current",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runWatch(cmd.Context(), dir)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, dir string) error {
	proj, err := openProject(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = proj.Close() }()

	projectID := projectIDFor(proj.Root)
	coordinator := proj.newCoordinator(projectID)

	opts := watcher.DefaultOptions()
	opts.IgnorePatterns = []string{dataDirName + "/", dataDirName + "/**"}
	w, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Start(ctx, proj.Root); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	events := make(chan watcher.FileEvent)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-w.Events():
				if !ok {
					return
				}
				for _, ev := range batch {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	go func() {
		for err := range w.Errors() {
			slog.Error("watcher error", slog.String("error", err.Error()))
		}
	}()

	svc := indexsvc.New(coordinator, slog.Default())

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("watching %s (ctrl-c to stop)\n", proj.Root)
	svc.Run(sigCtx, events)
	return nil
}
