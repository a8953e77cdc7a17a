package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/silviusavu/g3index/internal/config"
	"github.com/silviusavu/g3index/internal/scanner"
	"github.com/silviusavu/g3index/internal/store"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the BM25, semantic, and graph indexes for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runIndex(cmd.Context(), dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reindex every file even if the manifest says it is current")
	return cmd
}

func runIndex(ctx context.Context, dir string, force bool) error {
	proj, err := openProject(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = proj.Close() }()

	if force {
		proj.Manifest.Clear()
	}

	projectType := config.DetectProjectType(proj.Root)
	projectID := projectIDFor(proj.Root)
	if err := proj.Metadata.SaveProject(ctx, &store.Project{
		ID:          projectID,
		Name:        filepath.Base(proj.Root),
		RootPath:    proj.Root,
		ProjectType: string(projectType),
		IndexedAt:   time.Now(),
		Version:     fmt.Sprintf("%d", store.CurrentSchemaVersion),
	}); err != nil {
		return fmt.Errorf("saving project record: %w", err)
	}

	coordinator := proj.newCoordinator(projectID)

	scanResults, err := proj.Scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          proj.Root,
		ExcludePatterns:  proj.Config.Paths.Exclude,
		IncludePatterns:  proj.Config.Paths.Include,
		RespectGitignore: true,
	})
	if err != nil {
		return fmt.Errorf("scanning project: %w", err)
	}

	seen := make(map[string]bool)
	var indexed, skipped, failed int
	for result := range scanResults {
		if result.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "scan error: %v\n", result.Error)
			continue
		}

		seen[result.File.Path] = true

		hash, err := hashFile(result.File.AbsPath)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "hashing %s: %v\n", result.File.Path, err)
			continue
		}

		if !force && !proj.Manifest.NeedsUpdate(result.File.Path, hash) {
			skipped++
			continue
		}

		if err := coordinator.IndexFile(ctx, result.File.Path); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "indexing %s: %v\n", result.File.Path, err)
			continue
		}

		proj.Manifest.RecordIndexed(result.File.Path, hash, nil)
		indexed++
	}

	var deleted []string
	for _, path := range proj.Manifest.Paths() {
		if !seen[path] {
			deleted = append(deleted, path)
		}
	}
	for _, path := range deleted {
		if err := coordinator.RemoveFile(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "removing %s: %v\n", path, err)
			continue
		}
		proj.Manifest.RemoveFile(path)
	}

	if err := proj.Metadata.RefreshProjectStats(ctx, projectID); err != nil {
		return fmt.Errorf("refreshing project stats: %w", err)
	}

	fmt.Printf("indexed %d files, skipped %d unchanged, %d removed, %d failed\n", indexed, skipped, len(deleted), failed)
	return nil
}

func projectIDFor(rootPath string) string {
	sum := sha256.Sum256([]byte(rootPath))
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
