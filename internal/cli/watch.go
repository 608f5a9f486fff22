package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"examprep/internal/adapter/extractor"
	"examprep/internal/adapter/fs"
	"examprep/internal/domain"
	"examprep/internal/logger"
	"examprep/internal/usecase"
)

var (
	watchType     string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest documents as they appear in a directory",
	Long: `Watch a directory (the project directory by default) and ingest matching
documents when they are created or modified. Removing a file removes its
chunks. Each document is stored under its path relative to the watched
directory, so files with the same name in different folders stay apart.
Runs until interrupted.

Examples:
  examprep watch ./uploads
  examprep watch ./uploads --type notes --debounce 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchType, "type", "t", "", "document type stored as metadata (default from config)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", fs.DefaultDebounce, "quiet period before a changed file is ingested")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	dir := GetRootDir()
	if len(args) > 0 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	sess, err := openStore(cfg, GetRootDir(), embedder.ModelName())
	if err != nil {
		return err
	}
	defer sess.Close()
	warnModelChange(sess, embedder.ModelName())

	registry := extractor.NewRegistry()
	ingestUC := newIngestUseCase(cfg, registry, embedder, sess)

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	watcher, err := fs.NewWatcher(dir, walker, watchDebounce)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	for change := range changes {
		if !registry.Supports(change.Path) {
			continue
		}
		handleChange(ctx, ingestUC, sess, dir, change)
	}

	fmt.Println("Stopped.")
	return nil
}

// watchSource names a watched document by its slash-separated path
// relative to root.
func watchSource(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func handleChange(ctx context.Context, ingestUC *usecase.IngestUseCase, sess *session, root string, change fs.Change) {
	source := watchSource(root, change.Path)

	if change.Type == fs.ChangeRemoved {
		n, err := sess.store.DeleteSource(ctx, source)
		if err != nil {
			logger.Error("failed to remove document", "source", source, "err", err)
			return
		}
		fmt.Printf("- %s (%d chunks removed)\n", source, n)
		return
	}

	md := domain.Metadata{domain.MetaSource: source}
	if watchType != "" {
		md[domain.MetaType] = watchType
	}

	res, err := ingestUC.Ingest(ctx, change.Path, md)
	if err != nil {
		logger.Error("failed to ingest document", "path", change.Path, "kind", domain.Kind(err), "err", err)
		return
	}
	if res.Empty {
		fmt.Printf("? %s has no extractable text\n", source)
		return
	}
	fmt.Printf("+ %s (%s, %d chunks, %s)\n", source, change.Type, res.Chunks, formatDuration(res.Duration))
}
