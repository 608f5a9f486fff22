package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"examprep/config"
	"examprep/internal/adapter/chunker"
	"examprep/internal/adapter/extractor"
	"examprep/internal/adapter/fs"
	"examprep/internal/domain"
	"examprep/internal/port"
	"examprep/internal/usecase"
)

var (
	ingestType   string
	ingestSource string
	ingestJSON   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Ingest documents into the vector store",
	Long: `Extract, chunk and embed documents, then store them for retrieval.
Directories are walked using the include and exclude globs from the config.
Re-ingesting a document replaces its previous chunks.

Examples:
  examprep ingest                               # Ingest the project directory
  examprep ingest ./books/biology.pdf --source biology
  examprep ingest ./notes --type notes --json`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestType, "type", "t", "", "document type stored as metadata (default from config)")
	ingestCmd.Flags().StringVarP(&ingestSource, "source", "s", "", "source name (single file only, default is the file name)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the batch report as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()

	if len(args) == 0 {
		args = []string{dir}
	}

	registry := extractor.NewRegistry()
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	paths, err := collectPaths(args, walker, registry)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	if ingestSource != "" && len(paths) > 1 {
		return fmt.Errorf("--source needs exactly one document, got %d", len(paths))
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	sess, err := openStore(cfg, dir, embedder.ModelName())
	if err != nil {
		return err
	}
	defer sess.Close()
	warnModelChange(sess, embedder.ModelName())

	ingestUC := newIngestUseCase(cfg, registry, embedder, sess)

	jobs := make([]usecase.IngestJob, len(paths))
	for i, p := range paths {
		md := domain.Metadata{}
		if ingestSource != "" {
			md[domain.MetaSource] = ingestSource
		}
		if ingestType != "" {
			md[domain.MetaType] = ingestType
		}
		jobs[i] = usecase.IngestJob{Path: p, Metadata: md}
	}

	var progress func(usecase.DocumentReport)
	if !ingestJSON {
		bar := newProgressBar(len(jobs), "[cyan]Ingesting[reset]")
		progress = func(usecase.DocumentReport) {
			bar.Add(1)
		}
	}

	report := ingestUC.IngestAll(cmd.Context(), jobs, progress)

	if ingestJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report, sess.path)
	}

	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(report.Documents))
	}
	return nil
}

func newIngestUseCase(cfg *config.Config, registry *extractor.Registry, embedder port.Embedder, sess *session) *usecase.IngestUseCase {
	return usecase.NewIngestUseCase(
		registry,
		chunker.New(
			chunker.WithChunkSize(cfg.Chunking.ChunkSize),
			chunker.WithOverlap(cfg.Chunking.Overlap),
			chunker.WithSeparators(cfg.Chunking.Separators...),
		),
		embedder,
		sess.store,
		usecase.IngestOptions{
			DefaultType:     cfg.Ingest.DefaultType,
			ReplaceExisting: cfg.Ingest.ReplaceExisting,
			Concurrency:     cfg.Ingest.Concurrency,
		},
	)
}

// collectPaths expands directories with the walker and keeps files given
// explicitly if an extractor handles them.
func collectPaths(args []string, walker port.FileWalker, registry *extractor.Registry) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("path does not exist: %w", err)
		}

		if !info.IsDir() {
			if !registry.Supports(abs) {
				return nil, fmt.Errorf("%s: %w (supported: %v)", arg, domain.ErrUnsupportedFormat, registry.Extensions())
			}
			add(abs)
			continue
		}

		files, err := walker.Walk(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
		for _, f := range files {
			if registry.Supports(f.Path) {
				add(f.Path)
			}
		}
	}

	return paths, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func printReport(report *usecase.BatchReport, storePath string) {
	fmt.Printf("\nIngestion complete (run %s):\n", report.RunID)
	fmt.Printf("  Documents ingested: %d\n", report.Succeeded())
	fmt.Printf("  Documents failed:   %d\n", len(report.Failed()))
	fmt.Printf("  Chunks written:     %d\n", report.TotalChunks())

	for _, d := range report.Documents {
		switch {
		case d.Err != nil:
			fmt.Printf("  ! %s: %s error: %v\n", d.Path, d.Kind, d.Err)
		case d.Empty && d.Removed > 0:
			fmt.Printf("  ? %s: no extractable text, %d earlier chunks removed\n", d.Path, d.Removed)
		case d.Empty:
			fmt.Printf("  ? %s: no extractable text, nothing stored\n", d.Path)
		case len(d.FailedPages) > 0:
			fmt.Printf("  ~ %s: %d chunks, pages without text: %v\n", d.Source, d.Chunks, d.FailedPages)
		}
	}

	fmt.Printf("\nStore: %s\n", storePath)
}
