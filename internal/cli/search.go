package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"examprep/internal/usecase"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search ingested documents",
	Long: `Embed the query and return the nearest stored chunks, most relevant first.

Examples:
  examprep search -q "photosynthesis"
  examprep search -q "french revolution causes" -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

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

	retrieveUC := usecase.NewRetrieveUseCase(newRetriever(cfg, sess.store, embedder), cfg.Retrieve.TopK)

	results, err := retrieveUC.Retrieve(cmd.Context(), searchText, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (%s, distance: %.4f) ---\n", i+1, r.ID, r.Metadata.Type(), r.Distance)
		text := r.Text
		if runes := []rune(text); len(runes) > 500 {
			text = string(runes[:500]) + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
