package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"examprep/internal/adapter/analyzer"
	"examprep/internal/usecase"
)

var (
	contextQuery  string
	contextTopK   int
	contextBudget int
	contextJSON   bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Build prompt context for question generation",
	Long: `Retrieve passages for a syllabus or topic and join them into the context
block handed to a question generation prompt. If retrieval fails the context
is empty and flagged as degraded instead of failing the command.

Examples:
  examprep context -q "Unit 3: cell respiration and photosynthesis"
  examprep context -q "world war one" -k 8 -b 2000`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().StringVarP(&contextQuery, "query", "q", "", "syllabus or topic text (required)")
	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "k", 0, "number of passages (default from config)")
	contextCmd.Flags().IntVarP(&contextBudget, "budget", "b", -1, "token budget, 0 for unbounded (default from config)")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "output as JSON")
	contextCmd.MarkFlagRequired("query")
}

func runContext(cmd *cobra.Command, args []string) error {
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

	budget := cfg.Retrieve.ContextTokenBudget
	if contextBudget >= 0 {
		budget = contextBudget
	}
	topK := cfg.Retrieve.TopK
	if contextTopK > 0 {
		topK = contextTopK
	}

	contextUC := usecase.NewContextUseCase(newRetriever(cfg, sess.store, embedder), analyzer.NewTokenizer(), budget)
	pc := contextUC.Build(cmd.Context(), contextQuery, topK)

	if contextJSON {
		output, _ := json.MarshalIndent(pc, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if pc.Degraded {
		fmt.Fprintf(os.Stderr, "Warning: retrieval failed, context is empty: %s\n", pc.Reason)
	}
	fmt.Println(pc.Text)
	fmt.Fprintf(os.Stderr, "\n%d passages, ~%d tokens\n", len(pc.Passages), pc.UsedTokens)

	return nil
}
