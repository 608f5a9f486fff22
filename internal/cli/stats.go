package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"examprep/internal/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Long: `Show the collection schema (dimension, metric, model) and per-document
chunk counts.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

type statsOutput struct {
	Store      string                 `json:"store"`
	Collection domain.CollectionInfo  `json:"collection"`
	Sources    []domain.SourceSummary `json:"sources"`
	Rebuild    string                 `json:"rebuild,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	sess, err := openStore(cfg, GetRootDir(), modelName(cfg))
	if err != nil {
		return err
	}
	defer sess.Close()

	out := statsOutput{
		Store:      sess.path,
		Collection: sess.store.Info(),
		Sources:    sess.store.Sources(),
	}
	if sess.collection != nil {
		if check := sess.collection.CheckModel(modelName(cfg)); check.NeedsRebuild {
			out.Rebuild = check.Reason
		}
	}

	if statsJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	info := out.Collection
	fmt.Printf("Store:      %s\n", out.Store)
	fmt.Printf("Collection: %s\n", info.Name)
	fmt.Printf("Chunks:     %d\n", info.Count)
	fmt.Printf("Metric:     %s\n", info.Metric)
	if info.Bound() {
		fmt.Printf("Dimension:  %d\n", info.Dimension)
		fmt.Printf("Model:      %s\n", info.Model)
		fmt.Printf("Created:    %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Dimension:  (not bound yet)")
	}
	if out.Rebuild != "" {
		fmt.Printf("\nWarning: %s\n", out.Rebuild)
	}

	if len(out.Sources) > 0 {
		fmt.Println("\nDocuments:")
		for _, s := range out.Sources {
			fmt.Printf("  %-40s %6d chunks\n", s.Source, s.Chunks)
		}
	}

	return nil
}
