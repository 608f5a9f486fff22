package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	purgeSource string
	purgeAll    bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove documents from the vector store",
	Long: `Remove every chunk of one document, or clear the whole collection.
Clearing also unbinds the embedding dimension so a different model can be used.

Examples:
  examprep purge --source biology.pdf
  examprep purge --all`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().StringVarP(&purgeSource, "source", "s", "", "document source to remove")
	purgeCmd.Flags().BoolVar(&purgeAll, "all", false, "remove every document and reset the collection schema")
	purgeCmd.MarkFlagsMutuallyExclusive("source", "all")
}

func runPurge(cmd *cobra.Command, args []string) error {
	if purgeSource == "" && !purgeAll {
		return fmt.Errorf("either --source or --all is required")
	}

	cfg := GetConfig()
	sess, err := openStore(cfg, GetRootDir(), modelName(cfg))
	if err != nil {
		return err
	}
	defer sess.Close()

	if purgeAll {
		if sess.collection == nil {
			fmt.Println("Memory backend holds nothing between runs.")
			return nil
		}
		n := sess.store.Count()
		if err := sess.collection.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
		fmt.Printf("Removed %d chunks from %s\n", n, cfg.Store.Collection)
		return nil
	}

	n, err := sess.store.DeleteSource(cmd.Context(), purgeSource)
	if err != nil {
		return fmt.Errorf("failed to purge %s: %w", purgeSource, err)
	}
	if n == 0 {
		fmt.Printf("No chunks found for %s\n", purgeSource)
		return nil
	}
	fmt.Printf("Removed %d chunks of %s\n", n, purgeSource)
	return nil
}
