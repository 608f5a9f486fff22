package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"examprep/config"
	"examprep/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "examprep",
	Short: "Exam prep retrieval - ingest study material and retrieve context for question generation",
	Long: `examprep ingests books and notes (PDF, text, markdown), splits them into
overlapping chunks, embeds them and keeps them in a local vector store.
Retrieved passages become the context for generating practice questions.

Example usage:
  examprep ingest ./books                    # Ingest every matching file
  examprep search -q "photosynthesis"        # Show the nearest passages
  examprep context -q "cell biology" -k 5    # Build prompt context
  examprep watch ./uploads                   # Ingest new uploads as they land`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := loadEnv(rootDir); err != nil {
			return err
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logger.SetLevel(cfg.Logging.Level); err != nil {
			return err
		}
		if verbose {
			logger.SetVerbose(true)
		}

		return cfg.Validate()
	},
}

// loadEnv reads API keys from a .env file in the project dir. Variables
// already set in the environment win.
func loadEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./examprep.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
