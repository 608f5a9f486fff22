package cli

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"examprep/internal/adapter/analyzer"
	"examprep/internal/usecase"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var (
	promptSyllabus     string
	promptSyllabusFile string
	promptQuestions    int
	promptTopK         int
	promptAnswers      bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render a question generation prompt with retrieved context",
	Long: `Retrieve study material for a syllabus and render the prompt that asks an
LLM to write exam questions from it. Use --answers to render the answering
prompt for a list of questions instead.

If retrieval fails the prompt is rendered with an empty context and a warning
is printed to stderr.

Examples:
  examprep prompt -s "Cell structure, mitosis, meiosis" -n 10
  examprep prompt --syllabus-file syllabus.txt > prompt.txt
  examprep prompt --answers --syllabus-file questions.txt`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptSyllabus, "syllabus", "s", "", "syllabus text")
	promptCmd.Flags().StringVar(&promptSyllabusFile, "syllabus-file", "", "read the syllabus from a file")
	promptCmd.Flags().IntVarP(&promptQuestions, "num-questions", "n", 5, "number of questions to ask for")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "number of passages (default from config)")
	promptCmd.Flags().BoolVar(&promptAnswers, "answers", false, "render the answering prompt")
	promptCmd.MarkFlagsMutuallyExclusive("syllabus", "syllabus-file")
}

// PromptData is what the prompt templates render.
type PromptData struct {
	Syllabus     string
	Context      string
	NumQuestions int
}

func runPrompt(cmd *cobra.Command, args []string) error {
	syllabus := promptSyllabus
	if promptSyllabusFile != "" {
		data, err := os.ReadFile(promptSyllabusFile)
		if err != nil {
			return fmt.Errorf("failed to read syllabus: %w", err)
		}
		syllabus = string(data)
	}
	if strings.TrimSpace(syllabus) == "" {
		return fmt.Errorf("a syllabus is required (--syllabus or --syllabus-file)")
	}
	if promptQuestions <= 0 {
		return fmt.Errorf("--num-questions must be positive")
	}

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

	topK := cfg.Retrieve.TopK
	if promptTopK > 0 {
		topK = promptTopK
	}

	contextUC := usecase.NewContextUseCase(newRetriever(cfg, sess.store, embedder), analyzer.NewTokenizer(), cfg.Retrieve.ContextTokenBudget)
	pc := contextUC.Build(cmd.Context(), syllabus, topK)
	if pc.Degraded {
		fmt.Fprintf(os.Stderr, "Warning: retrieval failed, prompt has no study material: %s\n", pc.Reason)
	}

	name := "templates/questions_prompt.txt"
	if promptAnswers {
		name = "templates/answers_prompt.txt"
	}

	out, err := renderPrompt(name, PromptData{
		Syllabus:     strings.TrimSpace(syllabus),
		Context:      pc.Text,
		NumQuestions: promptQuestions,
	})
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func renderPrompt(name string, data PromptData) (string, error) {
	tmplContent, err := promptTemplates.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("template not found: %w", err)
	}

	tmpl, err := template.New("prompt").Parse(string(tmplContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
