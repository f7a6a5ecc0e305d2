package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/peerpanel/internal/llm"
)

var checkOpts runFlags

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured LLM provider is reachable",
	Long: `Check builds the configured provider and probes it once. Use it to
verify API keys and endpoints before a long batch.

Example:
  peerpanel check
  peerpanel check --provider ollama --model llama3:8b`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkOpts.provider, "provider", "", "LLM provider (openai, anthropic, gemini, ollama, mock)")
	checkCmd.Flags().StringVar(&checkOpts.modelName, "model", "", "LLM model name")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	checkOpts.apply(cmd, cfg)
	if err := finishConfig(cfg); err != nil {
		return err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !provider.IsAvailable(ctx) {
		fmt.Fprintf(os.Stderr, "✗ %s (%s) is not reachable\n", provider.Name(), cfg.LLM.Model)
		return fmt.Errorf("provider %s unavailable", provider.Name())
	}
	fmt.Fprintf(os.Stderr, "✓ %s (%s) is reachable\n", provider.Name(), cfg.LLM.Model)
	return nil
}
