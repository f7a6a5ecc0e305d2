package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ppiankov/peerpanel/internal/store"
)

var (
	runsPaper string
	runsModel string
	runsLimit int
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded review runs",
	Long: `Runs lists the review runs saved to the SQLite store (store.path), newest
first. Runs are recorded when store.enabled is set or --save is passed.

Example:
  peerpanel runs
  peerpanel runs --paper 2401.01234 --model gpt-4o-mini`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVar(&runsPaper, "paper", "", "only runs for this paper id")
	runsCmd.Flags().StringVar(&runsModel, "model", "", "only runs with this model")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 = all)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return fmt.Errorf("no run store at %s", cfg.Store.Path)
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	records, err := s.List(context.Background(), store.ListOptions{
		PaperID: runsPaper,
		Model:   runsModel,
		Limit:   runsLimit,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "No runs recorded\n")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"When", "Paper", "Model", "Config", "S", "W", "Sug", "Failed", "Output"})
	table.SetAutoWrapText(false)
	for _, rec := range records {
		table.Append([]string{
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.PaperID,
			rec.Model,
			rec.ConfigTag,
			strconv.Itoa(rec.Strengths),
			strconv.Itoa(rec.Weaknesses),
			strconv.Itoa(rec.Suggestions),
			rec.FailedFacets,
			rec.OutputDir,
		})
	}
	table.Render()
	return nil
}
