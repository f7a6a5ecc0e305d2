package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/pipeline"
	"github.com/ppiankov/peerpanel/internal/worker"
)

var (
	batchOpts        runFlags
	batchConcurrency int
	batchDelay       time.Duration
	batchTimeout     time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list-file>",
	Short: "Review many papers",
	Long: `Batch reviews every paper JSON in a directory, or every path listed in a
file (one per line, '#' comments allowed). Papers run with bounded
concurrency and an optional delay between starts. A failing paper never
stops the others; papers with an existing run are skipped unless --force.

Example:
  peerpanel batch ./papers
  peerpanel batch papers.txt --concurrency 3 --delay 2s
  peerpanel batch ./papers --provider mock --skip-related --out ./runs`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchOpts.register(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "papers reviewed at once (default: batch.concurrency)")
	batchCmd.Flags().DurationVar(&batchDelay, "delay", 0, "minimum delay between paper starts (default: batch.delay)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "total timeout for the batch (0 = none)")
}

// batchOutcome is what one paper produced
type batchOutcome struct {
	result *pipeline.Result
	dir    string
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	batchOpts.apply(cmd, cfg)
	if cmd.Flags().Changed("concurrency") {
		cfg.Batch.Concurrency = batchConcurrency
	}
	if cmd.Flags().Changed("delay") {
		cfg.Batch.Delay = batchDelay
	}
	if err := finishConfig(cfg); err != nil {
		return err
	}

	inputs, err := pipeline.ListPapers(args[0])
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no papers found in %s", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, batchTimeout)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  peerpanel Batch Review\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s (%d papers)\n", args[0], len(inputs))
	fmt.Fprintf(os.Stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Config:       %s\n", cfg.RunTag())
	fmt.Fprintf(os.Stderr, "  Concurrency:  %d\n", max(cfg.Batch.Concurrency, 1))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	r, err := newRunner(cfg, batchOpts.relatedFile)
	if err != nil {
		return err
	}
	defer r.Close()

	processor := worker.ProcessorFunc[batchOutcome](func(ctx context.Context, path string) (batchOutcome, error) {
		res, dir, err := r.reviewFile(ctx, path)
		switch {
		case errors.Is(err, pipeline.ErrRunExists):
			fmt.Fprintf(os.Stderr, "↷ %s: already reviewed\n", path)
		case err != nil:
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
		default:
			fmt.Fprintf(os.Stderr, "✓ %s → %s\n", res.Paper.ID, dir)
		}
		return batchOutcome{result: res, dir: dir}, err
	})

	results := worker.NewBatchProcessor[batchOutcome](processor, cfg.Batch.Concurrency, cfg.Batch.Delay).Process(ctx, inputs)

	summary := summarizeBatch(results)
	fmt.Fprintf(os.Stderr, "\n")
	renderBatchTable(os.Stdout, results)
	fmt.Fprintf(os.Stderr, "\n  Total: %d  %s  %s  %s\n\n",
		len(results),
		color.GreenString("Reviewed: %d", summary.ok),
		color.YellowString("Skipped: %d", summary.skipped),
		color.RedString("Failed: %d", summary.failed),
	)

	u := r.pipeline.Usage()
	logger.Info("batch complete",
		zap.Int("reviewed", summary.ok),
		zap.Int("skipped", summary.skipped),
		zap.Int("failed", summary.failed),
		zap.Int64("llm_calls", u.Calls),
	)
	fmt.Fprintf(os.Stderr, "  LLM calls: %d (%d failed)\n\n", u.Calls, u.Failures)

	if summary.failed > 0 && summary.failed == len(results) {
		return fmt.Errorf("all %d papers failed", summary.failed)
	}
	return nil
}

type batchSummary struct {
	ok      int
	skipped int
	failed  int
}

func summarizeBatch(results []*worker.ItemResult[batchOutcome]) batchSummary {
	var s batchSummary
	for _, res := range results {
		switch {
		case res.Error == nil:
			s.ok++
		case errors.Is(res.Error, pipeline.ErrRunExists):
			s.skipped++
		default:
			s.failed++
		}
	}
	return s
}

// renderBatchTable prints one row per paper in input order
func renderBatchTable(w io.Writer, results []*worker.ItemResult[batchOutcome]) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Paper", "Status", "S", "W", "Sug", "Dropped", "Revised", "Time"})
	table.SetAutoWrapText(false)

	for _, res := range results {
		row := []string{res.Input, "", "-", "-", "-", "-", "-", res.Duration.Round(time.Second).String()}
		statusColor := tablewriter.FgHiGreenColor
		switch {
		case errors.Is(res.Error, pipeline.ErrRunExists):
			row[1] = "skipped"
			statusColor = tablewriter.FgHiYellowColor
		case res.Error != nil:
			row[1] = "failed"
			statusColor = tablewriter.FgHiRedColor
		default:
			final := res.Value.result.Final()
			row[0] = res.Value.result.Paper.ID
			row[1] = "ok"
			row[2] = strconv.Itoa(len(final.Strengths))
			row[3] = strconv.Itoa(len(final.Weaknesses))
			row[4] = strconv.Itoa(len(final.Suggestions))
			row[5] = strconv.Itoa(res.Value.result.Stats.DroppedUngrounded)
			row[6] = strconv.Itoa(res.Value.result.Stats.Revisions)
		}
		table.Rich(row, []tablewriter.Colors{
			{},
			{statusColor, tablewriter.Bold},
		})
	}
	table.Render()
}
