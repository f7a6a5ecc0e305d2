package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/pipeline"
	"github.com/ppiankov/peerpanel/internal/store"
)

var reviewOpts runFlags

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review <paper.json>",
	Short: "Review one paper",
	Long: `Review runs the full panel on one paper:
- Route paper text to each facet reviewer
- Run the reviewer agents concurrently
- Merge points and drop ungrounded ones
- Generate and verify an author rebuttal
- Revise the review and write the run folder

Example:
  peerpanel review paper.json
  peerpanel review paper.json --routing span --merge simple
  peerpanel review paper.json --provider ollama --model llama3:8b --skip-related`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewOpts.register(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reviewOpts.apply(cmd, cfg)
	if err := finishConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := newRunner(cfg, reviewOpts.relatedFile)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(os.Stderr, "⚙️  Reviewing %s with %s/%s (%s)...\n", args[0], cfg.LLM.Provider, cfg.LLM.Model, cfg.RunTag())

	res, dir, err := r.reviewFile(ctx, args[0])
	if errors.Is(err, pipeline.ErrRunExists) {
		fmt.Fprintf(os.Stderr, "↷ Skipped: %v (use --force to overwrite)\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	printResult(res, dir)
	return nil
}

// runner reviews paper files and persists their outputs
type runner struct {
	cfg      *model.Config
	pipeline *pipeline.Pipeline
	renderer *pipeline.Renderer
	store    store.Store
}

func newRunner(cfg *model.Config, relatedFile string) (*runner, error) {
	p, err := pipeline.Build(cfg, pipeline.BuildOptions{RelatedFile: relatedFile, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	r := &runner{
		cfg:      cfg,
		pipeline: p,
		renderer: pipeline.NewRenderer(cfg),
	}
	if cfg.Store.Enabled {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		r.store = s
	}
	return r, nil
}

// reviewFile loads, reviews and renders one paper. An existing run yields an
// error wrapping pipeline.ErrRunExists.
func (r *runner) reviewFile(ctx context.Context, path string) (*pipeline.Result, string, error) {
	paper, err := pipeline.LoadPaper(path)
	if err != nil {
		return nil, "", err
	}
	if err := r.renderer.Check(paper.ID); err != nil {
		return nil, "", err
	}

	res, err := r.pipeline.ReviewPaper(ctx, paper)
	if err != nil {
		return nil, "", fmt.Errorf("review %s: %w", paper.ID, err)
	}
	dir, err := r.renderer.Render(res)
	if err != nil {
		return nil, "", fmt.Errorf("render %s: %w", paper.ID, err)
	}

	if r.store != nil {
		if err := r.save(ctx, res, dir); err != nil {
			// The run folder is already on disk
			logger.Warn("failed to record run", zap.String("paper", paper.ID), zap.Error(err))
		}
	}
	return res, dir, nil
}

func (r *runner) save(ctx context.Context, res *pipeline.Result, dir string) error {
	rec, err := store.NewRecord(res.Paper, r.cfg.LLM.Model, r.cfg.RunTag(), res.Final())
	if err != nil {
		return err
	}
	rec.Merger = res.Merger
	rec.Dropped = res.Stats.DroppedUngrounded
	rec.Revisions = res.Stats.Revisions
	rec.OutputDir = dir
	rec.SetFailedFacets(res.Stats.FailedFacets)
	return r.store.Save(ctx, rec)
}

func (r *runner) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

func printResult(res *pipeline.Result, dir string) {
	final := res.Final()
	st := res.Stats

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Review Complete: %s\n", res.Paper.ID)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Facets:       %d routed, %d failed\n", len(st.RoutedFacets), len(st.FailedFacets))
	fmt.Fprintf(os.Stderr, "  Points:       %d raw → %d merged (%d ungrounded dropped)\n", st.RawPoints, st.MergedPoints, st.DroppedUngrounded)
	fmt.Fprintf(os.Stderr, "  Review:       %d strengths, %d weaknesses, %d suggestions\n", len(final.Strengths), len(final.Weaknesses), len(final.Suggestions))
	if res.Rebuttal != nil {
		fmt.Fprintf(os.Stderr, "  Rebuttal:     %d entries, %d fallbacks, %d revisions\n", len(res.Verifications), st.RebuttalFallbacks, st.Revisions)
	}
	if final.Overall != nil {
		fmt.Fprintf(os.Stderr, "  Overall:      %d\n", *final.Overall)
	}
	fmt.Fprintf(os.Stderr, "  LLM calls:    %d (%d failed, ~%d tokens)\n", st.Usage.Calls, st.Usage.Failures, st.Usage.PromptTokens+st.Usage.OutputTokens)
	fmt.Fprintf(os.Stderr, "  Duration:     %v\n", st.Duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", dir)
	fmt.Fprintf(os.Stderr, "\n")

	for _, f := range st.FailedFacets {
		fmt.Fprintf(os.Stderr, "✗ %s reviewer failed\n", f)
	}
}
