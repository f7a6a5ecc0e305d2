package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/peerpanel/internal/model"
)

// runFlags are the pipeline overrides shared by review and batch
type runFlags struct {
	provider      string
	modelName     string
	routing       string
	merge         string
	verifyMode    string
	rebuttalMode  string
	outDir        string
	relatedFile   string
	force         bool
	skipRebuttal  bool
	skipRelated   bool
	noGrounding   bool
	noCache       bool
	noMarkdown    bool
	saveRun       bool
	fallbackMerge bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.provider, "provider", "", "LLM provider (openai, anthropic, gemini, ollama, mock)")
	fs.StringVar(&f.modelName, "model", "", "LLM model name")
	fs.StringVar(&f.routing, "routing", "", "routing strategy (section, span, all)")
	fs.StringVar(&f.merge, "merge", "", "merge strategy (synthesis, simple)")
	fs.StringVar(&f.verifyMode, "verify", "", "rebuttal verification (llm, keyword)")
	fs.StringVar(&f.rebuttalMode, "rebuttal-mode", "", "rebuttal shape (per_point, consolidated)")
	fs.StringVar(&f.outDir, "out", "", "output directory for run folders")
	fs.StringVar(&f.relatedFile, "related-file", "", "JSON list of related papers to use instead of Crossref")
	fs.BoolVar(&f.force, "force", false, "overwrite existing runs")
	fs.BoolVar(&f.skipRebuttal, "skip-rebuttal", false, "stop after the original review")
	fs.BoolVar(&f.skipRelated, "skip-related", false, "skip the related-work agent")
	fs.BoolVar(&f.noGrounding, "no-grounding", false, "keep points without a grounding reference")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable response caching")
	fs.BoolVar(&f.noMarkdown, "no-markdown", false, "do not write review.md")
	fs.BoolVar(&f.saveRun, "save", false, "record the run in the SQLite store")
	fs.BoolVar(&f.fallbackMerge, "fallback-merge", false, "fall back to the simple merge when synthesis fails")
}

// apply copies the flags the user set onto cfg
func (f *runFlags) apply(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed
	if changed("provider") {
		cfg.LLM.Provider = f.provider
		// Keys from the config file belong to the configured provider
		cfg.LLM.APIKey = ""
	}
	if changed("model") {
		cfg.LLM.Model = f.modelName
	}
	if changed("routing") {
		cfg.Routing.Strategy = f.routing
	}
	if changed("merge") {
		cfg.Merge.Strategy = f.merge
	}
	if changed("verify") {
		cfg.Verify.Strategy = f.verifyMode
	}
	if changed("rebuttal-mode") {
		cfg.Rebuttal.Mode = model.RebuttalMode(f.rebuttalMode)
	}
	if changed("out") {
		cfg.Output.Dir = f.outDir
	}
	if f.force {
		cfg.Output.Force = true
	}
	if f.skipRebuttal {
		cfg.Rebuttal.Enabled = false
	}
	if f.skipRelated {
		cfg.Review.SkipRelated = true
	}
	if f.noGrounding {
		cfg.Grounding.Required = false
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
	if f.noMarkdown {
		cfg.Output.Markdown = false
	}
	if f.saveRun {
		cfg.Store.Enabled = true
	}
	if f.fallbackMerge {
		cfg.Merge.FallbackToSimple = true
	}
}
