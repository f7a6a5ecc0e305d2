package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/grounding"
	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/merge"
	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/rebuttal"
	"github.com/ppiankov/peerpanel/internal/related"
	"github.com/ppiankov/peerpanel/internal/reviewer"
	"github.com/ppiankov/peerpanel/internal/revise"
	"github.com/ppiankov/peerpanel/internal/router"
	"github.com/ppiankov/peerpanel/internal/tagger"
	"github.com/ppiankov/peerpanel/internal/verify"
)

// Deps are the collaborators a pipeline is assembled from
type Deps struct {
	// Factory builds a fresh generator per reviewer task. The merge,
	// rebuttal and verify stages share one generator built at construction.
	Factory llm.Factory
	// Related supplies related papers; nil skips the related-work agent
	Related related.Source
	// Meter, when set, is reported in per-paper stats
	Meter  *llm.Meter
	Logger *zap.Logger
}

// Pipeline orchestrates the review of one paper: route, review, merge,
// ground, rebut, verify, revise
type Pipeline struct {
	cfg       *model.Config
	tagger    *tagger.Tagger
	router    router.Router
	reviewers *reviewer.Pool
	related   related.Source
	relAgent  *reviewer.RelatedWorkAgent
	merger    merge.Merger
	rebutter  *rebuttal.Generator
	verifier  verify.Verifier
	meter     *llm.Meter
	logger    *zap.Logger
}

// New assembles a pipeline from cfg and deps
func New(cfg *model.Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Factory == nil {
		return nil, errors.New("pipeline needs a generator factory")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rt, err := router.New(cfg.Routing, cfg.Review.Facets)
	if err != nil {
		return nil, err
	}

	shared, err := deps.Factory()
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	opts := reviewer.Options{
		Policy:    cfg.Generation.Reviewer,
		MaxPoints: cfg.Review.MaxPointsPerFacet,
		Logger:    logger,
	}

	merger, err := merge.New(cfg.Merge, shared, cfg.Generation.Merge, logger)
	if err != nil {
		return nil, err
	}
	verifier, err := verify.New(cfg.Verify.Strategy, shared, cfg.Generation.Verify, logger)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		tagger:    tagger.New(0),
		router:    rt,
		reviewers: reviewer.NewPool(reviewer.NewAgentFactory(deps.Factory, opts), cfg.Review.Workers, logger),
		merger:    merger,
		rebutter: rebuttal.New(shared, rebuttal.Options{
			Mode:               cfg.Rebuttal.Mode,
			Policy:             cfg.Generation.Rebuttal,
			ConsolidatedPolicy: cfg.Generation.Consolidated,
			Parallel:           cfg.Rebuttal.Parallel,
			Workers:            cfg.Review.Workers,
			Logger:             logger,
		}),
		verifier: verifier,
		meter:    deps.Meter,
		logger:   logger,
	}
	if !cfg.Review.SkipRelated && deps.Related != nil {
		p.related = deps.Related
		p.relAgent = reviewer.NewRelatedWorkAgent(shared, opts)
	}
	return p, nil
}

// Stats summarises one paper run
type Stats struct {
	RoutedFacets      []model.Facet `json:"routed_facets"`
	FailedFacets      []model.Facet `json:"failed_facets,omitempty"`
	RawPoints         int           `json:"raw_points"`
	MergedPoints      int           `json:"merged_points"`
	DroppedUngrounded int           `json:"dropped_ungrounded"`
	RelatedPapers     int           `json:"related_papers"`
	RebuttalFallbacks int           `json:"rebuttal_fallbacks"`
	Revisions         int           `json:"revisions"`
	Usage             llm.Usage     `json:"usage"`
	Duration          time.Duration `json:"duration_ns"`
}

// Result is everything produced for one paper. Rebuttal, Verifications and
// Updated are nil when the rebuttal stage is disabled.
type Result struct {
	Paper         *model.Paper
	Routing       router.Routing
	RawPoints     []model.Point
	Related       []model.RelatedPaper
	Original      model.Review
	Rebuttal      *model.Rebuttal
	Verifications []model.Verification
	Updated       *model.Review
	Changes       []revise.Change
	Merger        string
	Stats         Stats
}

// Final returns the revised review when there is one, else the original
func (r *Result) Final() model.Review {
	if r.Updated != nil {
		return *r.Updated
	}
	return r.Original
}

// ReviewPaper runs the whole pipeline on paper. Agent, rebuttal and verifier
// failures degrade locally; routing, merge and consolidated-rebuttal
// failures fail the paper.
func (p *Pipeline) ReviewPaper(ctx context.Context, paper *model.Paper) (*Result, error) {
	start := time.Now()
	var before llm.Usage
	if p.meter != nil {
		before = p.meter.Usage()
	}
	log := p.logger.With(zap.String("paper", paper.ID))

	if err := paper.Validate(); err != nil {
		return nil, err
	}
	if p.cfg.Routing.Strategy == model.RoutingSpan && !paper.Tagged() {
		paper = p.tagger.Tag(paper)
	}

	routing, err := p.router.Route(paper)
	if err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	log.Info("routed paper",
		zap.String("router", p.router.Name()),
		zap.Int("facets", len(routing)))

	res := &Result{Paper: paper, Routing: routing, Merger: p.merger.Name()}
	res.Stats.RoutedFacets = routing.Facets()

	outcomes := p.reviewers.Run(ctx, paper, routing)
	res.RawPoints = reviewer.Points(outcomes)
	res.Stats.FailedFacets = reviewer.Failed(outcomes)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.related != nil {
		points, err := p.reviewRelated(ctx, paper, res)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("related-work agent failed, contributing zero points", zap.Error(err))
			res.Stats.FailedFacets = append(res.Stats.FailedFacets, model.FacetRelatedWork)
		}
		res.RawPoints = append(res.RawPoints, points...)
	}
	res.Stats.RawPoints = len(res.RawPoints)
	log.Info("collected reviewer points",
		zap.Int("points", len(res.RawPoints)),
		zap.Int("failed_agents", len(res.Stats.FailedFacets)))

	merged, err := p.merger.Merge(ctx, res.RawPoints, p.cfg.Rubric, paper)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res.Stats.MergedPoints = merged.PointCount()

	res.Original = grounding.Filter(merged, p.cfg.Grounding.Required)
	res.Stats.DroppedUngrounded = merged.PointCount() - res.Original.PointCount()
	log.Info("merged review",
		zap.String("merger", p.merger.Name()),
		zap.Int("points", res.Original.PointCount()),
		zap.Int("dropped_ungrounded", res.Stats.DroppedUngrounded))

	if p.cfg.Rebuttal.Enabled {
		if err := p.rebut(ctx, paper, res); err != nil {
			return nil, err
		}
		log.Info("revised review",
			zap.Int("rebuttals", len(res.Rebuttal.Entries())),
			zap.Int("revisions", len(res.Changes)))
	}

	if p.meter != nil {
		res.Stats.Usage = usageDelta(p.meter.Usage(), before)
	}
	res.Stats.Duration = time.Since(start)
	return res, nil
}

func (p *Pipeline) reviewRelated(ctx context.Context, paper *model.Paper, res *Result) ([]model.Point, error) {
	papers, err := p.related.TopRelated(ctx, paper, p.cfg.Related.TopK)
	if err != nil {
		return nil, fmt.Errorf("related lookup: %w", err)
	}
	res.Related = papers
	res.Stats.RelatedPapers = len(papers)
	return p.relAgent.Review(ctx, paper, reviewer.RelatedInput(paper), papers)
}

func (p *Pipeline) rebut(ctx context.Context, paper *model.Paper, res *Result) error {
	reb, err := p.rebutter.Rebut(ctx, res.Original.Critiques(), paper)
	if err != nil {
		return fmt.Errorf("rebuttal: %w", err)
	}
	entries := reb.Entries()
	verifications := p.verifier.Verify(ctx, entries)
	updated, changes := revise.ReviseWithLog(res.Original, entries, verifications)

	res.Rebuttal = &reb
	res.Verifications = verifications
	res.Updated = &updated
	res.Changes = changes
	res.Stats.RebuttalFallbacks = reb.Fallbacks
	res.Stats.Revisions = len(changes)
	return nil
}

func usageDelta(after, before llm.Usage) llm.Usage {
	return llm.Usage{
		Calls:        after.Calls - before.Calls,
		Failures:     after.Failures - before.Failures,
		PromptTokens: after.PromptTokens - before.PromptTokens,
		OutputTokens: after.OutputTokens - before.OutputTokens,
	}
}
