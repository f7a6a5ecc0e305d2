package reviewer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

// Agent reviews one facet of a paper
type Agent interface {
	Name() string
	Facet() model.Facet
	Review(ctx context.Context, paper *model.Paper, facetText string) ([]model.Point, error)
}

// Options configures reviewer agents
type Options struct {
	Policy    model.CallPolicy
	MaxPoints int
	Logger    *zap.Logger
}

// FacetAgent is a stateless reviewer for a single facet
type FacetAgent struct {
	facet  model.Facet
	gen    llm.Generator
	opts   Options
	logger *zap.Logger
}

// NewFacetAgent creates a reviewer for facet f backed by gen
func NewFacetAgent(f model.Facet, gen llm.Generator, opts Options) *FacetAgent {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacetAgent{facet: f, gen: gen, opts: opts, logger: logger}
}

// Name returns the reviewer agent name
func (a *FacetAgent) Name() string {
	return model.ReviewerForFacet(a.facet)
}

// Facet returns the reviewed facet
func (a *FacetAgent) Facet() model.Facet {
	return a.facet
}

// Review calls the generator once and parses the points. Points that name no
// facet are attributed to this agent's facet.
func (a *FacetAgent) Review(ctx context.Context, paper *model.Paper, facetText string) ([]model.Point, error) {
	prompt := buildFacetPrompt(a.facet, paper.Title, facetText, a.opts.MaxPoints)
	a.logger.Debug("reviewer prompt",
		zap.String("facet", string(a.facet)),
		zap.Int("chars", len(prompt)))

	opts := llm.PolicyOptions(llm.TaskReviewer, a.opts.Policy)
	opts.System = systemPrompt

	response, err := a.gen.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", a.Name(), err)
	}

	points, err := ParsePoints(response, a.opts.MaxPoints)
	if err != nil {
		return nil, fmt.Errorf("%s parse: %w", a.Name(), err)
	}
	return withFacet(points, a.facet), nil
}

// RelatedWorkAgent compares the paper with retrieved related papers. It runs
// once per paper, not per routed facet.
type RelatedWorkAgent struct {
	gen    llm.Generator
	opts   Options
	logger *zap.Logger
}

// NewRelatedWorkAgent creates the related-work reviewer
func NewRelatedWorkAgent(gen llm.Generator, opts Options) *RelatedWorkAgent {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelatedWorkAgent{gen: gen, opts: opts, logger: logger}
}

// Name returns the reviewer agent name
func (a *RelatedWorkAgent) Name() string {
	return model.ReviewerForFacet(model.FacetRelatedWork)
}

// Review compares text with related. With no related papers there is
// nothing to compare and no call is made.
func (a *RelatedWorkAgent) Review(ctx context.Context, paper *model.Paper, text string, related []model.RelatedPaper) ([]model.Point, error) {
	if len(related) == 0 {
		return nil, nil
	}

	prompt := buildRelatedPrompt(paper.Title, text, related, a.opts.MaxPoints)
	opts := llm.PolicyOptions(llm.TaskRelated, a.opts.Policy)
	opts.System = systemPrompt

	response, err := a.gen.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", a.Name(), err)
	}

	points, err := ParsePoints(response, a.opts.MaxPoints)
	if err != nil {
		return nil, fmt.Errorf("%s parse: %w", a.Name(), err)
	}
	return withFacet(points, model.FacetRelatedWork), nil
}

// RelatedInput picks the text the related-work agent compares: the Related
// Work section, else the Introduction, else the first section
func RelatedInput(paper *model.Paper) string {
	for _, prefix := range []string{"related work", "introduction"} {
		for _, s := range paper.Sections {
			if strings.Contains(strings.ToLower(s.Name), prefix) {
				return s.Text
			}
		}
	}
	if len(paper.Sections) > 0 {
		return paper.Sections[0].Text
	}
	return ""
}

func withFacet(points []model.Point, f model.Facet) []model.Point {
	for i := range points {
		if points[i].Facet == "" {
			points[i].Facet = f
		}
	}
	return points
}
