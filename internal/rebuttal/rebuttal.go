package rebuttal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/keywords"
	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/worker"
)

const (
	contextSections     = 3
	contextSectionChars = 1500
)

const authorSystem = `You are the authors of the paper, writing a rebuttal to a reviewer point.
Start with one label: MISUNDERSTANDING, MISSING CONTEXT, CLARIFICATION or VALID POINT.
Cite concrete locations (Sec, Table, Fig, Appendix) whenever the paper addresses the point.`

// Options configures the rebuttal generator
type Options struct {
	Mode               model.RebuttalMode
	Policy             model.CallPolicy
	ConsolidatedPolicy model.CallPolicy
	// Parallel runs per-point calls on a worker pool of Workers width
	Parallel bool
	Workers  int
	Logger   *zap.Logger
}

// Generator writes simulated author responses to review critiques
type Generator struct {
	gen    llm.Generator
	opts   Options
	logger *zap.Logger
}

// New creates a rebuttal generator
func New(gen llm.Generator, opts Options) *Generator {
	if opts.Mode == "" {
		opts.Mode = model.RebuttalPerPoint
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{gen: gen, opts: opts, logger: logger}
}

// Rebut answers points (weaknesses then suggestions). Per-point mode never
// fails on generator errors; consolidated mode returns them.
func (g *Generator) Rebut(ctx context.Context, points []model.Point, paper *model.Paper) (model.Rebuttal, error) {
	if g.opts.Mode == model.RebuttalConsolidated {
		return g.consolidated(ctx, points, paper)
	}
	return g.perPoint(ctx, points, paper), nil
}

func (g *Generator) perPoint(ctx context.Context, points []model.Point, paper *model.Paper) model.Rebuttal {
	out := model.Rebuttal{Mode: model.RebuttalPerPoint, Responses: make([]string, len(points))}
	if len(points) == 0 {
		return out
	}
	paperCtx := PaperContext(paper)

	fellBack := make([]bool, len(points))
	if g.opts.Parallel && len(points) > 1 {
		jobs := make([]worker.Job, len(points))
		for i, p := range points {
			jobs[i] = &pointJob{index: i, point: p, paperCtx: paperCtx, g: g}
		}
		results := worker.NewPoolWithContext(ctx, g.opts.Workers).Run(jobs)
		done := make([]bool, len(points))
		for _, r := range results {
			if res, ok := r.(*pointResult); ok {
				out.Responses[res.index] = res.text
				fellBack[res.index] = res.fallback
				done[res.index] = true
			}
		}
		for i, ok := range done {
			if !ok {
				out.Responses[i] = keywords.RebuttalFallback(points[i])
				fellBack[i] = true
			}
		}
	} else {
		for i, p := range points {
			out.Responses[i], fellBack[i] = g.answer(ctx, p, paperCtx)
		}
	}

	for _, fb := range fellBack {
		if fb {
			out.Fallbacks++
		}
	}
	return out
}

// answer returns the generated response, or the keyword fallback and true
func (g *Generator) answer(ctx context.Context, p model.Point, paperCtx string) (string, bool) {
	opts := llm.PolicyOptions(llm.TaskRebuttal, g.opts.Policy)
	opts.System = authorSystem

	text, err := g.gen.Generate(ctx, buildPointPrompt(p, paperCtx), opts)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		g.logger.Warn("rebuttal generation failed, using keyword fallback",
			zap.String("point", p.Text),
			zap.Error(err))
		return keywords.RebuttalFallback(p), true
	}
	return text, false
}

type pointJob struct {
	index    int
	point    model.Point
	paperCtx string
	g        *Generator
}

type pointResult struct {
	index    int
	text     string
	fallback bool
}

func (r *pointResult) GetError() error { return nil }

func (j *pointJob) Execute(ctx context.Context) worker.Result {
	text, fb := j.g.answer(ctx, j.point, j.paperCtx)
	return &pointResult{index: j.index, text: text, fallback: fb}
}

func (g *Generator) consolidated(ctx context.Context, points []model.Point, paper *model.Paper) (model.Rebuttal, error) {
	out := model.Rebuttal{Mode: model.RebuttalConsolidated}
	if len(points) == 0 {
		return out, nil
	}

	opts := llm.PolicyOptions(llm.TaskRebuttal, g.opts.ConsolidatedPolicy)
	opts.System = authorSystem

	text, err := g.gen.Generate(ctx, buildConsolidatedPrompt(points, paper), opts)
	if err != nil {
		return model.Rebuttal{}, fmt.Errorf("consolidated rebuttal: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Rebuttal{}, fmt.Errorf("consolidated rebuttal: %w", llm.ErrEmptyResponse)
	}
	out.Text = text
	return out, nil
}

// PaperContext is the first sections of the paper, each cut to a fixed length
func PaperContext(paper *model.Paper) string {
	var b strings.Builder
	for i, s := range paper.Sections {
		if i == contextSections {
			break
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.Name, cut(s.Text, contextSectionChars))
	}
	return strings.TrimSpace(b.String())
}

func buildPointPrompt(p model.Point, paperCtx string) string {
	var b strings.Builder
	b.WriteString("Paper context:\n")
	b.WriteString(paperCtx)
	b.WriteString("\n\nReviewer point\n")
	fmt.Fprintf(&b, "Kind: %s\n", p.Kind)
	b.WriteString(llm.PointMarker + p.Text + "\n")
	if p.Grounding != "" {
		fmt.Fprintf(&b, "Grounding: %s\n", p.Grounding)
	}
	b.WriteString("\nWrite a concise rebuttal (2-4 sentences).\n")
	return b.String()
}

func buildConsolidatedPrompt(points []model.Point, paper *model.Paper) string {
	var weaknesses, suggestions []model.Point
	for _, p := range points {
		if p.Kind == model.KindSuggestion {
			suggestions = append(suggestions, p)
		} else {
			weaknesses = append(weaknesses, p)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Paper: %s\n\n", paper.Title)
	for _, s := range paper.Sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.Name, s.Text)
	}
	fmt.Fprintf(&b, "The reviewers raised %d weaknesses and %d suggestions.\n\n", len(weaknesses), len(suggestions))
	writeNumbered(&b, "Weaknesses", weaknesses)
	writeNumbered(&b, "Suggestions", suggestions)
	b.WriteString("Write one rebuttal that answers every point in order, quoting the start of each point you answer.\n")
	return b.String()
}

func writeNumbered(b *strings.Builder, heading string, points []model.Point) {
	if len(points) == 0 {
		return
	}
	b.WriteString(heading + ":\n")
	for i, p := range points {
		fmt.Fprintf(b, "%d. %s", i+1, p.Text)
		if p.Grounding != "" {
			fmt.Fprintf(b, " [%s]", p.Grounding)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
