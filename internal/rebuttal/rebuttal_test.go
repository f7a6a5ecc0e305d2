package rebuttal

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/peerpanel/internal/keywords"
	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

func testPaper() *model.Paper {
	return &model.Paper{
		Title: "Robust Widgets",
		Sections: []model.Section{
			{Name: "Abstract", Text: "We build widgets."},
			{Name: "Introduction", Text: strings.Repeat("x", 2000)},
			{Name: "Methods", Text: "We used a method."},
			{Name: "Results", Text: "It worked."},
		},
	}
}

func critiques() []model.Point {
	return []model.Point{
		{Kind: model.KindWeakness, Text: "Statistical power unclear", Grounding: "Sec 4"},
		{Kind: model.KindWeakness, Text: "Baseline comparison is missing"},
		{Kind: model.KindSuggestion, Text: "Report confidence intervals"},
	}
}

func TestPaperContext(t *testing.T) {
	ctx := PaperContext(testPaper())
	assert.Contains(t, ctx, "## Abstract\nWe build widgets.")
	assert.Contains(t, ctx, "## Methods")
	assert.NotContains(t, ctx, "Results")
	assert.Contains(t, ctx, strings.Repeat("x", 1500))
	assert.NotContains(t, ctx, strings.Repeat("x", 1501))
}

func TestRebut_PerPoint(t *testing.T) {
	var prompts []string
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		assert.Equal(t, llm.TaskRebuttal, opts.Task)
		assert.Equal(t, 600, opts.MaxTokens)
		prompts = append(prompts, prompt)
		return " CLARIFICATION: see Sec 4.2. ", nil
	})

	r, err := New(gen, Options{Policy: model.CallPolicy{Temperature: 0.5, MaxTokens: 600}}).
		Rebut(context.Background(), critiques(), testPaper())
	require.NoError(t, err)

	assert.Equal(t, model.RebuttalPerPoint, r.Mode)
	require.Len(t, r.Responses, 3)
	assert.Equal(t, "CLARIFICATION: see Sec 4.2.", r.Responses[0])
	assert.Zero(t, r.Fallbacks)
	assert.Equal(t, r.Responses, r.Entries())

	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[0], llm.PointMarker+"Statistical power unclear")
	assert.Contains(t, prompts[0], "Grounding: Sec 4")
	assert.Contains(t, prompts[0], "Kind: weakness")
	assert.NotContains(t, prompts[1], "Grounding:")
}

func TestRebut_PerPointFallback(t *testing.T) {
	var calls int32
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return "", errors.New("rate limited")
		case 2:
			return "   ", nil
		}
		return "VALID POINT: added in Table 3.", nil
	})

	points := critiques()
	r, err := New(gen, Options{}).Rebut(context.Background(), points, testPaper())
	require.NoError(t, err)

	assert.Equal(t, keywords.RebuttalFallback(points[0]), r.Responses[0])
	assert.Equal(t, keywords.RebuttalFallback(points[1]), r.Responses[1])
	assert.Equal(t, "VALID POINT: added in Table 3.", r.Responses[2])
	assert.Equal(t, 2, r.Fallbacks)
}

func TestRebut_Parallel_PreservesOrder(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		for _, line := range strings.Split(prompt, "\n") {
			if strings.HasPrefix(line, llm.PointMarker) {
				if strings.Contains(line, "Baseline") {
					return "", errors.New("boom")
				}
				return "re: " + strings.TrimPrefix(line, llm.PointMarker), nil
			}
		}
		return "", errors.New("no point")
	})

	points := critiques()
	r, err := New(gen, Options{Parallel: true, Workers: 3}).Rebut(context.Background(), points, testPaper())
	require.NoError(t, err)

	require.Len(t, r.Responses, 3)
	assert.Equal(t, "re: Statistical power unclear", r.Responses[0])
	assert.Equal(t, keywords.RebuttalFallback(points[1]), r.Responses[1])
	assert.Equal(t, "re: Report confidence intervals", r.Responses[2])
	assert.Equal(t, 1, r.Fallbacks)
}

func TestRebut_Empty(t *testing.T) {
	r, err := New(llm.NewMockProvider(), Options{}).Rebut(context.Background(), nil, testPaper())
	require.NoError(t, err)
	assert.Empty(t, r.Entries())
}

func TestRebut_Consolidated(t *testing.T) {
	var gotPrompt string
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		gotPrompt = prompt
		assert.Equal(t, 2000, opts.MaxTokens)
		return "We thank the reviewers. Statistical power unclear: see Appendix B.", nil
	})

	g := New(gen, Options{
		Mode:               model.RebuttalConsolidated,
		Policy:             model.CallPolicy{MaxTokens: 600},
		ConsolidatedPolicy: model.CallPolicy{MaxTokens: 2000},
	})
	r, err := g.Rebut(context.Background(), critiques(), testPaper())
	require.NoError(t, err)

	assert.Equal(t, model.RebuttalConsolidated, r.Mode)
	assert.Empty(t, r.Responses)
	require.Len(t, r.Entries(), 1)
	assert.Contains(t, gotPrompt, "2 weaknesses and 1 suggestions")
	assert.Contains(t, gotPrompt, "1. Statistical power unclear [Sec 4]")
	assert.Contains(t, gotPrompt, "It worked.")
}

func TestRebut_ConsolidatedFailurePropagates(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		return "", errors.New("provider down")
	})
	_, err := New(gen, Options{Mode: model.RebuttalConsolidated}).Rebut(context.Background(), critiques(), testPaper())
	assert.ErrorContains(t, err, "provider down")

	empty := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		return "", nil
	})
	_, err = New(empty, Options{Mode: model.RebuttalConsolidated}).Rebut(context.Background(), critiques(), testPaper())
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}
