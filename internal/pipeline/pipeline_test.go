package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/merge"
	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/related"
)

func testPaper() *model.Paper {
	return &model.Paper{
		ID:    "p1",
		Title: "Robust Widget Detection",
		Sections: []model.Section{
			{Name: "Abstract", Text: "We propose a novel widget detector and show significant improvement."},
			{Name: "Introduction", Text: "Widgets matter. Prior work [1] is limited."},
			{Name: "Methods", Text: "We train with a contrastive loss. Code and seeds will be released."},
			{Name: "Results", Text: "Table 2 shows results. Figure 3 plots accuracy."},
			{Name: "References", Text: "[1] A. Smith. Deep widgets. (2019)"},
		},
	}
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "mock"
	cfg.LLM.Model = "mock-model"
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.Cache.Enabled = false
	return cfg
}

func TestReviewPaper_EndToEnd(t *testing.T) {
	mock := llm.NewMockProvider()
	cfg := testConfig()
	p, err := New(cfg, Deps{
		Factory: llm.StaticFactory(mock),
		Related: related.Static{{Title: "Deep Widgets", DOI: "10.1000/widgets"}},
	})
	require.NoError(t, err)

	paper := testPaper()
	res, err := p.ReviewPaper(context.Background(), paper)
	require.NoError(t, err)

	require.NotEmpty(t, res.Routing)
	assert.Equal(t, len(res.Routing), mock.Calls(llm.TaskReviewer))
	assert.Equal(t, 1, mock.Calls(llm.TaskRelated))
	assert.Equal(t, 1, mock.Calls(llm.TaskMerge))
	assert.Empty(t, res.Stats.FailedFacets)
	assert.Equal(t, 3*len(res.Routing)+1, res.Stats.RawPoints)
	assert.Equal(t, 1, res.Stats.RelatedPapers)

	// The ungrounded weakness of the synthesis is removed
	assert.Equal(t, 1, res.Stats.DroppedUngrounded)
	assert.Len(t, res.Original.Strengths, 1)
	assert.Len(t, res.Original.Weaknesses, 1)
	assert.Len(t, res.Original.Suggestions, 1)
	require.NotNil(t, res.Original.Overall)
	assert.Equal(t, 6, *res.Original.Overall)

	// Both critiques are rebutted and verified OK; the weakness is demoted
	require.NotNil(t, res.Rebuttal)
	assert.Len(t, res.Rebuttal.Entries(), 2)
	require.Len(t, res.Verifications, 2)
	for _, v := range res.Verifications {
		assert.Equal(t, model.StatusOK, v.Status)
	}

	require.NotNil(t, res.Updated)
	assert.Empty(t, res.Updated.Weaknesses)
	require.Len(t, res.Updated.Suggestions, 2)
	assert.True(t, strings.HasPrefix(res.Updated.Suggestions[1].Text, "Consider clarifying: Statistical power for the main comparison"))
	assert.Equal(t, res.Original.Strengths, res.Updated.Strengths)
	assert.Equal(t, 1, res.Stats.Revisions)
	assert.Equal(t, *res.Updated, res.Final())

	// The input paper is not modified
	assert.Equal(t, testPaper(), paper)
}

func TestReviewPaper_AgentFailureIsolated(t *testing.T) {
	mock := llm.NewMockProvider()
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		if strings.Contains(prompt, llm.FacetMarker+"methods\n") {
			return "", errors.New("provider exploded")
		}
		return mock.Generate(ctx, prompt, opts)
	})

	cfg := testConfig()
	cfg.Routing.Strategy = model.RoutingAll
	cfg.Merge.Strategy = model.MergeSimple
	cfg.Verify.Strategy = model.VerifyKeyword
	cfg.Rebuttal.Enabled = false
	cfg.Review.SkipRelated = true

	p, err := New(cfg, Deps{Factory: llm.StaticFactory(gen), Related: related.Static{{Title: "ignored"}}})
	require.NoError(t, err)

	res, err := p.ReviewPaper(context.Background(), testPaper())
	require.NoError(t, err)

	assert.Equal(t, []model.Facet{model.FacetMethods}, res.Stats.FailedFacets)
	assert.Zero(t, mock.Calls(llm.TaskRelated))
	assert.Equal(t, 3*7, res.Stats.RawPoints)
	for _, pt := range res.RawPoints {
		assert.NotEqual(t, model.FacetMethods, pt.Facet)
	}

	// Each surviving agent contributes one grounded strength and weakness
	assert.Len(t, res.Original.Strengths, 7)
	assert.Len(t, res.Original.Weaknesses, 7)
	assert.Empty(t, res.Original.Suggestions)
	assert.Equal(t, 7, res.Stats.DroppedUngrounded)
	assert.Equal(t, merge.SimpleSummary, res.Original.Summary)

	assert.Nil(t, res.Rebuttal)
	assert.Nil(t, res.Updated)
	assert.Equal(t, res.Original, res.Final())
}

func TestReviewPaper_SynthesisFailure(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Responses[llm.TaskMerge] = "I cannot produce JSON today."

	cfg := testConfig()
	cfg.Review.SkipRelated = true
	p, err := New(cfg, Deps{Factory: llm.StaticFactory(mock)})
	require.NoError(t, err)

	_, err = p.ReviewPaper(context.Background(), testPaper())
	assert.ErrorIs(t, err, merge.ErrSynthesis)

	cfg.Merge.FallbackToSimple = true
	p, err = New(cfg, Deps{Factory: llm.StaticFactory(mock)})
	require.NoError(t, err)

	res, err := p.ReviewPaper(context.Background(), testPaper())
	require.NoError(t, err)
	assert.Equal(t, "synthesis+simple", res.Merger)
	assert.Equal(t, merge.SimpleSummary, res.Original.Summary)
}

func TestReviewPaper_SpanRoutingTagsPaper(t *testing.T) {
	cfg := testConfig()
	cfg.Routing.Strategy = model.RoutingSpan
	cfg.Review.SkipRelated = true
	cfg.Rebuttal.Mode = model.RebuttalConsolidated

	p, err := New(cfg, Deps{Factory: llm.StaticFactory(llm.NewMockProvider())})
	require.NoError(t, err)

	paper := testPaper()
	res, err := p.ReviewPaper(context.Background(), paper)
	require.NoError(t, err)

	assert.True(t, res.Paper.Tagged())
	assert.False(t, paper.Tagged())
	assert.NotEmpty(t, res.Routing)
	require.NotNil(t, res.Rebuttal)
	assert.Equal(t, model.RebuttalConsolidated, res.Rebuttal.Mode)
	assert.Len(t, res.Rebuttal.Entries(), 1)
}

func TestReviewPaper_Cancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Review.SkipRelated = true
	p, err := New(cfg, Deps{Factory: llm.StaticFactory(llm.NewMockProvider())})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ReviewPaper(ctx, testPaper())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg, Deps{})
	assert.Error(t, err)

	bad := testConfig()
	bad.Routing.Strategy = "random"
	_, err = New(bad, Deps{Factory: llm.StaticFactory(llm.NewMockProvider())})
	assert.Error(t, err)

	failing := func() (llm.Generator, error) { return nil, errors.New("no key") }
	_, err = New(cfg, Deps{Factory: failing})
	assert.ErrorContains(t, err, "no key")
}

func TestBuild_MockProvider(t *testing.T) {
	dir := t.TempDir()
	relatedPath := filepath.Join(dir, "related.json")
	require.NoError(t, os.WriteFile(relatedPath, []byte(`[{"title":"Deep Widgets","abstract":"About widgets."}]`), 0o644))

	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = filepath.Join(dir, "cache")

	p, err := Build(cfg, BuildOptions{RelatedFile: relatedPath})
	require.NoError(t, err)

	res, err := p.ReviewPaper(context.Background(), testPaper())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.RelatedPapers)
	assert.Positive(t, res.Stats.Usage.Calls)
	assert.Positive(t, res.Stats.Usage.PromptTokens)
	assert.Equal(t, res.Stats.Usage, p.Usage())

	// Identical prompts are now served from the cache and skip the meter
	again, err := p.ReviewPaper(context.Background(), testPaper())
	require.NoError(t, err)
	assert.Zero(t, again.Stats.Usage.Calls)
	assert.Equal(t, res.Original, again.Original)

	_, err = Build(cfg, BuildOptions{RelatedFile: filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}

func TestLoadPaper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper_42.json")
	doc := `{
		"title": "Widgets",
		"sections": [{"name": "Abstract", "text": "Hello widgets", "spans": [{"start": 0, "end": 5, "text": "Hello", "facets": ["novelty"]}]}],
		"figures": [{"id": "F1", "caption": "A plot", "mentions": ["Sec 2"]}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	paper, err := LoadPaper(path)
	require.NoError(t, err)
	assert.Equal(t, "paper_42", paper.ID)
	assert.Equal(t, "Widgets", paper.Title)
	require.Len(t, paper.Sections, 1)
	assert.True(t, paper.Sections[0].Spans[0].HasFacet(model.FacetNovelty))
	assert.Equal(t, "A plot", paper.Figures[0].Caption)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title":"x","sections":[{"name":"A","text":"ab","spans":[{"start":0,"end":9}]}]}`), 0o644))
	_, err = LoadPaper(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"title":"x","sections":[]}`), 0o644))
	_, err = LoadPaper(empty)
	assert.Error(t, err)

	_, err = LoadPaper(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestListPapers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	got, err := ListPapers(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, got)

	list := filepath.Join(t.TempDir(), "papers.txt")
	require.NoError(t, os.WriteFile(list, []byte("# batch\nx.json\n\ny.json\nx.json\n"), 0o644))
	got, err = ListPapers(list)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.json", "y.json"}, got)

	_, err = ListPapers(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestRenderer(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Review.SkipRelated = true

	p, err := New(cfg, Deps{Factory: llm.StaticFactory(llm.NewMockProvider())})
	require.NoError(t, err)
	res, err := p.ReviewPaper(context.Background(), testPaper())
	require.NoError(t, err)

	r := NewRenderer(cfg)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "paper_p1_mock-model_no_related"), r.RunDir("p1"))
	require.NoError(t, r.Check("p1"))

	dir, err := r.Render(res)
	require.NoError(t, err)
	for _, name := range []string{FileRawPoints, FileRouting, FileOriginal, FileUpdated, FileRebuttal, FileVerification, FileRun, FileMarkdown} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	var original model.Review
	data, err := os.ReadFile(filepath.Join(dir, FileOriginal))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &original))
	assert.Equal(t, res.Original.Summary, original.Summary)

	md, err := os.ReadFile(filepath.Join(dir, FileMarkdown))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Review: Robust Widget Detection")
	assert.Contains(t, string(md), "## Author Rebuttal")
	assert.Contains(t, string(md), "Consider clarifying: ")
	assert.Contains(t, string(md), "| originality | 6 |")

	// Existing runs are skipped unless forced
	assert.ErrorIs(t, r.Check("p1"), ErrRunExists)
	cfg.Output.Force = true
	assert.NoError(t, NewRenderer(cfg).Check("p1"))
}

func TestRenderer_NoRebuttal(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Markdown = false
	cfg.Review.SkipRelated = true
	cfg.Rebuttal.Enabled = false
	cfg.LLM.Model = "org/llama3:8b"

	p, err := New(cfg, Deps{Factory: llm.StaticFactory(llm.NewMockProvider())})
	require.NoError(t, err)
	res, err := p.ReviewPaper(context.Background(), testPaper())
	require.NoError(t, err)

	dir, err := NewRenderer(cfg).Render(res)
	require.NoError(t, err)
	assert.Equal(t, "paper_p1_org_llama3_8b_no_rebuttal_no_related", filepath.Base(dir))
	assert.FileExists(t, filepath.Join(dir, FileOriginal))
	for _, name := range []string{FileUpdated, FileRebuttal, FileVerification, FileMarkdown} {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", sanitizeName("gpt-4o-mini"))
	assert.Equal(t, "a_b_c", sanitizeName("a/b:c"))
	assert.Equal(t, "unknown", sanitizeName(" "))
	assert.Equal(t, "unknown", sanitizeName(".."))
	assert.Len(t, sanitizeName(strings.Repeat("x", 150)), 100)
}
