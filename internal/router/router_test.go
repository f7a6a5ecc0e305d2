package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/tagger"
)

func samplePaper() *model.Paper {
	return &model.Paper{
		Title: "A Study",
		Sections: []model.Section{
			{Name: "Abstract", Text: "We propose a novel thing."},
			{Name: "1. Introduction", Text: "Motivation and risks."},
			{Name: "3. Our Approach", Text: "The architecture and training loss."},
			{Name: "Experimental Setup", Text: "Seeds and hyperparameters."},
			{Name: "Key Findings", Text: "Results indicate gains in Table 2."},
			{Name: "Conclusion", Text: "Done."},
		},
	}
}

func TestSectionRouter_MatchesPatternsAndSynonyms(t *testing.T) {
	r := NewSectionRouter(model.AllFacets(), 12000)

	routing, err := r.Route(samplePaper())
	require.NoError(t, err)
	routes := routing.Map()

	methods := routes[model.FacetMethods]
	assert.Equal(t, []string{"3. Our Approach", "Experimental Setup"}, methods.Sections)
	assert.True(t, strings.HasPrefix(methods.Text, "## 3. Our Approach\nThe architecture"))
	assert.Contains(t, methods.Text, "\n\n## Experimental Setup\n")

	// "Key Findings" only matches through the results synonym rule
	claims := routes[model.FacetClaimsVsEvidence]
	assert.Equal(t, []string{"Key Findings", "Conclusion"}, claims.Sections)

	figures := routes[model.FacetFiguresTables]
	assert.Equal(t, []string{"Key Findings"}, figures.Sections)

	clarity := routes[model.FacetClarityPresentation]
	assert.Len(t, clarity.Sections, 6)
}

func TestSectionRouter_ResultsSynonym(t *testing.T) {
	paper := &model.Paper{Sections: []model.Section{{Name: "Main Findings", Text: "x"}}}
	r := NewSectionRouter([]model.Facet{model.FacetFiguresTables}, 100)

	routing, err := r.Route(paper)
	require.NoError(t, err)
	// figures_tables lists "results" whose synonyms include "finding"
	require.Len(t, routing, 1)
	assert.Equal(t, []string{"Main Findings"}, routing[0].Sections)
}

func TestSectionRouter_OmitsEmptyFacets(t *testing.T) {
	paper := &model.Paper{Sections: []model.Section{{Name: "Abstract", Text: "hello"}}}
	r := NewSectionRouter([]model.Facet{model.FacetMethods, model.FacetNovelty}, 100)

	routing, err := r.Route(paper)
	require.NoError(t, err)
	assert.Equal(t, []model.Facet{model.FacetNovelty}, routing.Facets())
}

func TestSectionRouter_Budget(t *testing.T) {
	paper := &model.Paper{Sections: []model.Section{
		{Name: "Methods", Text: strings.Repeat("m", 5000)},
	}}
	const budget = 1000
	r := NewSectionRouter([]model.Facet{model.FacetMethods, model.FacetClarityPresentation}, budget)

	routing, err := r.Route(paper)
	require.NoError(t, err)
	require.Len(t, routing, 2)
	for _, route := range routing {
		assert.LessOrEqual(t, len(route.Text), budget)
		assert.True(t, strings.HasSuffix(route.Text, TruncationMarker))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "abc", Truncate("abcdef", 3))

	got := Truncate(strings.Repeat("x", 100), 50)
	assert.Len(t, got, 50)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))

	// never splits a multi-byte rune
	got = Truncate(strings.Repeat("é", 40), 30)
	assert.LessOrEqual(t, len(got), 30)
	assert.True(t, strings.HasPrefix(got, "é"))
}

func TestSpanRouter_RanksByCoverage(t *testing.T) {
	paper := &model.Paper{Sections: []model.Section{
		{Name: "Intro", Text: "aaaa", Spans: []model.Span{
			{Start: 0, End: 4, Text: "aaaa", Facets: []model.Facet{model.FacetNovelty, model.FacetMethods}},
		}},
		{Name: "Body", Text: "bbbbbbbb", Spans: []model.Span{
			{Start: 0, End: 8, Text: "bbbbbbbb", Facets: []model.Facet{model.FacetMethods}},
			{Start: 0, End: 4, Text: "bbbb", Facets: []model.Facet{model.FacetEthicsLicensing}},
		}},
	}}
	r := NewSpanRouter(model.AllFacets(), 12000, 2)

	routing, err := r.Route(paper)
	require.NoError(t, err)

	// methods covers 12, novelty and ethics tie at 4: novelty was seen first
	assert.Equal(t, []model.Facet{model.FacetMethods, model.FacetNovelty}, routing.Facets())
	assert.Equal(t, []string{"Intro", "Body"}, routing[0].Sections)
	assert.Equal(t, "aaaa\nbbbbbbbb", routing[0].Text)
}

func TestSpanRouter_SkipsZeroCoverage(t *testing.T) {
	paper := &model.Paper{Sections: []model.Section{
		{Name: "Empty", Text: "", Spans: []model.Span{{Facets: []model.Facet{model.FacetNovelty}}}},
	}}
	routing, err := NewSpanRouter(model.AllFacets(), 100, 8).Route(paper)
	require.NoError(t, err)
	assert.Empty(t, routing)
}

func TestSpanRouter_RejectsBadSpans(t *testing.T) {
	paper := &model.Paper{Sections: []model.Section{
		{Name: "S", Text: "ab", Spans: []model.Span{{Start: 0, End: 5, Facets: []model.Facet{model.FacetNovelty}}}},
	}}
	_, err := NewSpanRouter(model.AllFacets(), 100, 8).Route(paper)
	assert.Error(t, err)
}

func TestSpanRouter_WithTagger(t *testing.T) {
	paper := tagger.New(0).Tag(samplePaper())
	routing, err := NewSpanRouter(model.AllFacets(), 200, 8).Route(paper)
	require.NoError(t, err)
	require.NotEmpty(t, routing)
	for _, route := range routing {
		assert.LessOrEqual(t, len(route.Text), 200)
	}
}

func TestAllRouter(t *testing.T) {
	facets := []model.Facet{model.FacetMethods, model.FacetNovelty}
	routing, err := NewAllRouter(facets, 12000).Route(samplePaper())
	require.NoError(t, err)
	require.Len(t, routing, 2)
	assert.Equal(t, routing[0].Text, routing[1].Text)
	assert.Len(t, routing[0].Sections, 6)
}

func TestNew(t *testing.T) {
	for _, strategy := range []string{model.RoutingSection, model.RoutingSpan, model.RoutingAll} {
		r, err := New(model.RoutingConfig{Strategy: strategy, MaxChars: 100, TopK: 3}, nil)
		require.NoError(t, err)
		assert.Equal(t, strategy, r.Name())
	}

	_, err := New(model.RoutingConfig{Strategy: "dynamic", MaxChars: 100}, nil)
	assert.Error(t, err)
}

func TestNew_RejectsBudgetBelowMarker(t *testing.T) {
	require.Less(t, len(TruncationMarker), model.MinRoutingChars)

	_, err := New(model.RoutingConfig{Strategy: model.RoutingSection, MaxChars: 10}, nil)
	assert.Error(t, err)

	// At the minimum budget every cut text still ends with the marker
	r, err := New(model.RoutingConfig{Strategy: model.RoutingAll, MaxChars: model.MinRoutingChars}, nil)
	require.NoError(t, err)
	routing, err := r.Route(samplePaper())
	require.NoError(t, err)
	require.NotEmpty(t, routing)
	for _, route := range routing {
		assert.LessOrEqual(t, len(route.Text), model.MinRoutingChars)
		assert.True(t, strings.HasSuffix(route.Text, TruncationMarker))
	}
}
