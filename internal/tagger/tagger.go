package tagger

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/peerpanel/internal/model"
)

// DefaultWindow is the span width for dense technical sections
const DefaultWindow = 300

var facetKeywords = map[model.Facet][]string{
	model.FacetMethods:             {"method", "architecture", "training", "loss", "optimization", "experiment design"},
	model.FacetNovelty:             {"novel", "we propose", "contribution", "our approach differs"},
	model.FacetClaimsVsEvidence:    {"we show", "results indicate", "significant improvement", "evidence"},
	model.FacetReproducibility:     {"code", "available", "seed", "hyperparameter", "release", "dataset"},
	model.FacetFiguresTables:       {"figure", "fig.", "table", "tab."},
	model.FacetClarityPresentation: {"clarity", "readability", "typo", "grammar"},
	model.FacetEthicsLicensing:     {"license", "ethic", "consent", "privacy", "terms of use"},
	model.FacetSocietalImpact:      {"risk", "bias", "harm", "misuse", "societal", "impact"},
}

type sectionDefault struct {
	prefix string
	facets []model.Facet
}

// Checked in order; "methods" must precede "method".
var sectionDefaults = []sectionDefault{
	{"title", []model.Facet{model.FacetNovelty}},
	{"abstract", []model.Facet{model.FacetClaimsVsEvidence, model.FacetNovelty}},
	{"introduction", []model.Facet{model.FacetNovelty, model.FacetClaimsVsEvidence, model.FacetSocietalImpact}},
	{"related work", []model.Facet{model.FacetNovelty}},
	{"background", []model.Facet{model.FacetNovelty}},
	{"methods", []model.Facet{model.FacetMethods, model.FacetReproducibility}},
	{"method", []model.Facet{model.FacetMethods, model.FacetReproducibility}},
	{"approach", []model.Facet{model.FacetMethods, model.FacetReproducibility}},
	{"experiments", []model.Facet{model.FacetClaimsVsEvidence, model.FacetMethods}},
	{"results", []model.Facet{model.FacetClaimsVsEvidence, model.FacetFiguresTables}},
	{"discussion", []model.Facet{model.FacetClaimsVsEvidence, model.FacetSocietalImpact}},
	{"conclusion", []model.Facet{model.FacetClaimsVsEvidence}},
	{"appendix", []model.Facet{model.FacetMethods, model.FacetReproducibility}},
	{"supplement", []model.Facet{model.FacetMethods, model.FacetReproducibility}},
}

var windowedPrefixes = []string{"methods", "method", "approach", "appendix", "supplement"}

// Tagger labels section spans with facets
type Tagger struct {
	window int
}

// New creates a tagger. window <= 0 uses DefaultWindow.
func New(window int) *Tagger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tagger{window: window}
}

// Tag returns a copy of paper with spans filled in for every section
func (t *Tagger) Tag(paper *model.Paper) *model.Paper {
	out := *paper
	out.Sections = make([]model.Section, len(paper.Sections))
	for i, sec := range paper.Sections {
		sec.Spans = t.tagSection(sec)
		out.Sections[i] = sec
	}
	return &out
}

func (t *Tagger) tagSection(sec model.Section) []model.Span {
	name := strings.ToLower(strings.TrimSpace(sec.Name))
	defaults := defaultFacets(name)

	if sec.Text == "" {
		return []model.Span{{Start: 0, End: 0, Text: "", Facets: sortFacets(defaults)}}
	}

	step := len(sec.Text)
	for _, p := range windowedPrefixes {
		if strings.HasPrefix(name, p) {
			step = t.window
			break
		}
	}

	var spans []model.Span
	for start := 0; start < len(sec.Text); {
		end := start + step
		if end >= len(sec.Text) {
			end = len(sec.Text)
		} else {
			for end < len(sec.Text) && !utf8.RuneStart(sec.Text[end]) {
				end++
			}
		}
		chunk := sec.Text[start:end]
		facets := append([]model.Facet(nil), defaults...)
		facets = append(facets, keywordFacets(strings.ToLower(chunk))...)
		spans = append(spans, model.Span{
			Start:  start,
			End:    end,
			Text:   chunk,
			Facets: sortFacets(facets),
		})
		start = end
	}
	return spans
}

func defaultFacets(name string) []model.Facet {
	for _, d := range sectionDefaults {
		if strings.HasPrefix(name, d.prefix) {
			return d.facets
		}
	}
	return nil
}

func keywordFacets(chunk string) []model.Facet {
	var out []model.Facet
	for _, f := range model.AllFacets() {
		for _, kw := range facetKeywords[f] {
			if strings.Contains(chunk, kw) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// sortFacets deduplicates and orders facets canonically
func sortFacets(facets []model.Facet) []model.Facet {
	order := make(map[model.Facet]int)
	for i, f := range model.AllFacets() {
		order[f] = i
	}
	seen := make(map[model.Facet]bool)
	out := make([]model.Facet, 0, len(facets))
	for _, f := range facets {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
