package router

import (
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
)

const wildcard = "*"

var facetSectionPatterns = map[model.Facet][]string{
	model.FacetMethods:             {"method", "methods", "approach", "methodology", "experiments", "experiment"},
	model.FacetNovelty:             {"introduction", "abstract", "contribution", "related work", "background"},
	model.FacetClaimsVsEvidence:    {"results", "experiments", "evaluation", "discussion", "conclusion"},
	model.FacetReproducibility:     {"method", "methods", "experiments", "experiment", "appendix", "supplement"},
	model.FacetClarityPresentation: {wildcard},
	model.FacetFiguresTables:       {"results", "experiments", "evaluation"},
	model.FacetEthicsLicensing:     {"introduction", "discussion", "conclusion", "ethics", "limitations"},
	model.FacetSocietalImpact:      {"introduction", "discussion", "conclusion", "limitations", "impact"},
}

// Synonyms extend a pattern to common heading variants
var patternSynonyms = map[string][]string{
	"method":     {"method", "approach", "technique"},
	"experiment": {"experiment", "evaluation", "setup"},
	"results":    {"result", "finding", "outcome"},
}

// SectionRouter routes whole sections by heading name
type SectionRouter struct {
	facets   []model.Facet
	maxChars int
}

// NewSectionRouter creates a section-based router
func NewSectionRouter(facets []model.Facet, maxChars int) *SectionRouter {
	return &SectionRouter{facets: facets, maxChars: maxChars}
}

// Name returns the strategy name
func (r *SectionRouter) Name() string {
	return model.RoutingSection
}

// Route maps each facet to the concatenated text of its matching sections
func (r *SectionRouter) Route(paper *model.Paper) (Routing, error) {
	var routing Routing
	for _, facet := range r.facets {
		patterns, ok := facetSectionPatterns[facet]
		if !ok {
			continue
		}

		var text string
		var names []string
		if containsWildcard(patterns) {
			text, names = fullText(paper)
		} else {
			var parts []string
			for _, s := range paper.Sections {
				if sectionMatches(s.Name, patterns) {
					parts = append(parts, formatSection(s))
					names = append(names, s.Name)
				}
			}
			text = strings.Join(parts, "\n\n")
		}

		text = Truncate(text, r.maxChars)
		if strings.TrimSpace(text) == "" {
			continue
		}
		routing = append(routing, Route{Facet: facet, Text: text, Sections: names})
	}
	return routing, nil
}

// SectionPatterns returns the heading patterns for a facet
func SectionPatterns(f model.Facet) []string {
	return append([]string(nil), facetSectionPatterns[f]...)
}

func sectionMatches(name string, patterns []string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
		for _, syn := range patternSynonyms[p] {
			if strings.Contains(name, syn) {
				return true
			}
		}
	}
	return false
}

func containsWildcard(patterns []string) bool {
	for _, p := range patterns {
		if p == wildcard {
			return true
		}
	}
	return false
}
