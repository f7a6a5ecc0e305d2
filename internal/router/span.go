package router

import (
	"sort"
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
)

// SpanRouter ranks facets by how much tagged text they cover
type SpanRouter struct {
	facets   []model.Facet
	maxChars int
	topK     int
}

// NewSpanRouter creates a span-based router. The paper must be tagged.
func NewSpanRouter(facets []model.Facet, maxChars, topK int) *SpanRouter {
	if topK <= 0 {
		topK = len(facets)
	}
	return &SpanRouter{facets: facets, maxChars: maxChars, topK: topK}
}

// Name returns the strategy name
func (r *SpanRouter) Name() string {
	return model.RoutingSpan
}

type facetCoverage struct {
	facet    model.Facet
	covered  int
	order    int
	spans    []string
	sections []string
}

// Route keeps the top-K facets by covered characters, ties broken by the
// order in which the facet was first seen
func (r *SpanRouter) Route(paper *model.Paper) (Routing, error) {
	allowed := make(map[model.Facet]bool, len(r.facets))
	for _, f := range r.facets {
		allowed[f] = true
	}

	byFacet := make(map[model.Facet]*facetCoverage)
	var seen []*facetCoverage

	for _, sec := range paper.Sections {
		if err := sec.Validate(); err != nil {
			return nil, err
		}
		for _, span := range sec.Spans {
			for _, f := range span.Facets {
				if !allowed[f] {
					continue
				}
				cov, ok := byFacet[f]
				if !ok {
					cov = &facetCoverage{facet: f, order: len(seen)}
					byFacet[f] = cov
					seen = append(seen, cov)
				}
				cov.covered += span.End - span.Start
				cov.spans = append(cov.spans, span.Text)
				if !containsString(cov.sections, sec.Name) {
					cov.sections = append(cov.sections, sec.Name)
				}
			}
		}
	}

	sort.SliceStable(seen, func(i, j int) bool {
		return seen[i].covered > seen[j].covered
	})

	var routing Routing
	for _, cov := range seen {
		if len(routing) >= r.topK {
			break
		}
		if cov.covered == 0 {
			continue
		}
		text := Truncate(joinWithin(cov.spans, r.maxChars), r.maxChars)
		if strings.TrimSpace(text) == "" {
			continue
		}
		routing = append(routing, Route{Facet: cov.facet, Text: text, Sections: cov.sections})
	}
	return routing, nil
}

// joinWithin joins span texts until the budget is reached. The result may
// exceed the budget by the last span; Truncate bounds it afterwards.
func joinWithin(parts []string, budget int) string {
	var b strings.Builder
	for i, p := range parts {
		if budget > 0 && b.Len() >= budget {
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p)
	}
	return b.String()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
