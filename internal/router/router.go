package router

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/peerpanel/internal/model"
)

// TruncationMarker ends any routed text cut to fit the budget
const TruncationMarker = "\n\n[Text truncated...]"

// Route is the text routed to one facet's reviewer
type Route struct {
	Facet    model.Facet `json:"facet"`
	Text     string      `json:"text"`
	Sections []string    `json:"sections"`
}

// Routing is an ordered set of routes, at most one per facet
type Routing []Route

// Map returns the routes keyed by facet
func (r Routing) Map() map[model.Facet]Route {
	out := make(map[model.Facet]Route, len(r))
	for _, route := range r {
		out[route.Facet] = route
	}
	return out
}

// Facets returns the routed facets in order
func (r Routing) Facets() []model.Facet {
	out := make([]model.Facet, len(r))
	for i, route := range r {
		out[i] = route.Facet
	}
	return out
}

// Router selects the paper text each facet reviewer sees
type Router interface {
	Name() string
	Route(paper *model.Paper) (Routing, error)
}

// New returns the router selected by cfg.Strategy
func New(cfg model.RoutingConfig, facets []model.Facet) (Router, error) {
	if len(facets) == 0 {
		facets = model.AllFacets()
	}
	if cfg.MaxChars < model.MinRoutingChars {
		return nil, fmt.Errorf("routing budget %d is below the minimum of %d chars", cfg.MaxChars, model.MinRoutingChars)
	}
	switch cfg.Strategy {
	case model.RoutingSection, "":
		return NewSectionRouter(facets, cfg.MaxChars), nil
	case model.RoutingSpan:
		return NewSpanRouter(facets, cfg.MaxChars, cfg.TopK), nil
	case model.RoutingAll:
		return NewAllRouter(facets, cfg.MaxChars), nil
	default:
		return nil, fmt.Errorf("unknown routing strategy: %s (supported: section, span, all)", cfg.Strategy)
	}
}

// Truncate cuts text so that text plus TruncationMarker fits in budget.
// Text already within budget is returned unchanged. A budget too small for
// the marker yields a bare cut; routers never see one since New rejects it.
func Truncate(text string, budget int) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}
	if budget <= len(TruncationMarker) {
		return cutRunes(text, budget)
	}
	return cutRunes(text, budget-len(TruncationMarker)) + TruncationMarker
}

// cutRunes returns the longest prefix of s no longer than n bytes that
// does not split a UTF-8 sequence
func cutRunes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func formatSection(s model.Section) string {
	return "## " + s.Name + "\n" + s.Text
}

func fullText(paper *model.Paper) (string, []string) {
	parts := make([]string, 0, len(paper.Sections))
	names := make([]string, 0, len(paper.Sections))
	for _, s := range paper.Sections {
		parts = append(parts, formatSection(s))
		names = append(names, s.Name)
	}
	return strings.Join(parts, "\n\n"), names
}
