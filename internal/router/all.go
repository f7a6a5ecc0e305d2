package router

import (
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
)

// AllRouter gives every facet the whole paper
type AllRouter struct {
	facets   []model.Facet
	maxChars int
}

// NewAllRouter creates a router that ignores section structure
func NewAllRouter(facets []model.Facet, maxChars int) *AllRouter {
	return &AllRouter{facets: facets, maxChars: maxChars}
}

// Name returns the strategy name
func (r *AllRouter) Name() string {
	return model.RoutingAll
}

// Route assigns the truncated full text to each facet
func (r *AllRouter) Route(paper *model.Paper) (Routing, error) {
	text, names := fullText(paper)
	text = Truncate(text, r.maxChars)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	routing := make(Routing, 0, len(r.facets))
	for _, f := range r.facets {
		routing = append(routing, Route{Facet: f, Text: text, Sections: append([]string(nil), names...)})
	}
	return routing, nil
}
