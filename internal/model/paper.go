package model

import "fmt"

// Facet is a review dimension. Each facet is handled by exactly one reviewer agent.
type Facet string

const (
	FacetMethods             Facet = "methods"
	FacetNovelty             Facet = "novelty"
	FacetClaimsVsEvidence    Facet = "claims_vs_evidence"
	FacetReproducibility     Facet = "reproducibility"
	FacetEthicsLicensing     Facet = "ethics_licensing"
	FacetClarityPresentation Facet = "clarity_presentation"
	FacetFiguresTables       Facet = "figures_tables"
	FacetSocietalImpact      Facet = "societal_impact"

	// FacetRelatedWork is never routed. The related-work agent runs once per paper.
	FacetRelatedWork Facet = "related_work"
)

// AllFacets lists the routable facets in canonical order
func AllFacets() []Facet {
	return []Facet{
		FacetMethods,
		FacetNovelty,
		FacetClaimsVsEvidence,
		FacetReproducibility,
		FacetEthicsLicensing,
		FacetClarityPresentation,
		FacetFiguresTables,
		FacetSocietalImpact,
	}
}

// Valid reports whether f belongs to the closed facet set
func (f Facet) Valid() bool {
	if f == FacetRelatedWork {
		return true
	}
	for _, known := range AllFacets() {
		if f == known {
			return true
		}
	}
	return false
}

var reviewerForFacet = map[Facet]string{
	FacetMethods:             "MethodsReviewer",
	FacetNovelty:             "NoveltyReviewer",
	FacetClaimsVsEvidence:    "ClaimsEvidenceReviewer",
	FacetReproducibility:     "ReproducibilityReviewer",
	FacetEthicsLicensing:     "EthicsReviewer",
	FacetClarityPresentation: "ClarityReviewer",
	FacetFiguresTables:       "FiguresTablesReviewer",
	FacetSocietalImpact:      "SocietalImpactReviewer",
	FacetRelatedWork:         "RelatedWorkReviewer",
}

// ReviewerForFacet returns the reviewer agent name for a facet
func ReviewerForFacet(f Facet) string {
	if name, ok := reviewerForFacet[f]; ok {
		return name
	}
	return ""
}

// Paper is a parsed scientific paper
type Paper struct {
	ID       string    `json:"id,omitempty"`
	Title    string    `json:"title"`
	Authors  []string  `json:"authors,omitempty"`
	Sections []Section `json:"sections"`
	Figures  []Figure  `json:"figures,omitempty"`
	Tables   []Table   `json:"tables,omitempty"`
}

// Section is a headed block of paper text
type Section struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Spans []Span `json:"spans,omitempty"`
}

// Span is a half-open range [Start, End) into the parent section's text
type Span struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Text   string  `json:"text"`
	Facets []Facet `json:"facets,omitempty"`
}

// Figure is a figure caption plus where it is mentioned in the text
type Figure struct {
	ID       string   `json:"id"`
	Caption  string   `json:"caption"`
	Mentions []string `json:"mentions,omitempty"`
}

// Table is a table caption plus where it is mentioned in the text
type Table struct {
	ID       string   `json:"id"`
	Caption  string   `json:"caption"`
	Mentions []string `json:"mentions,omitempty"`
}

// HasFacet reports whether the span is labelled with f
func (s Span) HasFacet(f Facet) bool {
	for _, got := range s.Facets {
		if got == f {
			return true
		}
	}
	return false
}

// Validate checks that every span lies inside the section text
func (s Section) Validate() error {
	for i, span := range s.Spans {
		if span.Start < 0 || span.Start > span.End || span.End > len(s.Text) {
			return fmt.Errorf("section %q span %d: range [%d,%d) outside text of length %d",
				s.Name, i, span.Start, span.End, len(s.Text))
		}
	}
	return nil
}

// Validate checks the paper for structural problems
func (p *Paper) Validate() error {
	if len(p.Sections) == 0 {
		return fmt.Errorf("paper %q has no sections", p.Title)
	}
	for _, s := range p.Sections {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Tagged reports whether any section carries spans
func (p *Paper) Tagged() bool {
	for _, s := range p.Sections {
		if len(s.Spans) > 0 {
			return true
		}
	}
	return false
}
