package model

import "strings"

// PointKind classifies a review point. The set is closed.
type PointKind string

const (
	KindStrength   PointKind = "strength"
	KindWeakness   PointKind = "weakness"
	KindSuggestion PointKind = "suggestion"
)

// ParsePointKind normalises s and reports whether it names a valid kind
func ParsePointKind(s string) (PointKind, bool) {
	switch k := PointKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindStrength, KindWeakness, KindSuggestion:
		return k, true
	}
	return "", false
}

// Point is the atomic unit of reviewer feedback. Points are values: stages
// build new points instead of editing existing ones.
type Point struct {
	Kind      PointKind `json:"kind"`
	Text      string    `json:"text"`
	Grounding string    `json:"grounding,omitempty"` // e.g. "Sec 3.2", "Table 2"
	Facet     Facet     `json:"facet,omitempty"`
}

// Grounded reports whether the point cites a location in the paper
func (p Point) Grounded() bool {
	return strings.TrimSpace(p.Grounding) != ""
}

// DedupKey identifies duplicate points: same kind and same text after
// lowercasing, trimming and collapsing inner whitespace.
func (p Point) DedupKey() string {
	return string(p.Kind) + "\x00" + NormalizeText(p.Text)
}

// NormalizeText lowercases s and collapses whitespace runs to one space
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Review is the structured output of the pipeline
type Review struct {
	Summary     string         `json:"summary"`
	Strengths   []Point        `json:"strengths"`
	Weaknesses  []Point        `json:"weaknesses"`
	Suggestions []Point        `json:"suggestions"`
	Scores      map[string]int `json:"scores,omitempty"`
	Overall     *int           `json:"overall,omitempty"`
	Confidence  *int           `json:"confidence,omitempty"`
}

// Clone returns a deep copy of the review
func (r Review) Clone() Review {
	out := Review{
		Summary:     r.Summary,
		Strengths:   clonePoints(r.Strengths),
		Weaknesses:  clonePoints(r.Weaknesses),
		Suggestions: clonePoints(r.Suggestions),
	}
	if r.Scores != nil {
		out.Scores = make(map[string]int, len(r.Scores))
		for k, v := range r.Scores {
			out.Scores[k] = v
		}
	}
	if r.Overall != nil {
		v := *r.Overall
		out.Overall = &v
	}
	if r.Confidence != nil {
		v := *r.Confidence
		out.Confidence = &v
	}
	return out
}

// clonePoints never returns nil, so empty lists encode as []
func clonePoints(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// Critiques returns weaknesses followed by suggestions
func (r Review) Critiques() []Point {
	out := make([]Point, 0, len(r.Weaknesses)+len(r.Suggestions))
	out = append(out, r.Weaknesses...)
	return append(out, r.Suggestions...)
}

// PointCount returns the total number of points across all lists
func (r Review) PointCount() int {
	return len(r.Strengths) + len(r.Weaknesses) + len(r.Suggestions)
}

// Rubric describes the scoring aspects and scale
type Rubric struct {
	Aspects []string `yaml:"aspects" mapstructure:"aspects" json:"aspects"`
	Min     int      `yaml:"min" mapstructure:"min" json:"min"`
	Max     int      `yaml:"max" mapstructure:"max" json:"max"`
}

// DefaultRubric returns the standard four-aspect 1-10 rubric
func DefaultRubric() Rubric {
	return Rubric{
		Aspects: []string{"originality", "soundness", "clarity", "impact"},
		Min:     1,
		Max:     10,
	}
}

// Clamp bounds v to the rubric scale
func (r Rubric) Clamp(v int) int {
	if r.Max <= r.Min {
		return v
	}
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// HasAspect reports whether name is a rubric aspect (case-insensitive)
func (r Rubric) HasAspect(name string) bool {
	for _, a := range r.Aspects {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
