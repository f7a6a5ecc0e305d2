package merge

import (
	"context"

	"github.com/ppiankov/peerpanel/internal/model"
)

// SimpleSummary is the fixed summary written by the simple merger
const SimpleSummary = "This review aggregates facet-specialist feedback. " +
	"Strengths include clear methods and positioning; weaknesses center on statistical rigor and comparative evidence."

// SimpleMerger deduplicates points by kind and normalised text, keeping the
// first occurrence. It never calls a generator and never fails.
type SimpleMerger struct{}

// NewSimpleMerger creates a simple merger
func NewSimpleMerger() *SimpleMerger {
	return &SimpleMerger{}
}

// Name returns the merger name
func (m *SimpleMerger) Name() string {
	return model.MergeSimple
}

// Merge partitions and deduplicates points. Scores are left unset.
func (m *SimpleMerger) Merge(ctx context.Context, points []model.Point, rubric model.Rubric, paper *model.Paper) (model.Review, error) {
	strengths, weaknesses, suggestions := partition(Dedup(points))
	return model.Review{
		Summary:     SimpleSummary,
		Strengths:   strengths,
		Weaknesses:  weaknesses,
		Suggestions: suggestions,
	}, nil
}

// Dedup keeps the first point for every dedup key. Which key survives does
// not depend on input order, only which duplicate represents it.
func Dedup(points []model.Point) []model.Point {
	seen := make(map[string]bool, len(points))
	out := make([]model.Point, 0, len(points))
	for _, p := range points {
		key := p.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
