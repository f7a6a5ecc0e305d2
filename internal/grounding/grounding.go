package grounding

import "github.com/ppiankov/peerpanel/internal/model"

// Enforce drops every point without a grounding reference. It does not
// modify r and is idempotent.
func Enforce(r model.Review) model.Review {
	out := r.Clone()
	out.Strengths = grounded(r.Strengths)
	out.Weaknesses = grounded(r.Weaknesses)
	out.Suggestions = grounded(r.Suggestions)
	return out
}

// Filter applies Enforce only when required is set
func Filter(r model.Review, required bool) model.Review {
	if !required {
		return r.Clone()
	}
	return Enforce(r)
}

// Dropped counts the points Enforce would remove
func Dropped(r model.Review) int {
	return r.PointCount() - Enforce(r).PointCount()
}

func grounded(points []model.Point) []model.Point {
	out := make([]model.Point, 0, len(points))
	for _, p := range points {
		if p.Grounded() {
			out = append(out, p)
		}
	}
	return out
}
