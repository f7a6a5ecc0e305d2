package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

const synthesisSystem = `You are the lead reviewer. Merge the facet reviewers' points into one coherent review.
Remove duplicates and near-duplicates, combine overlapping points, keep the strongest grounding for each.
Respond with one JSON object only.`

// SynthesisMerger asks the generator to deduplicate and synthesise the
// points into one review
type SynthesisMerger struct {
	gen    llm.Generator
	policy model.CallPolicy
	logger *zap.Logger
}

// NewSynthesisMerger creates a synthesis merger
func NewSynthesisMerger(gen llm.Generator, policy model.CallPolicy, logger *zap.Logger) *SynthesisMerger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynthesisMerger{gen: gen, policy: policy, logger: logger}
}

// Name returns the merger name
func (m *SynthesisMerger) Name() string {
	return model.MergeSynthesis
}

// Merge makes one generator call. Any failure is returned wrapping ErrSynthesis.
func (m *SynthesisMerger) Merge(ctx context.Context, points []model.Point, rubric model.Rubric, paper *model.Paper) (model.Review, error) {
	strengths, weaknesses, suggestions := partition(points)
	prompt := buildSynthesisPrompt(paper.Title, rubric, strengths, weaknesses, suggestions)
	m.logger.Debug("merge prompt", zap.Int("points", len(points)), zap.Int("chars", len(prompt)))

	opts := llm.PolicyOptions(llm.TaskMerge, m.policy)
	opts.System = synthesisSystem

	response, err := m.gen.Generate(ctx, prompt, opts)
	if err != nil {
		return model.Review{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	review, err := ParseSynthesis(response, rubric)
	if err != nil {
		return model.Review{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return review, nil
}

func buildSynthesisPrompt(title string, rubric model.Rubric, strengths, weaknesses, suggestions []model.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Paper title: %s\n\n", title)
	fmt.Fprintf(&b, "Rubric aspects (score each %d-%d): %s\n\n", rubric.Min, rubric.Max, strings.Join(rubric.Aspects, ", "))

	writeBullets(&b, "STRENGTHS", strengths)
	writeBullets(&b, "WEAKNESSES", weaknesses)
	writeBullets(&b, "SUGGESTIONS", suggestions)

	b.WriteString(`Return JSON with this shape:
{"summary": "...",
 "strengths": [{"text": "...", "grounding": "...", "facet": "..."}],
 "weaknesses": [{"text": "...", "grounding": "...", "facet": "..."}],
 "suggestions": [{"text": "...", "grounding": "...", "facet": "..."}],
 "scores": {"<aspect>": <int>}, "overall": <int>, "confidence": <int 1-5>}
`)
	return b.String()
}

func writeBullets(b *strings.Builder, heading string, points []model.Point) {
	fmt.Fprintf(b, "%s (%d):\n", heading, len(points))
	if len(points) == 0 {
		b.WriteString("- (none)\n\n")
		return
	}
	for _, p := range points {
		fmt.Fprintf(b, "- %s", p.Text)
		if p.Grounding != "" {
			fmt.Fprintf(b, " [grounding: %s]", p.Grounding)
		}
		if p.Facet != "" {
			fmt.Fprintf(b, " (facet: %s)", p.Facet)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

type synthesisResponse struct {
	Summary     string             `json:"summary"`
	Strengths   []json.RawMessage  `json:"strengths"`
	Weaknesses  []json.RawMessage  `json:"weaknesses"`
	Suggestions []json.RawMessage  `json:"suggestions"`
	Scores      map[string]float64 `json:"scores"`
	Overall     *float64           `json:"overall"`
	Confidence  *float64           `json:"confidence"`
}

type synthesisEntry struct {
	Text      string `json:"text"`
	Grounding string `json:"grounding"`
	Facet     string `json:"facet"`
}

const (
	minConfidence = 1
	maxConfidence = 5
)

// ParseSynthesis decodes a synthesis response. Points take their kind from
// the list they appear in; entries without text are dropped. Scores outside
// the rubric are dropped and the rest are clamped to its scale.
func ParseSynthesis(response string, rubric model.Rubric) (model.Review, error) {
	payload := llm.ExtractJSON(response)
	if payload == "" || !strings.HasPrefix(payload, "{") {
		return model.Review{}, fmt.Errorf("no JSON object in response")
	}

	var raw synthesisResponse
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return model.Review{}, fmt.Errorf("decode synthesis: %w", err)
	}

	review := model.Review{
		Summary:     strings.TrimSpace(raw.Summary),
		Strengths:   entriesToPoints(raw.Strengths, model.KindStrength),
		Weaknesses:  entriesToPoints(raw.Weaknesses, model.KindWeakness),
		Suggestions: entriesToPoints(raw.Suggestions, model.KindSuggestion),
	}
	if review.Summary == "" && review.PointCount() == 0 {
		return model.Review{}, fmt.Errorf("synthesis response has no summary and no points")
	}

	for aspect, v := range raw.Scores {
		if !rubric.HasAspect(aspect) {
			continue
		}
		if review.Scores == nil {
			review.Scores = make(map[string]int)
		}
		review.Scores[strings.ToLower(aspect)] = rubric.Clamp(int(math.Round(v)))
	}
	if raw.Overall != nil {
		v := rubric.Clamp(int(math.Round(*raw.Overall)))
		review.Overall = &v
	}
	if raw.Confidence != nil {
		v := int(math.Round(*raw.Confidence))
		v = max(minConfidence, min(maxConfidence, v))
		review.Confidence = &v
	}
	return review, nil
}

// entriesToPoints accepts {text, grounding, facet} objects or bare strings
func entriesToPoints(entries []json.RawMessage, kind model.PointKind) []model.Point {
	points := make([]model.Point, 0, len(entries))
	for _, raw := range entries {
		var e synthesisEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				continue
			}
			e = synthesisEntry{Text: s}
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		p := model.Point{Kind: kind, Text: text, Grounding: strings.TrimSpace(e.Grounding)}
		if f := model.Facet(strings.TrimSpace(e.Facet)); f.Valid() {
			p.Facet = f
		}
		points = append(points, p)
	}
	return points
}
