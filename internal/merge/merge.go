package merge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

// ErrSynthesis marks a failed or unparseable synthesis call
var ErrSynthesis = errors.New("review synthesis failed")

// Merger turns the points of all reviewer agents into one review
type Merger interface {
	Name() string
	Merge(ctx context.Context, points []model.Point, rubric model.Rubric, paper *model.Paper) (model.Review, error)
}

// New returns the merger selected by cfg. gen is only used by the
// synthesis strategy.
func New(cfg model.MergeConfig, gen llm.Generator, policy model.CallPolicy, logger *zap.Logger) (Merger, error) {
	switch cfg.Strategy {
	case model.MergeSimple:
		return NewSimpleMerger(), nil
	case model.MergeSynthesis, "":
		if gen == nil {
			return nil, fmt.Errorf("synthesis merge needs a generator")
		}
		var m Merger = NewSynthesisMerger(gen, policy, logger)
		if cfg.FallbackToSimple {
			m = NewFallbackMerger(m, NewSimpleMerger(), logger)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", cfg.Strategy)
	}
}

// partition splits points by kind, keeping input order within each kind
func partition(points []model.Point) (strengths, weaknesses, suggestions []model.Point) {
	strengths = make([]model.Point, 0)
	weaknesses = make([]model.Point, 0)
	suggestions = make([]model.Point, 0)
	for _, p := range points {
		switch p.Kind {
		case model.KindStrength:
			strengths = append(strengths, p)
		case model.KindWeakness:
			weaknesses = append(weaknesses, p)
		case model.KindSuggestion:
			suggestions = append(suggestions, p)
		}
	}
	return strengths, weaknesses, suggestions
}

// FallbackMerger uses fallback when primary fails
type FallbackMerger struct {
	primary  Merger
	fallback Merger
	logger   *zap.Logger
}

// NewFallbackMerger wraps primary with a fallback
func NewFallbackMerger(primary, fallback Merger, logger *zap.Logger) *FallbackMerger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackMerger{primary: primary, fallback: fallback, logger: logger}
}

// Name returns the merger name
func (m *FallbackMerger) Name() string {
	return m.primary.Name() + "+" + m.fallback.Name()
}

// Merge tries primary, then fallback
func (m *FallbackMerger) Merge(ctx context.Context, points []model.Point, rubric model.Rubric, paper *model.Paper) (model.Review, error) {
	review, err := m.primary.Merge(ctx, points, rubric, paper)
	if err == nil {
		return review, nil
	}
	if ctx.Err() != nil {
		return model.Review{}, err
	}
	m.logger.Warn("merge failed, using fallback",
		zap.String("merger", m.primary.Name()),
		zap.String("fallback", m.fallback.Name()),
		zap.Error(err))
	return m.fallback.Merge(ctx, points, rubric, paper)
}
