package related

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/model"
)

// Source supplies the related papers for a manuscript
type Source interface {
	TopRelated(ctx context.Context, paper *model.Paper, k int) ([]model.RelatedPaper, error)
}

// Lookuper resolves one citation string to metadata. It never fails.
type Lookuper interface {
	Lookup(ctx context.Context, citation string) model.RelatedPaper
}

// Finder extracts a paper's citations, ranks them and looks up the best ones
type Finder struct {
	lookup Lookuper
	logger *zap.Logger
}

// NewFinder creates a Finder resolving citations through lookup
func NewFinder(lookup Lookuper, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{lookup: lookup, logger: logger}
}

// TopRelated returns metadata for the k citations most relevant to paper,
// in rank order. Only cancellation is an error.
func (f *Finder) TopRelated(ctx context.Context, paper *model.Paper, k int) ([]model.RelatedPaper, error) {
	citations := ExtractCitations(paper)
	top := Rank(paper, citations, k)
	f.logger.Debug("ranked citations",
		zap.Int("extracted", len(citations)),
		zap.Int("selected", len(top)))

	out := make([]model.RelatedPaper, 0, len(top))
	for _, c := range top {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, f.lookup.Lookup(ctx, c))
	}
	return out, nil
}

// Static serves a fixed list of related papers, such as one read from disk
type Static []model.RelatedPaper

// TopRelated returns the first k papers
func (s Static) TopRelated(ctx context.Context, paper *model.Paper, k int) ([]model.RelatedPaper, error) {
	if k <= 0 {
		return nil, nil
	}
	return s[:min(k, len(s))], nil
}

type fileRecord struct {
	model.RelatedPaper
	Abstract string `json:"abstract,omitempty"`
}

// LoadRelatedFile reads a JSON array of related papers. "abstract" is
// accepted as an alias for "summary".
func LoadRelatedFile(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read related file: %w", err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse related file %s: %w", path, err)
	}

	out := make(Static, 0, len(records))
	for _, r := range records {
		p := r.RelatedPaper
		if p.Summary == "" {
			p.Summary = StripMarkup(r.Abstract)
		}
		if p.Title == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
