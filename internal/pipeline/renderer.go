package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/revise"
)

// ErrRunExists is returned when a paper already has outputs for this
// model and configuration
var ErrRunExists = errors.New("run already exists")

// Output file names inside a run directory
const (
	FileRawPoints    = "reviewer_points_raw.json"
	FileRouting      = "routing.json"
	FileOriginal     = "review_original.json"
	FileUpdated      = "review_updated.json"
	FileRebuttal     = "rebuttal.json"
	FileVerification = "verification.json"
	FileRun          = "run.json"
	FileMarkdown     = "review.md"
)

// Renderer writes run directories
type Renderer struct {
	outDir   string
	model    string
	tag      string
	force    bool
	markdown bool
}

// NewRenderer creates a renderer for the model and configuration in cfg
func NewRenderer(cfg *model.Config) *Renderer {
	return &Renderer{
		outDir:   cfg.Output.Dir,
		model:    cfg.LLM.Model,
		tag:      cfg.RunTag(),
		force:    cfg.Output.Force,
		markdown: cfg.Output.Markdown,
	}
}

// RunDir returns the output directory for a paper
func (r *Renderer) RunDir(paperID string) string {
	name := fmt.Sprintf("paper_%s_%s_%s", sanitizeName(paperID), sanitizeName(r.model), r.tag)
	return filepath.Join(r.outDir, name)
}

// Check returns ErrRunExists when the paper was already reviewed under this
// configuration and force is off
func (r *Renderer) Check(paperID string) error {
	if r.force {
		return nil
	}
	if _, err := os.Stat(filepath.Join(r.RunDir(paperID), FileOriginal)); err == nil {
		return fmt.Errorf("%w: %s", ErrRunExists, r.RunDir(paperID))
	}
	return nil
}

// runSummary is the run.json document
type runSummary struct {
	PaperID string          `json:"paper_id"`
	Title   string          `json:"title"`
	Model   string          `json:"model"`
	Config  string          `json:"config"`
	Merger  string          `json:"merger"`
	Stats   Stats           `json:"stats"`
	Changes []revise.Change `json:"changes"`
}

type outputFile struct {
	name string
	v    any
}

// Render writes every output file for res and returns the run directory
func (r *Renderer) Render(res *Result) (string, error) {
	dir := r.RunDir(res.Paper.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}

	files := []outputFile{
		{FileRawPoints, nonNil(res.RawPoints)},
		{FileRouting, res.Routing},
		{FileOriginal, res.Original},
	}
	if res.Rebuttal != nil {
		files = append(files,
			outputFile{FileRebuttal, res.Rebuttal},
			outputFile{FileVerification, nonNil(res.Verifications)},
			outputFile{FileUpdated, res.Updated},
		)
	}
	files = append(files, outputFile{FileRun, runSummary{
		PaperID: res.Paper.ID,
		Title:   res.Paper.Title,
		Model:   r.model,
		Config:  r.tag,
		Merger:  res.Merger,
		Stats:   res.Stats,
		Changes: nonNil(res.Changes),
	}})

	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.v); err != nil {
			return "", err
		}
	}

	if r.markdown {
		md := RenderMarkdown(res, r.model, r.tag)
		if err := os.WriteFile(filepath.Join(dir, FileMarkdown), []byte(md), 0644); err != nil {
			return "", fmt.Errorf("write %s: %w", FileMarkdown, err)
		}
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// nonNil makes empty lists encode as []
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// sanitizeName makes s safe as one path component
func sanitizeName(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		s = "unknown"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
