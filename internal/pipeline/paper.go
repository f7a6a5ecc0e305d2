package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/worker"
)

// LoadPaper reads a paper JSON document. A paper without an id takes the
// file name without extension.
func LoadPaper(path string) (*model.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read paper: %w", err)
	}

	var paper model.Paper
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("parse paper %s: %w", path, err)
	}
	if paper.ID == "" {
		paper.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := paper.Validate(); err != nil {
		return nil, fmt.Errorf("invalid paper %s: %w", path, err)
	}
	return &paper, nil
}

// ListPapers expands a batch input: a directory yields its *.json files in
// name order, any other file is read as a list of paper paths.
func ListPapers(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return worker.ReadInputsFromFile(path)
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
