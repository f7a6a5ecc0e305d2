package llm

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
)

// Prompt lines the mock provider reads back. Prompt builders include them
// so offline runs produce point-specific output.
const (
	FacetMarker = "Focus facet: "
	PointMarker = "Point: "
)

// MockProvider returns deterministic canned output keyed by Options.Task.
// It needs no network and backs offline runs and tests.
type MockProvider struct {
	// Responses overrides the canned output per task
	Responses map[string]string
	// Err, when set, is returned by every call
	Err error

	mu    sync.Mutex
	calls map[string]int
}

// NewMockProvider creates a mock provider with canned responses
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Responses: make(map[string]string),
		calls:     make(map[string]int),
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// IsAvailable always reports true
func (p *MockProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// Calls returns how many times task was requested
func (p *MockProvider) Calls(task string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[task]
}

// Generate returns the canned response for opts.Task
func (p *MockProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[opts.Task]++
	override, ok := p.Responses[opts.Task]
	p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	if ok {
		return override, nil
	}

	switch opts.Task {
	case TaskReviewer:
		return mockReviewerPoints(markerValue(prompt, FacetMarker)), nil
	case TaskRelated:
		return mockRelatedPoints, nil
	case TaskMerge:
		return mockMergedReview, nil
	case TaskRebuttal:
		if point := markerValue(prompt, PointMarker); point != "" {
			return fmt.Sprintf("MISUNDERSTANDING: %s is addressed in Appendix B.", strings.TrimSuffix(point, ".")), nil
		}
		return "CLARIFICATION: The raised concerns are addressed in Sec 4 and Appendix B.", nil
	case TaskVerify:
		return "OK", nil
	default:
		return "", fmt.Errorf("mock: no canned response for task %q", opts.Task)
	}
}

func markerValue(prompt, marker string) string {
	scanner := bufio.NewScanner(strings.NewReader(prompt))
	scanner.Buffer(make([]byte, 0, 64*1024), len(prompt)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
	}
	return ""
}

func mockReviewerPoints(facet string) string {
	if facet == "" {
		facet = "general"
	}
	label := strings.ReplaceAll(facet, "_", " ")
	return fmt.Sprintf(`[
  {"kind": "strength", "text": "The %[2]s aspects are clearly organised.", "grounding": "Sec 1", "facet": "%[1]s"},
  {"kind": "weakness", "text": "Statistical power for the %[2]s claims is unclear.", "grounding": "Sec 4.2", "facet": "%[1]s"},
  {"kind": "suggestion", "text": "Report confidence intervals for the %[2]s results.", "facet": "%[1]s"}
]`, facet, label)
}

const mockRelatedPoints = `[
  {"kind": "weakness", "text": "Comparison with closely related baselines is incomplete.", "grounding": "Related Work", "facet": "related_work"}
]`

const mockMergedReview = `{
  "summary": "The paper presents a clearly organised study, but statistical support for the main claims needs strengthening.",
  "strengths": [
    {"text": "The methods are clearly organised.", "grounding": "Sec 3", "facet": "methods"}
  ],
  "weaknesses": [
    {"text": "Statistical power for the main comparison is unclear.", "grounding": "Sec 4.2", "facet": "claims_vs_evidence"},
    {"text": "Baseline comparison omits recent methods.", "grounding": "", "facet": "novelty"}
  ],
  "suggestions": [
    {"text": "Report confidence intervals for the main results.", "grounding": "Table 2", "facet": "figures_tables"}
  ],
  "scores": {"originality": 6, "soundness": 5, "clarity": 7, "impact": 6},
  "overall": 6,
  "confidence": 3
}`
