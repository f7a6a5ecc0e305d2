// Package keywords holds the deterministic keyword rules shared by the
// rebuttal generator fallback, the keyword verifier and the revision engine.
package keywords

import (
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
)

// Evidence markers are matched case-sensitively: they are section, table,
// figure and appendix references as they appear in rebuttal prose.
var evidenceMarkers = []string{"Sec", "Table", "Fig", "Appendix"}

var weakMarkers = []string{"clarification", "misunderstanding", "context"}

var softMarkers = []string{"misunderstanding", "missing context", "clarification"}

// HasEvidenceMarker reports whether text cites a section, table, figure or appendix
func HasEvidenceMarker(text string) bool {
	for _, m := range evidenceMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// HasSoftMarker reports whether text claims the critique was a misreading
func HasSoftMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range softMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Classify is the keyword verifier rule
func Classify(rebuttal string) model.Status {
	if HasEvidenceMarker(rebuttal) {
		return model.StatusOK
	}
	lower := strings.ToLower(rebuttal)
	for _, m := range weakMarkers {
		if strings.Contains(lower, m) {
			return model.StatusWeak
		}
	}
	return model.StatusUnverified
}

type fallbackRule struct {
	cues     []string
	response string
}

var fallbackRules = []fallbackRule{
	{
		cues:     []string{"confidence interval"},
		response: "MISUNDERSTANDING: Confidence intervals are provided in Appendix B (see Table B.3).",
	},
	{
		cues:     []string{"power"},
		response: "VALID POINT: We will add a power analysis for the affected experiments.",
	},
	{
		cues:     []string{"statistical", "significance"},
		response: "CLARIFICATION: Significance tests are reported in Sec 4.2; we will state the test used in each caption.",
	},
	{
		cues:     []string{"baseline", "comparison"},
		response: "VALID POINT: We will extend the baseline comparison in the revised experiments section.",
	},
}

const defaultFallback = "MISSING CONTEXT: Related results in Sec 4.3 address this partially."

// RebuttalFallback returns a canned author response for a critique. It is
// used when the generator fails and never returns an empty string.
func RebuttalFallback(p model.Point) string {
	lower := strings.ToLower(p.Text)
	for _, rule := range fallbackRules {
		for _, cue := range rule.cues {
			if strings.Contains(lower, cue) {
				return rule.response
			}
		}
	}
	return defaultFallback
}
