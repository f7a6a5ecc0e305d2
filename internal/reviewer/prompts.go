package reviewer

import (
	"fmt"
	"strings"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

const systemPrompt = `You are an expert scientific peer reviewer.
Respond with JSON only: an array of objects with keys "kind" (strength, weakness or suggestion), "text", "grounding" and "facet".
Ground every point in the paper (for example "Sec 3.2", "Table 2", "Fig 4") or write "Insufficient evidence".`

var facetInstructions = map[model.Facet]string{
	model.FacetMethods: "Assess the soundness of the methodology: assumptions, design choices, " +
		"baselines, statistical analysis and whether the experiments can support the stated goals.",
	model.FacetNovelty: "Assess novelty: what the paper adds over prior work, whether the claimed " +
		"contributions are new, and whether positioning against related work is accurate.",
	model.FacetClaimsVsEvidence: "Check each central claim against the evidence offered. Flag claims that " +
		"are overstated, lack significance testing, or are not supported by the reported results.",
	model.FacetReproducibility: "Assess reproducibility: availability of code and data, hyperparameters, " +
		"compute budget, random seeds and enough detail to re-run the experiments.",
	model.FacetEthicsLicensing: "Assess ethical considerations: dataset licensing and consent, privacy, " +
		"potential misuse, and whether limitations are acknowledged.",
	model.FacetClarityPresentation: "Assess clarity and presentation: structure, notation, writing quality, " +
		"and whether a reader can follow the argument without outside help.",
	model.FacetFiguresTables: "Assess figures and tables: readability, labelling, error bars or confidence " +
		"intervals, and whether they support the claims made in the text.",
	model.FacetSocietalImpact: "Assess broader societal impact: who benefits, who might be harmed, and " +
		"whether the paper discusses deployment risks and mitigations.",
}

// Instruction returns the review instruction for a facet
func Instruction(f model.Facet) string {
	if s, ok := facetInstructions[f]; ok {
		return s
	}
	return "Review the paper for the " + strings.ReplaceAll(string(f), "_", " ") + " facet."
}

func buildFacetPrompt(f model.Facet, title, facetText string, maxPoints int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Paper title: %s\n", title)
	b.WriteString(llm.FacetMarker + string(f) + "\n\n")
	b.WriteString(Instruction(f))
	b.WriteString("\n")
	writePointLimit(&b, maxPoints)
	b.WriteString("\nPaper excerpt:\n")
	b.WriteString(facetText)
	b.WriteString("\n")
	return b.String()
}

// writePointLimit adds the point cap line; a non-positive cap means unlimited
func writePointLimit(b *strings.Builder, maxPoints int) {
	if maxPoints > 0 {
		fmt.Fprintf(b, "Return at most %d points.\n", maxPoints)
	}
}

const relatedAbstractChars = 1200

func buildRelatedPrompt(title, paperContext string, related []model.RelatedPaper, maxPoints int) string {
	var b strings.Builder
	b.WriteString("You are the related-work reviewer. Compare the current paper with the cited papers below.\n")
	b.WriteString("Focus on novelty and methods: state what this paper adds over prior work, where it differs in " +
		"assumptions, architecture, training or evaluation, and which baselines are appropriate.\n")
	writePointLimit(&b, maxPoints)
	b.WriteString("\n")
	b.WriteString(llm.FacetMarker + string(model.FacetRelatedWork) + "\n")
	fmt.Fprintf(&b, "Current paper: %s\n%s\n\n", title, paperContext)
	b.WriteString("Related papers:\n")
	for i, r := range related {
		fmt.Fprintf(&b, "[%d] %s | %s\n", i+1, r.Title, r.Link())
		if r.Summary != "" {
			b.WriteString(truncate(r.Summary, relatedAbstractChars))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
