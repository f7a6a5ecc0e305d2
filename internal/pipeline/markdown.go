package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
)

// RenderMarkdown formats the final review of res, followed by the author
// rebuttal, its verification and the revisions it caused
func RenderMarkdown(res *Result, modelName, tag string) string {
	var b strings.Builder
	review := res.Final()

	title := res.Paper.Title
	if title == "" {
		title = res.Paper.ID
	}
	fmt.Fprintf(&b, "# Review: %s\n\n", title)
	fmt.Fprintf(&b, "_Paper `%s` · model `%s` · config `%s`_\n\n", res.Paper.ID, modelName, tag)

	b.WriteString("## Summary\n\n")
	if review.Summary != "" {
		b.WriteString(review.Summary)
		b.WriteString("\n\n")
	} else {
		b.WriteString("_No summary._\n\n")
	}

	writePoints(&b, "Strengths", review.Strengths)
	writePoints(&b, "Weaknesses", review.Weaknesses)
	writePoints(&b, "Suggestions", review.Suggestions)

	if len(review.Scores) > 0 || review.Overall != nil || review.Confidence != nil {
		b.WriteString("## Scores\n\n")
		if len(review.Scores) > 0 {
			b.WriteString("| Aspect | Score |\n|---|---|\n")
			for _, aspect := range scoreOrder(review.Scores) {
				fmt.Fprintf(&b, "| %s | %d |\n", aspect, review.Scores[aspect])
			}
			b.WriteString("\n")
		}
		if review.Overall != nil {
			fmt.Fprintf(&b, "**Overall:** %d\n\n", *review.Overall)
		}
		if review.Confidence != nil {
			fmt.Fprintf(&b, "**Confidence:** %d/5\n\n", *review.Confidence)
		}
	}

	if res.Rebuttal != nil {
		writeRebuttal(&b, res)
	}

	if len(res.Stats.FailedFacets) > 0 || res.Stats.DroppedUngrounded > 0 {
		b.WriteString("---\n\n")
		if len(res.Stats.FailedFacets) > 0 {
			facets := make([]string, len(res.Stats.FailedFacets))
			for i, f := range res.Stats.FailedFacets {
				facets[i] = string(f)
			}
			fmt.Fprintf(&b, "_Reviewer agents that failed: %s._\n\n", strings.Join(facets, ", "))
		}
		if res.Stats.DroppedUngrounded > 0 {
			fmt.Fprintf(&b, "_%d ungrounded point(s) were removed._\n\n", res.Stats.DroppedUngrounded)
		}
	}
	return b.String()
}

func writePoints(b *strings.Builder, heading string, points []model.Point) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(points) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	for _, p := range points {
		b.WriteString("- ")
		b.WriteString(p.Text)
		if p.Grounded() {
			fmt.Fprintf(b, " _(%s)_", p.Grounding)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeRebuttal(b *strings.Builder, res *Result) {
	entries := res.Rebuttal.Entries()
	b.WriteString("## Author Rebuttal\n\n")
	if len(entries) == 0 {
		b.WriteString("_No critiques to answer._\n\n")
		return
	}
	for i, entry := range entries {
		status := model.StatusUnverified
		if i < len(res.Verifications) {
			status = res.Verifications[i].Status
		}
		fmt.Fprintf(b, "%d. **[%s]** %s\n", i+1, status, strings.TrimSpace(entry))
	}
	b.WriteString("\n")

	if len(res.Changes) > 0 {
		b.WriteString("## Revisions\n\n")
		for _, c := range res.Changes {
			fmt.Fprintf(b, "- %s (%s): %s\n", c.Action, c.Status, c.After.Text)
		}
		b.WriteString("\n")
	}
}

// scoreOrder lists the rubric aspects first in their canonical order, then
// any others alphabetically
func scoreOrder(scores map[string]int) []string {
	var out []string
	seen := make(map[string]bool, len(scores))
	for _, a := range model.DefaultRubric().Aspects {
		if _, ok := scores[a]; ok {
			out = append(out, a)
			seen[a] = true
		}
	}
	var rest []string
	for a := range scores {
		if !seen[a] {
			rest = append(rest, a)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
