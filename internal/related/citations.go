// Package related finds the papers a manuscript cites that are most relevant
// to it, and fetches their metadata for the related-work reviewer.
package related

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/peerpanel/internal/model"
)

const contextChars = 1000

var (
	citationLine = regexp.MustCompile(`\[[0-9]+\]|\(19[0-9]{2}\)|\(20[0-9]{2}\)`)
	entryStart   = regexp.MustCompile(`^\s*(\[[0-9]+\]|[0-9]+\.|•)\s+`)
	tokenPattern = regexp.MustCompile(`[a-z0-9]+`)
)

// ExtractCitations returns the raw reference strings of a paper. Lines of a
// References or Bibliography section are used when present; otherwise any
// line that looks like a citation. Wrapped lines are merged back into one
// entry per reference.
func ExtractCitations(paper *model.Paper) []string {
	var lines []string
	for _, s := range paper.Sections {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if strings.HasPrefix(name, "references") || strings.HasPrefix(name, "bibliography") {
			lines = append(lines, nonBlankLines(s.Text)...)
		}
	}
	if len(lines) > 0 {
		return mergeWrapped(lines)
	}

	for _, s := range paper.Sections {
		for _, ln := range strings.Split(s.Text, "\n") {
			if citationLine.MatchString(ln) {
				lines = append(lines, strings.TrimSpace(ln))
			}
		}
	}
	return mergeWrapped(lines)
}

func nonBlankLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// mergeWrapped joins continuation lines onto the entry they belong to. A new
// entry starts at "[n] ", "n. " or a bullet.
func mergeWrapped(lines []string) []string {
	var merged []string
	var buf []string
	flush := func() {
		if s := strings.Join(strings.Fields(strings.Join(buf, " ")), " "); s != "" {
			merged = append(merged, s)
		}
	}
	for _, ln := range lines {
		if entryStart.MatchString(ln) && len(buf) > 0 {
			flush()
			buf = buf[:0]
		}
		buf = append(buf, ln)
	}
	if len(buf) > 0 {
		flush()
	}
	return merged
}

// Rank orders citations by token overlap with the paper's title and opening
// sections and returns at most k. Ties keep their input order.
func Rank(paper *model.Paper, citations []string, k int) []string {
	if k <= 0 || len(citations) == 0 {
		return nil
	}

	parts := []string{paper.Title}
	for i, s := range paper.Sections {
		if i == 2 {
			break
		}
		parts = append(parts, truncateRunes(s.Text, contextChars))
	}
	query := tokenSet(strings.Join(parts, "\n"))

	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, len(citations))
	for i, c := range citations {
		ranked[i] = scored{text: c, score: dice(query, tokenSet(c))}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]string, 0, k)
	for _, r := range ranked[:min(k, len(ranked))] {
		if strings.TrimSpace(r.text) != "" {
			out = append(out, r.text)
		}
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// dice is the Sørensen-Dice coefficient of two token sets
func dice(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range b {
		if _, ok := a[tok]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
