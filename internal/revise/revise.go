// Package revise applies verified author rebuttals back onto a review.
package revise

import (
	"strings"
	"unicode"

	"github.com/ppiankov/peerpanel/internal/keywords"
	"github.com/ppiankov/peerpanel/internal/model"
)

const (
	// DemotionPrefix starts the text of a weakness resolved as a misreading
	DemotionPrefix = "Consider clarifying: "
	// WeakSuffix is appended to points whose rebuttal was judged weak
	WeakSuffix = " (Author response noted but lacks specificity)"

	matchWords       = 4
	minOverlapLen    = 4
	newGroundingLen  = 120
	noteGroundingLen = 80
	noteMarker       = "(author clarification:"
)

// Action is what revision did to a point
type Action string

const (
	ActionDemoted   Action = "demoted"
	ActionGrounded  Action = "grounded"
	ActionAnnotated Action = "annotated"
)

// Change records one revised point
type Change struct {
	Action   Action       `json:"action"`
	Status   model.Status `json:"status"`
	Rebuttal int          `json:"rebuttal"`
	Before   model.Point  `json:"before"`
	After    model.Point  `json:"after"`
}

// Revise returns a copy of review updated by the verified rebuttals.
// verifications[i] is the status of rebuttals[i]; a missing entry counts as
// UNVERIFIED. Strengths are never touched and no point becomes a strength.
func Revise(review model.Review, rebuttals []string, verifications []model.Verification) model.Review {
	out, _ := ReviseWithLog(review, rebuttals, verifications)
	return out
}

// ReviseWithLog is Revise plus the list of changes made
func ReviseWithLog(review model.Review, rebuttals []string, verifications []model.Verification) (model.Review, []Change) {
	out := review.Clone()
	var changes []Change

	weaknesses := make([]model.Point, 0, len(review.Weaknesses))
	var demoted []model.Point
	for _, p := range review.Weaknesses {
		revised, change := revisePoint(p, rebuttals, verifications)
		if change != nil {
			changes = append(changes, *change)
		}
		if revised.Kind == model.KindSuggestion {
			demoted = append(demoted, revised)
			continue
		}
		weaknesses = append(weaknesses, revised)
	}

	suggestions := make([]model.Point, 0, len(review.Suggestions)+len(demoted))
	for _, p := range review.Suggestions {
		revised, change := revisePoint(p, rebuttals, verifications)
		if change != nil {
			changes = append(changes, *change)
		}
		suggestions = append(suggestions, revised)
	}

	out.Weaknesses = weaknesses
	out.Suggestions = append(suggestions, demoted...)
	return out, changes
}

func revisePoint(p model.Point, rebuttals []string, verifications []model.Verification) (model.Point, *Change) {
	idx := Match(p.Text, rebuttals)
	if idx < 0 {
		return p, nil
	}
	rebuttal := rebuttals[idx]
	status := model.StatusUnverified
	if idx < len(verifications) {
		status = verifications[idx].Status
	}

	var action Action
	revised := p
	switch status {
	case model.StatusOK:
		switch {
		case keywords.HasSoftMarker(rebuttal):
			if p.Kind != model.KindWeakness {
				return p, nil
			}
			revised.Kind = model.KindSuggestion
			revised.Text = DemotionPrefix + p.Text
			action = ActionDemoted
		case keywords.HasEvidenceMarker(rebuttal):
			g, ok := augmentGrounding(p.Grounding, rebuttal)
			if !ok {
				return p, nil
			}
			revised.Grounding = g
			action = ActionGrounded
		default:
			return p, nil
		}
	case model.StatusWeak:
		if strings.HasSuffix(p.Text, WeakSuffix) {
			return p, nil
		}
		revised.Text = p.Text + WeakSuffix
		action = ActionAnnotated
	default:
		return p, nil
	}

	return revised, &Change{Action: action, Status: status, Rebuttal: idx, Before: p, After: revised}
}

func augmentGrounding(grounding, rebuttal string) (string, bool) {
	if strings.TrimSpace(grounding) == "" {
		return `From rebuttal: "` + quote(rebuttal, newGroundingLen) + `"`, true
	}
	if strings.Contains(grounding, noteMarker) {
		return grounding, false
	}
	return grounding + " " + noteMarker + ` "` + quote(rebuttal, noteGroundingLen) + `")`, true
}

func quote(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.TrimSpace(string(r))
}

// Match returns the index of the rebuttal answering a point with this text,
// or -1. The first rebuttal containing the point's first four words wins;
// otherwise the first sharing any word longer than three characters.
func Match(text string, rebuttals []string) int {
	words := strings.Fields(model.NormalizeText(text))
	if len(words) == 0 {
		return -1
	}
	if len(words) > matchWords {
		words = words[:matchWords]
	}
	key := strings.Join(words, " ")

	for i, r := range rebuttals {
		if strings.Contains(model.NormalizeText(r), key) {
			return i
		}
	}

	pointWords := longTokens(text)
	if len(pointWords) == 0 {
		return -1
	}
	for i, r := range rebuttals {
		for w := range longTokens(r) {
			if pointWords[w] {
				return i
			}
		}
	}
	return -1
}

// longTokens returns the lowercase letter/digit runs longer than three characters
func longTokens(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minOverlapLen {
			out[f] = true
		}
	}
	return out
}
