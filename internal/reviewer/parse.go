package reviewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

// ErrNoJSON is returned when a response holds no JSON list or object
var ErrNoJSON = errors.New("no JSON found in response")

// ParsePoints decodes a generator response into points. It accepts a bare
// array, an object with a "points" array, and fenced JSON. Records without
// a valid kind or a non-blank text are dropped. max <= 0 keeps everything.
func ParsePoints(response string, max int) ([]model.Point, error) {
	payload := llm.ExtractJSON(response)
	if payload == "" {
		return nil, ErrNoJSON
	}

	var records []json.RawMessage
	if strings.HasPrefix(payload, "{") {
		var wrapper struct {
			Points []json.RawMessage `json:"points"`
		}
		if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
			return nil, fmt.Errorf("decode points object: %w", err)
		}
		records = wrapper.Points
	} else if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("decode points array: %w", err)
	}

	points := make([]model.Point, 0, len(records))
	for _, raw := range records {
		var rec map[string]any
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		p, ok := pointFromRecord(rec)
		if !ok {
			continue
		}
		points = append(points, p)
		if max > 0 && len(points) == max {
			break
		}
	}
	return points, nil
}

func pointFromRecord(rec map[string]any) (model.Point, bool) {
	kind, ok := model.ParsePointKind(stringField(rec, "kind"))
	if !ok {
		return model.Point{}, false
	}
	text := strings.TrimSpace(stringField(rec, "text"))
	if text == "" {
		return model.Point{}, false
	}

	p := model.Point{
		Kind:      kind,
		Text:      text,
		Grounding: strings.TrimSpace(stringField(rec, "grounding")),
	}
	// Unknown facet labels are ignored, not fatal
	if f := model.Facet(strings.TrimSpace(stringField(rec, "facet"))); f.Valid() {
		p.Facet = f
	}
	return p, true
}

func stringField(rec map[string]any, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}
