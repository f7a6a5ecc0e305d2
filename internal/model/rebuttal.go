package model

// Status is the verifier's judgement of a rebuttal's evidential support
type Status string

const (
	StatusOK         Status = "OK"
	StatusWeak       Status = "WEAK"
	StatusUnverified Status = "UNVERIFIED"
)

// Rank orders statuses by confidence: OK > WEAK > UNVERIFIED
func (s Status) Rank() int {
	switch s {
	case StatusOK:
		return 2
	case StatusWeak:
		return 1
	}
	return 0
}

// RebuttalMode selects how the author response is produced
type RebuttalMode string

const (
	RebuttalPerPoint     RebuttalMode = "per_point"
	RebuttalConsolidated RebuttalMode = "consolidated"
)

// Rebuttal is the simulated author response. Per-point mode fills Responses
// in the same order as the critiques it answers; consolidated mode fills Text.
type Rebuttal struct {
	Mode      RebuttalMode `json:"mode"`
	Responses []string     `json:"responses,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fallbacks int          `json:"fallbacks,omitempty"`
}

// Entries returns the rebuttal texts consumed by verification and revision.
// A consolidated rebuttal is a single entry.
func (r Rebuttal) Entries() []string {
	if r.Mode == RebuttalConsolidated {
		if r.Text == "" {
			return nil
		}
		return []string{r.Text}
	}
	return r.Responses
}

// Verification pairs a rebuttal with its verifier status
type Verification struct {
	Status   Status `json:"status"`
	Rebuttal string `json:"rebuttal"`
}

// RelatedPaper is citation metadata used by the related-work agent
type RelatedPaper struct {
	Title   string   `json:"title"`
	URL     string   `json:"url,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Year    int      `json:"year,omitempty"`
	Venue   string   `json:"venue,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// Link returns the DOI when known, else the URL
func (r RelatedPaper) Link() string {
	if r.DOI != "" {
		return r.DOI
	}
	return r.URL
}
