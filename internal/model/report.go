package model

import "time"

// Web analysis source labels.
const (
	WebSourceSERP     = "SERP Web Analysis"
	WebSourceFallback = "Fallback Analysis"
)

// WebAnalysis is the web-search-derived summary for a question.
// Produced once per job by the web collector; immutable after creation.
type WebAnalysis struct {
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence_score"`

	// Failed marks the collector's degraded path. Downstream stages branch
	// on this flag rather than sniffing failure markers out of Content.
	Failed bool `json:"failed,omitempty"`
}

// DirectAnswer is the language model's direct response to the question
// plus the brand/entity names extracted from it.
type DirectAnswer struct {
	Response string   `json:"response"`
	Brands   []string `json:"identified_brands"`
}

// BrandScore is one ranked entry in a visualization package.
type BrandScore struct {
	BrandName       string `json:"brand_name"`
	VisibilityScore int    `json:"visibility_score"`
	Rank            int    `json:"rank"`
	Mentions        int    `json:"mentions"`
}

// Visualization is the structured brand-visibility package synthesized
// from the web analysis. Always schema-valid: between 1 and 5 scores with
// ranks forming a contiguous permutation starting at 1.
type Visualization struct {
	ChartType   string       `json:"chart_type"`
	Title       string       `json:"title"`
	XAxisLabel  string       `json:"x_axis_label"`
	YAxisLabel  string       `json:"y_axis_label"`
	TopBrands   []string     `json:"top_5_brands"`
	BrandScores []BrandScore `json:"brand_scores"`
	Methodology string       `json:"methodology_explanation"`
}

// Validate checks the structural invariants of a visualization package.
// Returns false when the score list is empty, exceeds five entries, the
// ranks are not a contiguous 1..N permutation, or the top-brand list
// exceeds five names.
func (v *Visualization) Validate() bool {
	n := len(v.BrandScores)
	if n == 0 || n > 5 {
		return false
	}
	if len(v.TopBrands) > 5 {
		return false
	}
	seen := make(map[int]bool, n)
	for _, s := range v.BrandScores {
		if s.BrandName == "" || s.Rank < 1 || s.Rank > n || seen[s.Rank] {
			return false
		}
		if s.VisibilityScore < 1 || s.VisibilityScore > 100 {
			return false
		}
		seen[s.Rank] = true
	}
	return true
}

// FinalReport aggregates everything produced for a completed job. It is
// stored verbatim in the job row and returned unchanged to clients.
type FinalReport struct {
	JobID         string        `json:"analysis_id"`
	Question      string        `json:"research_question"`
	CompletedAt   time.Time     `json:"completed_at"`
	WebResults    WebAnalysis   `json:"web_results"`
	DirectAnswer  DirectAnswer  `json:"direct_answer"`
	Visualization Visualization `json:"visualization"`
}
