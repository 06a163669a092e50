package model

import "github.com/rotisserie/eris"

// Finding is a single scored recommendation produced by one analysis section.
type Finding struct {
	Title          string `json:"title"`
	WhyItMatters   string `json:"why_it_matters"`
	Evidence       string `json:"evidence,omitempty"`
	Recommendation string `json:"recommendation"`
	Impact         int    `json:"impact"` // 1-5, 5 = highest business impact
	Effort         int    `json:"effort"` // 1-5, 1 = lowest implementation effort
	Area           string `json:"area"`
}

// Key returns the deduplication identity of a finding. Two findings are
// duplicates when both title and area match exactly. Area is an open string
// tag (sections emit sub-tool tags like "GA4" or "GTM" alongside section
// names), so no normalization is applied.
func (f Finding) Key() string {
	return f.Title + "\x00" + f.Area
}

// Validate checks the finding against the ingestion contract: title and
// recommendation are required, impact and effort must be in 1..5.
func (f Finding) Validate() error {
	if f.Title == "" {
		return eris.New("finding: title is required")
	}
	if f.Recommendation == "" {
		return eris.Errorf("finding %q: recommendation is required", f.Title)
	}
	if f.Impact < 1 || f.Impact > 5 {
		return eris.Errorf("finding %q: impact %d out of range 1-5", f.Title, f.Impact)
	}
	if f.Effort < 1 || f.Effort > 5 {
		return eris.Errorf("finding %q: effort %d out of range 1-5", f.Title, f.Effort)
	}
	return nil
}

// AnalysisResult is one section's raw output: a list of findings plus
// optional gaps and a short section summary.
type AnalysisResult struct {
	Findings []Finding `json:"findings"`
	Gaps     []string  `json:"gaps,omitempty"`
	Summary  string    `json:"summary,omitempty"` // intended <= 120 words, not enforced
}

// Validate rejects the whole result if any finding fails validation.
// Partial silent data loss is worse than a visible section failure, so a
// single bad finding fails the section.
func (r AnalysisResult) Validate() error {
	for i, f := range r.Findings {
		if err := f.Validate(); err != nil {
			return eris.Wrapf(err, "analysis result: finding %d", i)
		}
	}
	return nil
}

// AggregatedResult is the final company-level deliverable: the executive
// summary plus the merged, deduplicated, sorted finding list. It is created
// once when the review step finalizes and is immutable thereafter.
type AggregatedResult struct {
	Company          string    `json:"company"`
	ExecutiveSummary string    `json:"executiveSummary"` // intended <= 200 words, not enforced
	Findings         []Finding `json:"findings"`
}
