package model

import "time"

// RunStatus represents the current state of an audit run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusParsing     RunStatus = "parsing"
	RunStatusAnalyzing   RunStatus = "analyzing"
	RunStatusReviewing   RunStatus = "reviewing"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// CompanyInfo identifies the company under audit.
type CompanyInfo struct {
	Name         string    `json:"name"`
	Domain       string    `json:"domain"`
	SalesforceID string    `json:"salesforce_id,omitempty"`
	Sections     []Section `json:"sections,omitempty"` // subset to run; empty = all
}

// SourceFiles holds paths to the uploaded marketing exports. All fields are
// optional; sections degrade to context-only prompts when their data is
// missing.
type SourceFiles struct {
	Crawl       string   `json:"crawl,omitempty"`     // Screaming Frog internal pages export
	Keywords    string   `json:"keywords,omitempty"`  // Ahrefs organic keywords export
	Analytics   string   `json:"analytics,omitempty"` // GA4 export (JSON or CSV)
	TagManager  string   `json:"tag_manager,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
}

// ContextAnswers captures the wizard's free-form questionnaire step.
type ContextAnswers struct {
	BusinessGoal string   `json:"business_goal,omitempty"`
	Conversions  []string `json:"conversions,omitempty"`
	Competitors  []string `json:"competitors,omitempty"`
	Markets      []string `json:"markets,omitempty"`
}

// SectionStatus represents the outcome of one section's analysis.
type SectionStatus string

const (
	SectionStatusPending  SectionStatus = "pending"
	SectionStatusRunning  SectionStatus = "running"
	SectionStatusComplete SectionStatus = "complete"
	SectionStatusFailed   SectionStatus = "failed"
)

// SectionState records one section's analysis outcome. A failed section
// keeps its error and contributes nothing to aggregation; the other sections
// proceed unaffected.
type SectionState struct {
	Section  Section         `json:"section"`
	Status   SectionStatus   `json:"status"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Usage    TokenUsage      `json:"token_usage"`
	Duration int64           `json:"duration_ms"`
}

// AuditRun is a single audit for a company, persisted by the store.
type AuditRun struct {
	ID        string            `json:"id"`
	Company   CompanyInfo       `json:"company"`
	Status    RunStatus         `json:"status"`
	Sections  []SectionState    `json:"sections,omitempty"`
	Result    *AggregatedResult `json:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SectionResults returns the finding lists of all completed sections, in
// AllSections order. Failed or pending sections contribute nothing.
func (r *AuditRun) SectionResults() [][]Finding {
	bydomain := make(map[Section]*AnalysisResult, len(r.Sections))
	for i := range r.Sections {
		st := &r.Sections[i]
		if st.Status == SectionStatusComplete && st.Result != nil {
			bydomain[st.Section] = st.Result
		}
	}
	var lists [][]Finding
	for _, s := range AllSections {
		if res, ok := bydomain[s]; ok {
			lists = append(lists, res.Findings)
		}
	}
	return lists
}

// TokenUsage tracks token consumption of the AI collaborator.
type TokenUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.Cost += other.Cost
}
