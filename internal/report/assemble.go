// Package report assembles the final audit report and renders it to
// markdown and printable HTML.
package report

import (
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/scoring"
)

// Assemble merges the completed sections of a run into its final result:
// deduplicated, prioritized findings under the executive summary.
func Assemble(run *model.AuditRun, executiveSummary string) *model.AggregatedResult {
	return &model.AggregatedResult{
		Company:          run.Company.Name,
		ExecutiveSummary: executiveSummary,
		Findings:         scoring.Combine(run.SectionResults()...),
	}
}
