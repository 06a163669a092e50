package report

import (
	"fmt"
	"strings"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/scoring"
)

// FormatMarkdown renders the full audit report as markdown.
func FormatMarkdown(run *model.AuditRun, result *model.AggregatedResult, totalUsage model.TokenUsage) string {
	var b strings.Builder

	name := result.Company
	if name == "" {
		name = run.Company.Domain
	}
	fmt.Fprintf(&b, "# Marketing Audit: %s\n", name)
	if run.Company.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", run.Company.Domain)
	}
	fmt.Fprintf(&b, "Run: %s\n\n", run.ID)

	b.WriteString("## Executive Summary\n")
	if result.ExecutiveSummary != "" {
		b.WriteString(result.ExecutiveSummary)
		b.WriteString("\n\n")
	} else {
		b.WriteString("No executive summary generated.\n\n")
	}

	writeFindingList(&b, "## Quick Wins", scoring.QuickWins(result.Findings),
		"High impact, low effort. Start here.")
	writeFindingList(&b, "## Strategic Projects", scoring.StrategicProjects(result.Findings),
		"High impact, but real work.")

	b.WriteString("## All Findings\n")
	if len(result.Findings) == 0 {
		b.WriteString("No findings.\n\n")
	} else {
		b.WriteString("| # | Finding | Area | Impact | Effort | Priority |\n")
		b.WriteString("|---|---------|------|--------|--------|----------|\n")
		for i, f := range result.Findings {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
				i+1, f.Title, f.Area,
				scoring.ImpactLabel(f.Impact), scoring.EffortLabel(f.Effort),
				scoring.Categorize(f.Impact, f.Effort))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Sections\n")
	for _, st := range run.Sections {
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", st.Section.Title(), st.Status, st.Duration)
		if st.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", st.Error)
		}
	}
	b.WriteString("\n")

	if gaps := collectGaps(run); len(gaps) > 0 {
		b.WriteString("## Data Gaps\n")
		for _, g := range gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Usage\n")
	fmt.Fprintf(&b, "- Token usage: %d input, %d output\n",
		totalUsage.InputTokens, totalUsage.OutputTokens)
	fmt.Fprintf(&b, "- Estimated cost: $%.4f\n", totalUsage.Cost)

	return b.String()
}

func writeFindingList(b *strings.Builder, heading string, findings []model.Finding, hint string) {
	b.WriteString(heading)
	b.WriteString("\n")
	if len(findings) == 0 {
		b.WriteString("None identified.\n\n")
		return
	}
	fmt.Fprintf(b, "%s\n\n", hint)
	for _, f := range findings {
		fmt.Fprintf(b, "- **%s** (%s)\n", f.Title, f.Area)
		if f.WhyItMatters != "" {
			fmt.Fprintf(b, "  - Why: %s\n", f.WhyItMatters)
		}
		if f.Evidence != "" {
			fmt.Fprintf(b, "  - Evidence: %s\n", f.Evidence)
		}
		fmt.Fprintf(b, "  - Recommendation: %s\n", f.Recommendation)
		fmt.Fprintf(b, "  - Impact: %s, Effort: %s\n",
			scoring.ImpactLabel(f.Impact), scoring.EffortLabel(f.Effort))
	}
	b.WriteString("\n")
}

// collectGaps gathers gap notes across completed sections, prefixed with
// the section title, in AllSections order.
func collectGaps(run *model.AuditRun) []string {
	bySection := make(map[model.Section]*model.AnalysisResult, len(run.Sections))
	for i := range run.Sections {
		st := &run.Sections[i]
		if st.Status == model.SectionStatusComplete && st.Result != nil {
			bySection[st.Section] = st.Result
		}
	}
	var gaps []string
	for _, s := range model.AllSections {
		res, ok := bySection[s]
		if !ok {
			continue
		}
		for _, g := range res.Gaps {
			gaps = append(gaps, fmt.Sprintf("%s: %s", s.Title(), g))
		}
	}
	return gaps
}
