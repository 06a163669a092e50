// Package prompts builds the system and user prompts for each analysis
// section and resolves per-section overrides.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/parser"
)

// schemaBlock is appended to every section system prompt so the model
// returns the one shape the strict parser accepts.
const schemaBlock = `Always return valid JSON matching this schema:
{
  "findings": [
    {
      "title": "Short description of the issue",
      "why_it_matters": "Why this affects conversions or revenue",
      "evidence": "Specific data supporting the issue (optional)",
      "recommendation": "Concrete action to take",
      "impact": 1-5,
      "effort": 1-5,
      "area": "<area tag>"
    }
  ],
  "gaps": ["Missing data or configuration worth collecting"],
  "summary": "Section summary, at most 120 words"
}

Favor high impact (4-5) combined with low effort (1-2) where the data supports it.`

// defaultSystem holds the built-in system prompt per section.
var defaultSystem = map[model.Section]string{
	model.SectionMeasurement: `You are a senior analytics auditor specializing in GA4, tag management and consent. Be concise and business-focused: concrete improvements that grow conversions and revenue. Use area tags "GA4", "GTM" or "Consent".

` + schemaBlock,

	model.SectionData: `You are a senior data analyst auditing marketing data quality: channel mix, attribution, data gaps and reporting hygiene. Use the area tag "Data".

` + schemaBlock,

	model.SectionCROUX: `You are a senior conversion optimization consultant reviewing landing pages, user flows and page experience. Use the area tag "CRO/UX".

` + schemaBlock,

	model.SectionSEO: `You are a senior technical SEO auditor reviewing crawl health, on-page elements and organic keyword performance. Use the area tag "SEO".

` + schemaBlock,

	model.SectionGEO: `You are a senior consultant on generative engine optimization: how well the site surfaces in AI assistants and answer engines (structured data, citable content, entity clarity). Use the area tag "GEO".

` + schemaBlock,
}

// summarySystem drives the executive summary call over the section summaries.
const summarySystem = `You are a senior consultant writing an executive summary for company leadership. Be concrete and business-focused; no fluff. Base every statement on the section results provided. At most 200 words.

Always return valid JSON: {"summary": "..."}`

// Context carries the wizard's company and questionnaire answers into the
// user prompts.
type Context struct {
	Company      string
	Domain       string
	BusinessGoal string
	Conversions  []string
	Competitors  []string
	Markets      []string
}

// Inputs holds the parsed export data available to the section prompts.
// Every field is optional; sections state what data was missing.
type Inputs struct {
	Analytics    *parser.AnalyticsReport
	TagManager   string // raw GTM container export JSON
	Crawl        []parser.CrawlRow
	Keywords     []parser.KeywordRow
	PageSpeed    string // raw PageSpeed Insights summary JSON
	RuleEvidence []string
}

// System returns the built-in system prompt for a section.
func System(section model.Section) string {
	return defaultSystem[section]
}

// SummarySystem returns the system prompt for the executive summary call.
func SummarySystem() string {
	return summarySystem
}

// User builds the user prompt for a section from the available data and
// context.
func User(section model.Section, in Inputs, ctx Context) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following data for %s", ctx.Company)
	if ctx.Domain != "" {
		fmt.Fprintf(&b, " (%s)", ctx.Domain)
	}
	b.WriteString(":\n\n")

	switch section {
	case model.SectionMeasurement:
		writeAnalytics(&b, in.Analytics)
		writeRuleEvidence(&b, in.RuleEvidence)
		if in.TagManager != "" {
			fmt.Fprintf(&b, "GTM container export:\n%s\n\n", in.TagManager)
		} else {
			b.WriteString("No GTM export available.\n\n")
		}
		b.WriteString(`Identify:
1. Missing key events (CTA clicks, forms, checkout, e-commerce)
2. Duplicated or misnamed events
3. Consent issues degrading data quality
4. Configuration errors preventing correct tracking
5. Opportunities to improve conversion tracking`)

	case model.SectionData:
		writeAnalytics(&b, in.Analytics)
		writeRuleEvidence(&b, in.RuleEvidence)
		b.WriteString(`Identify:
1. Channel mix imbalances and over-reliance on single channels
2. Attribution and reporting gaps
3. Data quality problems visible in the numbers
4. Missing segments or KPIs leadership needs`)

	case model.SectionCROUX:
		if in.PageSpeed != "" {
			fmt.Fprintf(&b, "PageSpeed Insights summary:\n%s\n\n", in.PageSpeed)
		} else {
			b.WriteString("No PageSpeed data available.\n\n")
		}
		writeAnalytics(&b, in.Analytics)
		b.WriteString(`Identify:
1. Friction in primary conversion flows
2. Page experience problems (speed, layout stability, mobile)
3. Unclear value propositions or calls to action
4. Trust and form issues blocking conversion`)

	case model.SectionSEO:
		if err := writeCrawl(&b, in.Crawl); err != nil {
			return "", err
		}
		if err := writeKeywords(&b, in.Keywords); err != nil {
			return "", err
		}
		b.WriteString(`Identify:
1. Missing or duplicated titles, meta descriptions and H1s
2. Status code and canonical problems
3. Keywords ranking just off page one worth pushing
4. Structured data gaps`)

	case model.SectionGEO:
		if err := writeCrawl(&b, in.Crawl); err != nil {
			return "", err
		}
		if len(ctx.Competitors) > 0 {
			fmt.Fprintf(&b, "Competitors: %s\n\n", strings.Join(ctx.Competitors, ", "))
		}
		b.WriteString(`Identify:
1. Content unlikely to be cited by AI assistants and why
2. Missing structured data that answer engines rely on
3. Entity and brand clarity problems
4. Quick opportunities to become a citable source`)

	default:
		return "", eris.Errorf("prompts: unknown section %q", section)
	}

	b.WriteString("\n\nContext:\n")
	fmt.Fprintf(&b, "- Business goal: %s\n", orUnspecified(ctx.BusinessGoal))
	fmt.Fprintf(&b, "- Conversions: %s\n", orUnspecified(strings.Join(ctx.Conversions, ", ")))
	if len(ctx.Markets) > 0 {
		fmt.Fprintf(&b, "- Markets: %s\n", strings.Join(ctx.Markets, ", "))
	}

	return b.String(), nil
}

// SummaryUser builds the executive summary prompt from per-section summaries.
func SummaryUser(company string, sections []model.SectionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive summary for %s based on these section results:\n\n", company)
	for _, st := range sections {
		if st.Status != model.SectionStatusComplete || st.Result == nil {
			continue
		}
		summary := st.Result.Summary
		if summary == "" {
			summary = fmt.Sprintf("%d findings, no section summary provided", len(st.Result.Findings))
		}
		fmt.Fprintf(&b, "%s: %s\n\n", st.Section.Title(), summary)
	}
	b.WriteString("Prioritize both quick wins and strategic projects, with quantified expectations where the data allows.")
	return b.String()
}

func writeAnalytics(b *strings.Builder, report *parser.AnalyticsReport) {
	if report == nil {
		b.WriteString("No GA4 data available.\n\n")
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		b.WriteString("No GA4 data available.\n\n")
		return
	}
	fmt.Fprintf(b, "GA4 data:\n%s\n\n", data)
}

func writeRuleEvidence(b *strings.Builder, evidence []string) {
	if len(evidence) == 0 {
		return
	}
	b.WriteString("Threshold checks already flagged:\n")
	for _, e := range evidence {
		fmt.Fprintf(b, "- %s\n", e)
	}
	b.WriteString("\n")
}

func writeCrawl(b *strings.Builder, rows []parser.CrawlRow) error {
	if len(rows) == 0 {
		b.WriteString("No crawl data available.\n\n")
		return nil
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "prompts: marshal crawl rows")
	}
	fmt.Fprintf(b, "Crawl data (%d pages):\n%s\n\n", len(rows), data)
	return nil
}

func writeKeywords(b *strings.Builder, rows []parser.KeywordRow) error {
	if len(rows) == 0 {
		b.WriteString("No keyword data available.\n\n")
		return nil
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "prompts: marshal keyword rows")
	}
	fmt.Fprintf(b, "Organic keywords (%d):\n%s\n\n", len(rows), data)
	return nil
}

func orUnspecified(s string) string {
	if s == "" {
		return "not specified"
	}
	return s
}
