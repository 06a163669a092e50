package report

import (
	"html/template"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/scoring"
)

// reportTmpl is a self-contained printable page. No external assets, so
// the file works as an email attachment or print-to-PDF source.
var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Marketing Audit: {{.Company}}</title>
<style>
body { font-family: Georgia, serif; max-width: 52rem; margin: 2rem auto; color: #1a1a1a; }
h1 { border-bottom: 2px solid #1a1a1a; padding-bottom: .3rem; }
h2 { margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; font-size: .9rem; }
th, td { border: 1px solid #ccc; padding: .4rem .6rem; text-align: left; }
th { background: #f2f2f2; }
.quickwin { background: #eaf6ea; }
.finding { margin: 1rem 0; padding: .6rem .9rem; border-left: 4px solid #888; }
.finding.quickwin { border-left-color: #2e7d32; }
.meta { color: #555; font-size: .85rem; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>Marketing Audit: {{.Company}}</h1>
{{if .Domain}}<p class="meta">{{.Domain}}</p>{{end}}

<h2>Executive Summary</h2>
<p>{{.ExecutiveSummary}}</p>

<h2>Quick Wins</h2>
{{if .QuickWins}}{{range .QuickWins}}
<div class="finding quickwin">
<strong>{{.Title}}</strong> <span class="meta">({{.Area}})</span>
{{if .WhyItMatters}}<p>{{.WhyItMatters}}</p>{{end}}
{{if .Evidence}}<p class="meta">{{.Evidence}}</p>{{end}}
<p>{{.Recommendation}}</p>
</div>
{{end}}{{else}}<p>None identified.</p>{{end}}

<h2>Strategic Projects</h2>
{{if .Strategic}}{{range .Strategic}}
<div class="finding">
<strong>{{.Title}}</strong> <span class="meta">({{.Area}})</span>
{{if .WhyItMatters}}<p>{{.WhyItMatters}}</p>{{end}}
{{if .Evidence}}<p class="meta">{{.Evidence}}</p>{{end}}
<p>{{.Recommendation}}</p>
</div>
{{end}}{{else}}<p>None identified.</p>{{end}}

<h2>All Findings</h2>
<table>
<tr><th>#</th><th>Finding</th><th>Area</th><th>Impact</th><th>Effort</th><th>Priority</th></tr>
{{range .Rows}}
<tr{{if .QuickWin}} class="quickwin"{{end}}><td>{{.N}}</td><td>{{.Title}}</td><td>{{.Area}}</td><td>{{.Impact}}</td><td>{{.Effort}}</td><td>{{.Priority}}</td></tr>
{{end}}
</table>

{{if .Gaps}}
<h2>Data Gaps</h2>
<ul>{{range .Gaps}}<li>{{.}}</li>{{end}}</ul>
{{end}}
</body>
</html>
`))

type htmlRow struct {
	N        int
	Title    string
	Area     string
	Impact   string
	Effort   string
	Priority string
	QuickWin bool
}

type htmlData struct {
	Company          string
	Domain           string
	ExecutiveSummary string
	QuickWins        []model.Finding
	Strategic        []model.Finding
	Rows             []htmlRow
	Gaps             []string
}

// FormatHTML renders the report as a printable standalone HTML page.
func FormatHTML(run *model.AuditRun, result *model.AggregatedResult) (string, error) {
	data := htmlData{
		Company:          result.Company,
		Domain:           run.Company.Domain,
		ExecutiveSummary: result.ExecutiveSummary,
		QuickWins:        scoring.QuickWins(result.Findings),
		Strategic:        scoring.StrategicProjects(result.Findings),
		Gaps:             collectGaps(run),
	}
	for i, f := range result.Findings {
		cat := scoring.Categorize(f.Impact, f.Effort)
		data.Rows = append(data.Rows, htmlRow{
			N:        i + 1,
			Title:    f.Title,
			Area:     f.Area,
			Impact:   scoring.ImpactLabel(f.Impact),
			Effort:   scoring.EffortLabel(f.Effort),
			Priority: string(cat),
			QuickWin: cat == scoring.CategoryQuickWin,
		})
	}

	var b strings.Builder
	if err := reportTmpl.Execute(&b, data); err != nil {
		return "", eris.Wrap(err, "report: render html")
	}
	return b.String(), nil
}
