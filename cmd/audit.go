package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/report"
	"github.com/growthlens/audit-cli/internal/wizard"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a full marketing audit",
	Long:  "Runs the wizard end to end: ingests the provided exports, analyzes each section, aggregates findings, and writes the report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		domain, _ := cmd.Flags().GetString("domain")
		sfID, _ := cmd.Flags().GetString("sf-id")
		sectionNames, _ := cmd.Flags().GetStringSlice("sections")

		sections, err := parseSections(sectionNames)
		if err != nil {
			return err
		}

		deps, err := initDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Store.Close() //nolint:errcheck

		session, err := wizard.NewSession(ctx, deps, model.CompanyInfo{
			Name:         name,
			Domain:       domain,
			SalesforceID: sfID,
			Sections:     sections,
		})
		if err != nil {
			return err
		}

		files, err := collectSources(cmd)
		if err != nil {
			return err
		}
		if err := session.SetSources(files); err != nil {
			return err
		}

		goal, _ := cmd.Flags().GetString("goal")
		conversions, _ := cmd.Flags().GetStringArray("conversion")
		competitors, _ := cmd.Flags().GetStringArray("competitor")
		markets, _ := cmd.Flags().GetStringArray("market")
		if err := session.SetContext(model.ContextAnswers{
			BusinessGoal: goal,
			Conversions:  conversions,
			Competitors:  competitors,
			Markets:      markets,
		}); err != nil {
			return err
		}

		zap.L().Info("starting audit",
			zap.String("run_id", session.ID()),
			zap.String("company", name),
		)

		if err := session.Analyze(ctx); err != nil {
			return err
		}

		result, err := session.Finalize(ctx)
		if err != nil {
			return err
		}

		run := session.Run()
		usage := session.TotalUsage()
		zap.L().Info("audit complete",
			zap.String("run_id", run.ID),
			zap.Int("findings", len(result.Findings)),
			zap.Float64("cost", usage.Cost),
		)

		md, err := renderResult(cmd, &run, result, usage)
		if err != nil {
			return err
		}

		if deliver, _ := cmd.Flags().GetBool("deliver"); deliver {
			return deliverReport(ctx, &run, md)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().String("name", "", "company name (required)")
	auditCmd.Flags().String("domain", "", "company website domain")
	auditCmd.Flags().String("sf-id", "", "Salesforce account ID")
	auditCmd.Flags().StringSlice("sections", nil, "sections to run (default all): measurement, data, cro_ux, seo, geo")

	auditCmd.Flags().String("crawl", "", "Screaming Frog internal pages export (CSV or XLSX)")
	auditCmd.Flags().String("keywords", "", "Ahrefs organic keywords export (CSV)")
	auditCmd.Flags().String("analytics", "", "GA4 export (JSON or CSV)")
	auditCmd.Flags().String("gtm", "", "GTM container export (JSON)")
	auditCmd.Flags().StringArray("screenshot", nil, "page screenshot for CRO/UX review (repeatable)")
	auditCmd.Flags().StringArray("from-url", nil, "download an export file instead of reading it locally (repeatable)")
	auditCmd.Flags().String("ftp-host", "", "fetch the export bundle from this FTP server")
	auditCmd.Flags().String("ftp-dir", "/", "remote FTP directory holding the bundle")

	auditCmd.Flags().String("goal", "", "primary business goal")
	auditCmd.Flags().StringArray("conversion", nil, "conversion action that matters (repeatable)")
	auditCmd.Flags().StringArray("competitor", nil, "competitor domain (repeatable)")
	auditCmd.Flags().StringArray("market", nil, "target market (repeatable)")

	auditCmd.Flags().String("format", "json", "output format: json, markdown, html")
	auditCmd.Flags().String("out", "", "write the report to this file instead of stdout")
	auditCmd.Flags().Bool("deliver", false, "attach the markdown report to the Salesforce account")

	_ = auditCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(auditCmd)
}

// collectSources merges local file flags with remotely fetched exports.
// Local flags win over fetched files for the same slot.
func collectSources(cmd *cobra.Command) (model.SourceFiles, error) {
	crawl, _ := cmd.Flags().GetString("crawl")
	keywords, _ := cmd.Flags().GetString("keywords")
	analytics, _ := cmd.Flags().GetString("analytics")
	gtm, _ := cmd.Flags().GetString("gtm")
	screenshots, _ := cmd.Flags().GetStringArray("screenshot")

	files := model.SourceFiles{
		Crawl:       crawl,
		Keywords:    keywords,
		Analytics:   analytics,
		TagManager:  gtm,
		Screenshots: screenshots,
	}

	urls, _ := cmd.Flags().GetStringArray("from-url")
	ftpHost, _ := cmd.Flags().GetString("ftp-host")
	if len(urls) == 0 && ftpHost == "" {
		return files, nil
	}

	ftpDir, _ := cmd.Flags().GetString("ftp-dir")
	fetched, _, err := fetchRemote(cmd.Context(), urls, ftpHost, ftpDir)
	if err != nil {
		return model.SourceFiles{}, err
	}

	if files.Crawl == "" {
		files.Crawl = fetched.Crawl
	}
	if files.Keywords == "" {
		files.Keywords = fetched.Keywords
	}
	if files.Analytics == "" {
		files.Analytics = fetched.Analytics
	}
	if files.TagManager == "" {
		files.TagManager = fetched.TagManager
	}
	files.Screenshots = append(files.Screenshots, fetched.Screenshots...)

	return files, nil
}

// renderResult writes the finished audit in the requested format and returns
// the markdown rendering for optional Salesforce delivery.
func renderResult(cmd *cobra.Command, run *model.AuditRun, result *model.AggregatedResult, usage model.TokenUsage) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	md := report.FormatMarkdown(run, result, usage)

	var rendered string
	switch format {
	case "json":
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return "", eris.Wrap(err, "marshal run")
		}
		rendered = string(data) + "\n"
	case "markdown", "md":
		rendered = md
	case "html":
		html, err := report.FormatHTML(run, result)
		if err != nil {
			return "", err
		}
		rendered = html
	default:
		return "", eris.Errorf("unknown output format: %s", format)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
			return "", eris.Wrap(err, "write report")
		}
		return md, nil
	}
	_, err := os.Stdout.WriteString(rendered)
	return md, err
}
