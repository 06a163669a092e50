package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/wizard"
)

var sectionCmd = &cobra.Command{
	Use:   "section <name>",
	Short: "Analyze a single audit section",
	Long:  "Runs one section (measurement, data, cro_ux, seo, geo) against the provided exports and prints the raw section result without finalizing a report.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sections, err := parseSections(args)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		domain, _ := cmd.Flags().GetString("domain")

		deps, err := initDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Store.Close() //nolint:errcheck

		session, err := wizard.NewSession(ctx, deps, model.CompanyInfo{
			Name:     name,
			Domain:   domain,
			Sections: sections,
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
		if err := session.SetContext(model.ContextAnswers{BusinessGoal: goal}); err != nil {
			return err
		}

		if err := session.Analyze(ctx); err != nil {
			return err
		}

		run := session.Run()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Sections)
	},
}

func init() {
	sectionCmd.Flags().String("name", "", "company name (required)")
	sectionCmd.Flags().String("domain", "", "company website domain")
	sectionCmd.Flags().String("goal", "", "primary business goal")

	sectionCmd.Flags().String("crawl", "", "Screaming Frog internal pages export (CSV or XLSX)")
	sectionCmd.Flags().String("keywords", "", "Ahrefs organic keywords export (CSV)")
	sectionCmd.Flags().String("analytics", "", "GA4 export (JSON or CSV)")
	sectionCmd.Flags().String("gtm", "", "GTM container export (JSON)")
	sectionCmd.Flags().StringArray("screenshot", nil, "page screenshot for CRO/UX review (repeatable)")
	sectionCmd.Flags().StringArray("from-url", nil, "download an export file instead of reading it locally (repeatable)")
	sectionCmd.Flags().String("ftp-host", "", "fetch the export bundle from this FTP server")
	sectionCmd.Flags().String("ftp-dir", "/", "remote FTP directory holding the bundle")

	_ = sectionCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(sectionCmd)
}
