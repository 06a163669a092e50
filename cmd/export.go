package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a completed audit report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if run.Result == nil {
			return eris.Errorf("run %s has no aggregated result yet (status %s)", run.ID, run.Status)
		}

		usage := totalRunUsage(run)
		md := report.FormatMarkdown(run, run.Result, usage)

		format, _ := cmd.Flags().GetString("format")
		var rendered string
		switch format {
		case "markdown", "md":
			rendered = md
		case "html":
			rendered, err = report.FormatHTML(run, run.Result)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("unknown output format: %s", format)
		}

		if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
			if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
				return eris.Wrap(err, "write report")
			}
		} else {
			if _, err := os.Stdout.WriteString(rendered); err != nil {
				return err
			}
		}

		if deliver, _ := cmd.Flags().GetBool("deliver"); deliver {
			return deliverReport(ctx, run, md)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "markdown", "output format: markdown, html")
	exportCmd.Flags().String("out", "", "write the report to this file instead of stdout")
	exportCmd.Flags().Bool("deliver", false, "attach the markdown report to the Salesforce account")
	rootCmd.AddCommand(exportCmd)
}

// deliverReport attaches the markdown report to the run's Salesforce account
// as a completed task.
func deliverReport(ctx context.Context, run *model.AuditRun, markdown string) error {
	sf, err := initSalesforce()
	if err != nil {
		return err
	}

	taskID, err := report.NewSalesforceDelivery(sf).Deliver(ctx, run, markdown)
	if err != nil {
		return err
	}

	zap.L().Info("report delivered to salesforce",
		zap.String("run_id", run.ID),
		zap.String("task_id", taskID),
	)
	return nil
}

// totalRunUsage sums token usage across all persisted section states.
func totalRunUsage(run *model.AuditRun) model.TokenUsage {
	var total model.TokenUsage
	for _, s := range run.Sections {
		total.Add(s.Usage)
	}
	return total
}
