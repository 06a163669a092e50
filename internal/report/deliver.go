package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/pkg/salesforce"
)

// taskBodyLimit keeps the Task description inside Salesforce's 32k
// field limit with headroom for the truncation notice.
const taskBodyLimit = 30000

// SalesforceDelivery files finished audit reports on the company's
// Salesforce account.
type SalesforceDelivery struct {
	client salesforce.Client
}

// NewSalesforceDelivery creates a delivery over the given client.
func NewSalesforceDelivery(client salesforce.Client) *SalesforceDelivery {
	return &SalesforceDelivery{client: client}
}

type accountRecord struct {
	Id string `json:"Id"`
}

// Deliver attaches the markdown report to the company's account as a
// completed Task and returns the created task ID. The account comes
// from the run's Salesforce ID, falling back to a Website lookup on the
// company domain.
func (d *SalesforceDelivery) Deliver(ctx context.Context, run *model.AuditRun, markdown string) (string, error) {
	accountID := run.Company.SalesforceID
	if accountID == "" {
		var err error
		if accountID, err = d.findAccount(ctx, run.Company.Domain); err != nil {
			return "", err
		}
	}

	body := markdown
	if len(body) > taskBodyLimit {
		body = body[:taskBodyLimit] + "\n\n[truncated]"
	}

	taskID, err := d.client.InsertOne(ctx, "Task", map[string]any{
		"WhatId":      accountID,
		"Subject":     fmt.Sprintf("Marketing audit: %s", run.Company.Name),
		"Description": body,
		"Status":      "Completed",
	})
	if err != nil {
		return "", eris.Wrap(err, "deliver: create task")
	}

	zap.L().Info("audit delivered to salesforce",
		zap.String("run", run.ID),
		zap.String("account", accountID),
		zap.String("task", taskID))
	return taskID, nil
}

func (d *SalesforceDelivery) findAccount(ctx context.Context, domain string) (string, error) {
	if domain == "" {
		return "", eris.New("deliver: no salesforce id and no domain to look up")
	}
	var result salesforce.QueryResult[accountRecord]
	soql := fmt.Sprintf("SELECT Id FROM Account WHERE Website LIKE '%%%s%%' LIMIT 2", sanitizeSOQL(domain))
	if err := d.client.Query(ctx, soql, &result); err != nil {
		return "", eris.Wrap(err, "deliver: account lookup")
	}
	switch len(result.Records) {
	case 1:
		return result.Records[0].Id, nil
	case 0:
		return "", eris.Errorf("deliver: no account matches domain %s", domain)
	default:
		return "", eris.Errorf("deliver: domain %s matches multiple accounts", domain)
	}
}

// sanitizeSOQL strips quote characters from a LIKE operand.
func sanitizeSOQL(s string) string {
	return strings.NewReplacer("'", "", "\\", "", "%", "", "_", "").Replace(s)
}
