package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/prompts"
	"github.com/growthlens/audit-cli/pkg/anthropic"
)

// Summarize writes the executive summary from the completed section
// results. It needs at least one completed section to work from.
func (a *Analyzer) Summarize(ctx context.Context, company string, sections []model.SectionState) (string, model.TokenUsage, error) {
	completed := 0
	for _, st := range sections {
		if st.Status == model.SectionStatusComplete {
			completed++
		}
	}
	if completed == 0 {
		return "", model.TokenUsage{}, eris.New("analysis: no completed sections to summarize")
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.api.Model,
		MaxTokens: a.api.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: prompts.SummarySystem()}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompts.SummaryUser(company, sections)},
		},
		Temperature: &a.api.Temperature,
	})
	if err != nil {
		return "", model.TokenUsage{}, eris.Wrap(err, "analysis: summary call")
	}
	usage := toModelUsage(resp.Usage, a.api.Model)
	resp.Usage.LogCost(a.api.Model, "summary")

	var wire struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripFence(resp.Text())), &wire); err != nil {
		return "", usage, eris.Wrap(err, "analysis: summary response is not valid JSON")
	}
	if strings.TrimSpace(wire.Summary) == "" {
		return "", usage, eris.New("analysis: summary response missing summary")
	}
	return wire.Summary, usage, nil
}
