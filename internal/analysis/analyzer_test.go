package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthlens/audit-cli/internal/config"
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/prompts"
	"github.com/growthlens/audit-cli/pkg/anthropic"
)

// stubClient answers CreateMessage from a caller-supplied function and
// records the requests it saw.
type stubClient struct {
	mu       sync.Mutex
	requests []anthropic.MessageRequest
	respond  func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.respond(req)
}

func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
		Usage:   anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200},
	}
}

func sectionResponse(area string) string {
	return fmt.Sprintf(`{
		"findings": [{"title": "Finding for %s", "recommendation": "Fix it", "impact": 4, "effort": 2, "area": %q}],
		"summary": "Section summary."
	}`, area, area)
}

func testAnalyzer(client anthropic.Client) *Analyzer {
	return New(client, prompts.NewRegistry(nil),
		config.AnalysisConfig{MaxConcurrentSections: 2, SectionTimeoutSecs: 30},
		config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", VisionModel: "claude-sonnet-4-5-20250929", MaxTokens: 8192},
	)
}

func TestAnalyzerRun(t *testing.T) {
	t.Parallel()

	pctx := prompts.Context{Company: "Acme AB"}

	t.Run("all sections complete", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(sectionResponse("SEO")), nil
		}}
		jobs := []SectionJob{
			{Section: model.SectionMeasurement},
			{Section: model.SectionSEO},
		}

		states := testAnalyzer(client).Run(context.Background(), jobs, pctx)
		require.Len(t, states, 2)
		assert.Equal(t, model.SectionMeasurement, states[0].Section)
		for _, st := range states {
			assert.Equal(t, model.SectionStatusComplete, st.Status)
			require.NotNil(t, st.Result)
			assert.Len(t, st.Result.Findings, 1)
			assert.Equal(t, int64(1200), st.Usage.InputTokens+st.Usage.OutputTokens)
		}
	})

	t.Run("one malformed response fails only its section", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if len(req.System) > 0 && req.System[0].Text == prompts.System(model.SectionData) {
				return textResponse("I could not produce JSON this time."), nil
			}
			return textResponse(sectionResponse("SEO")), nil
		}}
		jobs := []SectionJob{
			{Section: model.SectionData},
			{Section: model.SectionSEO},
		}

		states := testAnalyzer(client).Run(context.Background(), jobs, pctx)
		require.Len(t, states, 2)
		assert.Equal(t, model.SectionStatusFailed, states[0].Status)
		assert.NotEmpty(t, states[0].Error)
		assert.Nil(t, states[0].Result)
		assert.Equal(t, model.SectionStatusComplete, states[1].Status)
	})

	t.Run("api error fails the section", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, fmt.Errorf("overloaded")
		}}
		states := testAnalyzer(client).Run(context.Background(), []SectionJob{{Section: model.SectionGEO}}, pctx)
		require.Len(t, states, 1)
		assert.Equal(t, model.SectionStatusFailed, states[0].Status)
		assert.Contains(t, states[0].Error, "overloaded")
	})

	t.Run("screenshots switch to the vision model", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(sectionResponse("CRO/UX")), nil
		}}
		a := New(client, prompts.NewRegistry(nil),
			config.AnalysisConfig{},
			config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", VisionModel: "claude-opus-4-6", MaxTokens: 8192},
		)
		jobs := []SectionJob{{
			Section:     model.SectionCROUX,
			Screenshots: []anthropic.Image{{MediaType: "image/png", Data: "aGVsbG8="}},
		}}

		states := a.Run(context.Background(), jobs, prompts.Context{Company: "Acme AB"})
		require.Len(t, states, 1)
		assert.Equal(t, model.SectionStatusComplete, states[0].Status)
		require.Len(t, client.requests, 1)
		assert.Equal(t, "claude-opus-4-6", client.requests[0].Model)
		require.Len(t, client.requests[0].Messages, 1)
		assert.Len(t, client.requests[0].Messages[0].Images, 1)
	})

	t.Run("prompt override reaches the request", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(sectionResponse("SEO")), nil
		}}
		registry := prompts.NewRegistry(map[model.Section]string{model.SectionSEO: "custom seo system prompt"})
		a := New(client, registry, config.AnalysisConfig{}, config.AnthropicConfig{Model: "m", MaxTokens: 1024})

		a.Run(context.Background(), []SectionJob{{Section: model.SectionSEO}}, prompts.Context{Company: "Acme AB"})
		require.Len(t, client.requests, 1)
		require.Len(t, client.requests[0].System, 1)
		assert.Equal(t, "custom seo system prompt", client.requests[0].System[0].Text)
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	completed := []model.SectionState{{
		Section: model.SectionMeasurement,
		Status:  model.SectionStatusComplete,
		Result:  &model.AnalysisResult{Summary: "Tracking gaps found."},
	}}

	t.Run("valid summary", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"summary": "Fix measurement first, then push SEO."}`), nil
		}}
		summary, usage, err := testAnalyzer(client).Summarize(context.Background(), "Acme AB", completed)
		require.NoError(t, err)
		assert.Equal(t, "Fix measurement first, then push SEO.", summary)
		assert.Equal(t, int64(1000), usage.InputTokens)
	})

	t.Run("no completed sections", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			t.Fatal("no API call expected")
			return nil, nil
		}}
		_, _, err := testAnalyzer(client).Summarize(context.Background(), "Acme AB", []model.SectionState{
			{Section: model.SectionSEO, Status: model.SectionStatusFailed, Error: "timeout"},
		})
		assert.Error(t, err)
	})

	t.Run("blank summary fails", func(t *testing.T) {
		t.Parallel()
		client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"summary": "  "}`), nil
		}}
		_, _, err := testAnalyzer(client).Summarize(context.Background(), "Acme AB", completed)
		assert.Error(t, err)
	})
}
