package wizard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthlens/audit-cli/internal/analysis"
	"github.com/growthlens/audit-cli/internal/config"
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/prompts"
	"github.com/growthlens/audit-cli/internal/store"
	"github.com/growthlens/audit-cli/pkg/anthropic"
)

// scriptedClient returns a canned JSON section result, or refuses for
// sections listed in fail.
type scriptedClient struct {
	fail map[model.Section]bool
}

func (c *scriptedClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	text := `{"summary": "Executive summary text."}`
	for _, section := range model.AllSections {
		if len(req.System) > 0 && req.System[0].Text == prompts.System(section) {
			if c.fail[section] {
				text = "not json"
				break
			}
			text = fmt.Sprintf(`{
				"findings": [{"title": "Finding %s", "recommendation": "Fix", "impact": 4, "effort": 2, "area": %q}],
				"summary": "Section done."
			}`, section, section.Title())
			break
		}
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func testDeps(t *testing.T, client anthropic.Client) Deps {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	analyzer := analysis.New(client, prompts.NewRegistry(nil),
		config.AnalysisConfig{MaxConcurrentSections: 2},
		config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 4096},
	)
	return Deps{Store: st, Analyzer: analyzer}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSessionHappyPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &scriptedClient{})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{
		Name:     "Acme AB",
		Domain:   "acme.se",
		Sections: []model.Section{model.SectionMeasurement, model.SectionSEO},
	})
	require.NoError(t, err)
	assert.Equal(t, StepSetup, sess.Step())

	crawl := writeTemp(t, "internal_all.csv", "Address,Title 1\nhttps://acme.se/,Acme\n")
	require.NoError(t, sess.SetSources(model.SourceFiles{Crawl: crawl}))
	require.NoError(t, sess.SetContext(model.ContextAnswers{BusinessGoal: "Grow demos"}))

	require.NoError(t, sess.Analyze(ctx))
	assert.Equal(t, StepReview, sess.Step())

	run := sess.Run()
	require.Len(t, run.Sections, 2)
	for _, st := range run.Sections {
		assert.Equal(t, model.SectionStatusComplete, st.Status)
	}

	result, err := sess.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepDone, sess.Step())
	assert.Equal(t, "Executive summary text.", result.ExecutiveSummary)
	assert.Len(t, result.Findings, 2)

	// Finalize is one-shot.
	_, err = sess.Finalize(ctx)
	assert.Error(t, err)

	// Result persisted with the run.
	stored, err := deps.Store.GetRun(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Len(t, stored.Result.Findings, 2)

	usage := sess.TotalUsage()
	assert.Equal(t, int64(300), usage.InputTokens) // two sections + summary
}

func TestSessionFailedSectionDegrades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &scriptedClient{fail: map[model.Section]bool{model.SectionData: true}})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{
		Name:     "Acme AB",
		Sections: []model.Section{model.SectionData, model.SectionSEO},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Analyze(ctx))

	run := sess.Run()
	assert.Equal(t, model.SectionStatusFailed, run.Sections[0].Status)
	assert.Equal(t, model.SectionStatusComplete, run.Sections[1].Status)

	result, err := sess.Finalize(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Findings, 1, "only the completed section contributes")
}

func TestSessionStepGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &scriptedClient{})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{Name: "Acme AB", Sections: []model.Section{model.SectionSEO}})
	require.NoError(t, err)

	// Finalize before analysis is not allowed.
	_, err = sess.Finalize(ctx)
	assert.Error(t, err)

	require.NoError(t, sess.Analyze(ctx))

	// Sources and context are frozen after analysis starts.
	assert.Error(t, sess.SetSources(model.SourceFiles{}))
	assert.Error(t, sess.SetContext(model.ContextAnswers{}))
	assert.Error(t, sess.Analyze(ctx))
}

func TestSessionMissingCompanyName(t *testing.T) {
	t.Parallel()
	deps := testDeps(t, &scriptedClient{})
	_, err := NewSession(context.Background(), deps, model.CompanyInfo{Domain: "acme.se"})
	assert.Error(t, err)
}

func TestSessionReviewEdits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &scriptedClient{})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{Name: "Acme AB", Sections: []model.Section{model.SectionSEO}})
	require.NoError(t, err)
	require.NoError(t, sess.Analyze(ctx))

	edited := model.Finding{
		Title:          "Rewritten finding",
		Recommendation: "Do the better thing",
		Impact:         5, Effort: 1, Area: "SEO",
	}
	require.NoError(t, sess.EditFinding(ctx, model.SectionSEO, 0, edited))

	// Invalid edits are rejected before touching state.
	bad := edited
	bad.Impact = 9
	assert.Error(t, sess.EditFinding(ctx, model.SectionSEO, 0, bad))
	assert.Error(t, sess.EditFinding(ctx, model.SectionSEO, 5, edited))
	assert.Error(t, sess.EditFinding(ctx, model.SectionGEO, 0, edited))

	result, err := sess.Finalize(ctx)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "Rewritten finding", result.Findings[0].Title)

	// Edits after finalize are rejected.
	assert.Error(t, sess.EditFinding(ctx, model.SectionSEO, 0, edited))
}

func TestSessionRemoveFinding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &scriptedClient{})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{Name: "Acme AB", Sections: []model.Section{model.SectionSEO}})
	require.NoError(t, err)
	require.NoError(t, sess.Analyze(ctx))
	require.NoError(t, sess.RemoveFinding(ctx, model.SectionSEO, 0))

	result, err := sess.Finalize(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}

// slowClient delays every response, widening the window between the finalize
// step check and the summary call.
type slowClient struct {
	inner scriptedClient
	delay time.Duration
}

func (c *slowClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	time.Sleep(c.delay)
	return c.inner.CreateMessage(ctx, req)
}

func TestFinalizeConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &slowClient{delay: 50 * time.Millisecond})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{
		Name:     "Acme AB",
		Sections: []model.Section{model.SectionSEO},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Analyze(ctx))

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sess.Finalize(ctx); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load(), "finalize is one-shot")
	assert.Equal(t, StepDone, sess.Step())
	require.NotNil(t, sess.Result())
}

func TestResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps := testDeps(t, &scriptedClient{})

	sess, err := NewSession(ctx, deps, model.CompanyInfo{Name: "Acme AB", Sections: []model.Section{model.SectionSEO}})
	require.NoError(t, err)
	require.NoError(t, sess.Analyze(ctx))

	resumed, err := Resume(ctx, deps, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, StepReview, resumed.Step())

	result, err := resumed.Finalize(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Findings, 1)

	done, err := Resume(ctx, deps, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, StepDone, done.Step())
	require.NotNil(t, done.Result())
	_, err = done.Finalize(ctx)
	assert.Error(t, err)
}
