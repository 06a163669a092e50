package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthlens/audit-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.CompanyInfo{Name: "Acme AB", Domain: "acme.se"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusAnalyzing))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusAnalyzing, got.Status)
	assert.Equal(t, "Acme AB", got.Company.Name)
	assert.Nil(t, got.Result)

	result := &model.AggregatedResult{
		Company:          "Acme AB",
		ExecutiveSummary: "Fix measurement first.",
		Findings: []model.Finding{
			{Title: "Checkout events missing", Recommendation: "Add purchase events", Impact: 5, Effort: 2, Area: "GTM"},
		},
	}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Fix measurement first.", got.Result.ExecutiveSummary)
	require.Len(t, got.Result.Findings, 1)
	assert.Equal(t, "Checkout events missing", got.Result.Findings[0].Title)
}

func TestSQLiteRunNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.Error(t, err)
	assert.Error(t, s.UpdateRunStatus(ctx, "missing", model.RunStatusFailed))
	assert.Error(t, s.DeleteRun(ctx, "missing"))
}

func TestSQLiteSections(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.CompanyInfo{Name: "Acme AB"})
	require.NoError(t, err)

	// Insert out of canonical order; reads come back ordered.
	require.NoError(t, s.UpsertSection(ctx, run.ID, model.SectionState{
		Section: model.SectionSEO,
		Status:  model.SectionStatusComplete,
		Result: &model.AnalysisResult{
			Findings: []model.Finding{{Title: "Thin titles", Recommendation: "Rewrite", Impact: 3, Effort: 2, Area: "SEO"}},
			Summary:  "Metadata needs work.",
		},
		Usage:    model.TokenUsage{InputTokens: 900, OutputTokens: 150, Cost: 0.01},
		Duration: 3100,
	}))
	require.NoError(t, s.UpsertSection(ctx, run.ID, model.SectionState{
		Section: model.SectionMeasurement,
		Status:  model.SectionStatusFailed,
		Error:   "response is not valid JSON",
	}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 2)
	assert.Equal(t, model.SectionMeasurement, got.Sections[0].Section)
	assert.Equal(t, model.SectionStatusFailed, got.Sections[0].Status)
	assert.Equal(t, "response is not valid JSON", got.Sections[0].Error)
	assert.Equal(t, model.SectionSEO, got.Sections[1].Section)
	require.NotNil(t, got.Sections[1].Result)
	assert.Equal(t, int64(900), got.Sections[1].Usage.InputTokens)

	// Upsert replaces the prior state for the same section.
	require.NoError(t, s.UpsertSection(ctx, run.ID, model.SectionState{
		Section: model.SectionMeasurement,
		Status:  model.SectionStatusComplete,
		Result:  &model.AnalysisResult{Summary: "Recovered on retry."},
	}))
	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 2)
	assert.Equal(t, model.SectionStatusComplete, got.Sections[0].Status)
	assert.Empty(t, got.Sections[0].Error)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, model.CompanyInfo{Name: "Acme AB", Domain: "acme.se"})
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, model.CompanyInfo{Name: "Borg AS", Domain: "borg.no"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	byDomain, err := s.ListRuns(ctx, RunFilter{Domain: "borg.no"})
	require.NoError(t, err)
	require.Len(t, byDomain, 1)
	assert.Equal(t, "Borg AS", byDomain[0].Company.Name)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteDeleteRun(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.CompanyInfo{Name: "Acme AB"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertSection(ctx, run.ID, model.SectionState{
		Section: model.SectionSEO, Status: model.SectionStatusComplete,
	}))

	require.NoError(t, s.DeleteRun(ctx, run.ID))
	_, err = s.GetRun(ctx, run.ID)
	assert.Error(t, err)
}
