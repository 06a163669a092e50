package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthlens/audit-cli/internal/config"
	"github.com/growthlens/audit-cli/internal/parser"
)

func defaultRules() config.RulesConfig {
	return config.RulesConfig{
		BounceRateHigh:       60,
		BounceRateSuspicious: 25,
		ConversionRateLow:    2,
		ConversionRateGood:   5,
		SessionShortSecs:     30,
		PagesPerSessionLow:   1.5,
		TrafficSignificant:   100,
	}
}

func TestEvaluateInsignificantTraffic(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{Sessions: 50, BounceRate: 90, ConversionRate: 0.1}
	assert.Empty(t, e.Evaluate(report), "rates over few sessions are noise")
	assert.Empty(t, e.Evaluate(nil))
}

func TestEvaluateHighBounce(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{Sessions: 1000, BounceRate: 72.5, ConversionRate: 3, AvgSessionSecs: 120, PagesPerSession: 2.5}

	findings := e.Evaluate(report)
	require.Len(t, findings, 1)
	assert.Equal(t, "High site-wide bounce rate", findings[0].Title)
	assert.Contains(t, findings[0].Evidence, "72.5%")
	assert.Equal(t, "GA4", findings[0].Area)
	assert.NoError(t, findings[0].Validate())
}

func TestEvaluateSuspiciousBounce(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{Sessions: 1000, BounceRate: 12, ConversionRate: 3, AvgSessionSecs: 120, PagesPerSession: 2.5}

	findings := e.Evaluate(report)
	require.Len(t, findings, 1)
	assert.Equal(t, "Suspiciously low bounce rate", findings[0].Title)
}

func TestEvaluateZeroConversions(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{Sessions: 500, BounceRate: 50, AvgSessionSecs: 120, PagesPerSession: 2}

	findings := e.Evaluate(report)
	require.Len(t, findings, 1)
	assert.Equal(t, "No conversions recorded", findings[0].Title)
	assert.Equal(t, 5, findings[0].Impact)
}

func TestEvaluateStackedProblems(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{
		Sessions:        2000,
		BounceRate:      80,
		ConversionRate:  0.5,
		AvgSessionSecs:  15,
		PagesPerSession: 1.1,
	}

	findings := e.Evaluate(report)
	require.Len(t, findings, 4)
	for _, f := range findings {
		assert.NoError(t, f.Validate(), "rule findings must pass the ingestion contract")
		assert.NotEmpty(t, f.Evidence)
	}
}

func TestEvaluateHealthyReport(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{
		Sessions:        5000,
		BounceRate:      45,
		ConversionRate:  6,
		AvgSessionSecs:  180,
		PagesPerSession: 3.2,
	}
	assert.Empty(t, e.Evaluate(report))
}

func TestAssessments(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())
	report := &parser.AnalyticsReport{
		Sessions:       5000,
		BounceRate:     45,
		ConversionRate: 6,
	}

	lines := e.Assessments(report)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "6.00%")
	assert.Contains(t, lines[0], "5%")
	assert.Contains(t, lines[1], "normal")
}

func TestAssessmentsBelowBenchmark(t *testing.T) {
	t.Parallel()

	e := New(defaultRules())

	// Conversion rate under the good benchmark earns no praise.
	report := &parser.AnalyticsReport{Sessions: 5000, BounceRate: 80, ConversionRate: 3}
	assert.Empty(t, e.Assessments(report))

	// Same traffic gate as Evaluate.
	assert.Empty(t, e.Assessments(&parser.AnalyticsReport{Sessions: 10, ConversionRate: 9}))
	assert.Empty(t, e.Assessments(nil))
}
