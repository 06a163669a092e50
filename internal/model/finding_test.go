package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFinding() Finding {
	return Finding{
		Title:          "Missing checkout event",
		WhyItMatters:   "Checkout funnel cannot be measured",
		Recommendation: "Add a purchase event to the checkout flow",
		Impact:         5,
		Effort:         2,
		Area:           "Measurement",
	}
}

func TestFindingValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid finding passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validFinding().Validate())
	})

	t.Run("missing title", func(t *testing.T) {
		t.Parallel()
		f := validFinding()
		f.Title = ""
		assert.Error(t, f.Validate())
	})

	t.Run("missing recommendation", func(t *testing.T) {
		t.Parallel()
		f := validFinding()
		f.Recommendation = ""
		assert.Error(t, f.Validate())
	})

	t.Run("impact and effort bounds", func(t *testing.T) {
		t.Parallel()
		for _, n := range []int{0, 6, -1, 100} {
			f := validFinding()
			f.Impact = n
			assert.Error(t, f.Validate(), "impact=%d", n)

			f = validFinding()
			f.Effort = n
			assert.Error(t, f.Validate(), "effort=%d", n)
		}
		for n := 1; n <= 5; n++ {
			f := validFinding()
			f.Impact = n
			f.Effort = n
			assert.NoError(t, f.Validate())
		}
	})
}

func TestFindingKey(t *testing.T) {
	t.Parallel()

	a := Finding{Title: "Missing meta descriptions", Area: "SEO"}
	b := Finding{Title: "Missing meta descriptions", Area: "SEO", Impact: 3}
	c := Finding{Title: "Missing meta descriptions", Area: "GEO"}

	assert.Equal(t, a.Key(), b.Key(), "only title and area participate in identity")
	assert.NotEqual(t, a.Key(), c.Key())

	// exact match only: casing and sub-tool tags are distinct areas
	d := Finding{Title: "Missing meta descriptions", Area: "seo"}
	assert.NotEqual(t, a.Key(), d.Key())
}

func TestAnalysisResultValidate(t *testing.T) {
	t.Parallel()

	t.Run("empty result is valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, AnalysisResult{}.Validate())
	})

	t.Run("one bad finding rejects the whole section", func(t *testing.T) {
		t.Parallel()
		bad := validFinding()
		bad.Impact = 7
		res := AnalysisResult{Findings: []Finding{validFinding(), bad}}
		err := res.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "finding 1")
	})
}

func TestParseSection(t *testing.T) {
	t.Parallel()

	for _, s := range AllSections {
		got, err := ParseSection(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)

		got, err = ParseSection(s.Title())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSection("branding")
	assert.Error(t, err)
}

func TestSectionResults(t *testing.T) {
	t.Parallel()

	run := AuditRun{
		Sections: []SectionState{
			{Section: SectionSEO, Status: SectionStatusComplete, Result: &AnalysisResult{
				Findings: []Finding{{Title: "a", Area: "SEO"}},
			}},
			{Section: SectionData, Status: SectionStatusFailed, Error: "model returned malformed JSON"},
			{Section: SectionMeasurement, Status: SectionStatusComplete, Result: &AnalysisResult{
				Findings: []Finding{{Title: "b", Area: "GA4"}},
			}},
		},
	}

	lists := run.SectionResults()
	require.Len(t, lists, 2, "failed sections contribute nothing")
	// AllSections order: measurement before seo regardless of completion order
	assert.Equal(t, "b", lists[0][0].Title)
	assert.Equal(t, "a", lists[1][0].Title)
}
