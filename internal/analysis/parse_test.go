package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	t.Parallel()

	valid := `{
		"findings": [
			{
				"title": "Checkout events missing",
				"why_it_matters": "Purchases are invisible to reporting",
				"evidence": "No purchase event in the container",
				"recommendation": "Add purchase and begin_checkout events",
				"impact": 5,
				"effort": 2,
				"area": "GTM"
			}
		],
		"gaps": ["No consent mode status"],
		"summary": "Tracking misses the revenue path."
	}`

	t.Run("valid response", func(t *testing.T) {
		t.Parallel()
		result, err := ParseResult(valid)
		require.NoError(t, err)
		require.Len(t, result.Findings, 1)
		assert.Equal(t, "Checkout events missing", result.Findings[0].Title)
		assert.Equal(t, "Purchases are invisible to reporting", result.Findings[0].WhyItMatters)
		assert.Equal(t, []string{"No consent mode status"}, result.Gaps)
	})

	t.Run("fenced response", func(t *testing.T) {
		t.Parallel()
		result, err := ParseResult("```json\n" + valid + "\n```")
		require.NoError(t, err)
		assert.Len(t, result.Findings, 1)
	})

	t.Run("camelCase rationale key", func(t *testing.T) {
		t.Parallel()
		result, err := ParseResult(`{
			"findings": [{
				"title": "Slow LCP",
				"whyItMatters": "Users abandon before the page renders",
				"recommendation": "Compress hero image",
				"impact": 4, "effort": 1, "area": "CRO/UX"
			}],
			"summary": "Page speed holds conversion back."
		}`)
		require.NoError(t, err)
		assert.Equal(t, "Users abandon before the page renders", result.Findings[0].WhyItMatters)
	})

	t.Run("not JSON fails", func(t *testing.T) {
		t.Parallel()
		_, err := ParseResult("Here are my findings:\n1. Fix tracking")
		assert.Error(t, err)
	})

	t.Run("one bad finding rejects the whole section", func(t *testing.T) {
		t.Parallel()
		_, err := ParseResult(`{
			"findings": [
				{"title": "Fine", "recommendation": "Do it", "impact": 3, "effort": 3, "area": "SEO"},
				{"title": "Broken", "recommendation": "Do it", "impact": 6, "effort": 3, "area": "SEO"}
			],
			"summary": "s"
		}`)
		assert.Error(t, err)
	})

	t.Run("missing recommendation fails", func(t *testing.T) {
		t.Parallel()
		_, err := ParseResult(`{
			"findings": [{"title": "No action given", "impact": 3, "effort": 3, "area": "SEO"}],
			"summary": "s"
		}`)
		assert.Error(t, err)
	})

	t.Run("empty findings is a valid result", func(t *testing.T) {
		t.Parallel()
		result, err := ParseResult(`{"findings": [], "gaps": [], "summary": "Nothing to flag."}`)
		require.NoError(t, err)
		assert.Empty(t, result.Findings)
	})
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence(`  {"a":1}  `))
}
