package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/growthlens/audit-cli/internal/model"
)

// wireFinding tolerates the two key spellings models emit for the
// rationale field. Everything else is the canonical schema.
type wireFinding struct {
	Title           string `json:"title"`
	WhyItMatters    string `json:"why_it_matters"`
	WhyItMattersAlt string `json:"whyItMatters"`
	Evidence        string `json:"evidence"`
	Recommendation  string `json:"recommendation"`
	Impact          int    `json:"impact"`
	Effort          int    `json:"effort"`
	Area            string `json:"area"`
}

type wireResult struct {
	Findings []wireFinding `json:"findings"`
	Gaps     []string      `json:"gaps"`
	Summary  string        `json:"summary"`
}

// ParseResult decodes a model response into a validated AnalysisResult.
// The response must be the JSON object itself, optionally inside a
// markdown code fence. Anything else fails the whole section; responses
// are never repaired.
func ParseResult(raw string) (*model.AnalysisResult, error) {
	var wire wireResult
	if err := json.Unmarshal([]byte(stripFence(raw)), &wire); err != nil {
		return nil, eris.Wrap(err, "analysis: response is not valid JSON")
	}

	result := &model.AnalysisResult{
		Findings: make([]model.Finding, 0, len(wire.Findings)),
		Gaps:     wire.Gaps,
		Summary:  wire.Summary,
	}
	for _, wf := range wire.Findings {
		why := wf.WhyItMatters
		if why == "" {
			why = wf.WhyItMattersAlt
		}
		result.Findings = append(result.Findings, model.Finding{
			Title:          wf.Title,
			WhyItMatters:   why,
			Evidence:       wf.Evidence,
			Recommendation: wf.Recommendation,
			Impact:         wf.Impact,
			Effort:         wf.Effort,
			Area:           wf.Area,
		})
	}

	if err := result.Validate(); err != nil {
		return nil, eris.Wrap(err, "analysis: response failed validation")
	}
	return result, nil
}

// stripFence removes a surrounding markdown code fence, if present. The
// fence is formatting, not content; everything inside still has to parse.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
