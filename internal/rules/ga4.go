// Package rules runs deterministic threshold checks over parsed analytics
// exports. Rule findings complement the AI sections with evidence the model
// cannot hallucinate.
package rules

import (
	"fmt"

	"github.com/growthlens/audit-cli/internal/config"
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/parser"
)

// Engine evaluates analytics reports against configured thresholds.
type Engine struct {
	cfg config.RulesConfig
}

// New creates a rule engine with the given thresholds.
func New(cfg config.RulesConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate derives rule-based findings from a GA4 report. Reports below the
// significant-traffic threshold produce nothing: rates over a handful of
// sessions are noise, not evidence.
func (e *Engine) Evaluate(report *parser.AnalyticsReport) []model.Finding {
	if report == nil || float64(report.Sessions) < e.cfg.TrafficSignificant {
		return nil
	}

	var findings []model.Finding

	if report.BounceRate > e.cfg.BounceRateHigh {
		findings = append(findings, model.Finding{
			Title:          "High site-wide bounce rate",
			WhyItMatters:   "Visitors leave before engaging, so acquisition spend converts poorly",
			Evidence:       fmt.Sprintf("Bounce rate %.1f%% across %d sessions (threshold %.0f%%)", report.BounceRate, report.Sessions, e.cfg.BounceRateHigh),
			Recommendation: "Review landing page relevance and load performance for the top entry pages",
			Impact:         4,
			Effort:         3,
			Area:           "GA4",
		})
	} else if report.BounceRate > 0 && report.BounceRate < e.cfg.BounceRateSuspicious {
		findings = append(findings, model.Finding{
			Title:          "Suspiciously low bounce rate",
			WhyItMatters:   "A bounce rate this low usually means double-firing tags, not engaged visitors, so every other metric is inflated",
			Evidence:       fmt.Sprintf("Bounce rate %.1f%% across %d sessions (below %.0f%%)", report.BounceRate, report.Sessions, e.cfg.BounceRateSuspicious),
			Recommendation: "Audit the GA4 tag setup for duplicate page_view events",
			Impact:         4,
			Effort:         2,
			Area:           "GA4",
		})
	}

	if report.ConversionRate > 0 && report.ConversionRate < e.cfg.ConversionRateLow {
		findings = append(findings, model.Finding{
			Title:          "Low conversion rate",
			WhyItMatters:   "Traffic is not turning into business outcomes",
			Evidence:       fmt.Sprintf("Conversion rate %.2f%% (threshold %.0f%%)", report.ConversionRate, e.cfg.ConversionRateLow),
			Recommendation: "Prioritize conversion path review on the highest-traffic landing pages",
			Impact:         5,
			Effort:         3,
			Area:           "GA4",
		})
	}
	if report.ConversionRate == 0 {
		findings = append(findings, model.Finding{
			Title:          "No conversions recorded",
			WhyItMatters:   "Either nothing converts or conversions are not being measured; both block any ROI statement",
			Evidence:       fmt.Sprintf("0 key events across %d sessions", report.Sessions),
			Recommendation: "Define and implement key events for the primary conversion actions",
			Impact:         5,
			Effort:         2,
			Area:           "GA4",
		})
	}

	if report.AvgSessionSecs > 0 && report.AvgSessionSecs < e.cfg.SessionShortSecs {
		findings = append(findings, model.Finding{
			Title:          "Very short average session duration",
			WhyItMatters:   "Visitors are not finding what they came for",
			Evidence:       fmt.Sprintf("Average session duration %.0fs (threshold %.0fs)", report.AvgSessionSecs, e.cfg.SessionShortSecs),
			Recommendation: "Check top entry pages for content/intent mismatch and performance issues",
			Impact:         3,
			Effort:         3,
			Area:           "GA4",
		})
	}

	if report.PagesPerSession > 0 && report.PagesPerSession < e.cfg.PagesPerSessionLow {
		findings = append(findings, model.Finding{
			Title:          "Low page depth per session",
			WhyItMatters:   "Weak internal navigation keeps visitors from discovering conversion paths",
			Evidence:       fmt.Sprintf("%.2f pages per session (threshold %.1f)", report.PagesPerSession, e.cfg.PagesPerSessionLow),
			Recommendation: "Strengthen internal linking and calls to action on high-traffic pages",
			Impact:         3,
			Effort:         2,
			Area:           "GA4",
		})
	}

	return findings
}

// Assessments returns positive evidence lines for metrics that clear their
// healthy thresholds, so the prompt also states what is working instead of
// leaving the model to invent problems. Same traffic gate as Evaluate.
func (e *Engine) Assessments(report *parser.AnalyticsReport) []string {
	if report == nil || float64(report.Sessions) < e.cfg.TrafficSignificant {
		return nil
	}

	var lines []string
	if report.ConversionRate >= e.cfg.ConversionRateGood {
		lines = append(lines, fmt.Sprintf("Conversion rate %.2f%% is at or above the %.0f%% healthy benchmark", report.ConversionRate, e.cfg.ConversionRateGood))
	}
	if report.BounceRate >= e.cfg.BounceRateSuspicious && report.BounceRate <= e.cfg.BounceRateHigh {
		lines = append(lines, fmt.Sprintf("Bounce rate %.1f%% is within the normal %.0f-%.0f%% band", report.BounceRate, e.cfg.BounceRateSuspicious, e.cfg.BounceRateHigh))
	}
	return lines
}
