// Package wizard drives a guided audit: company details, source files,
// context questions, analysis, review and a single finalize step. All
// state lives on the Session; nothing is global.
package wizard

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/analysis"
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/parser"
	"github.com/growthlens/audit-cli/internal/prompts"
	"github.com/growthlens/audit-cli/internal/report"
	"github.com/growthlens/audit-cli/internal/rules"
	"github.com/growthlens/audit-cli/internal/store"
	"github.com/growthlens/audit-cli/pkg/anthropic"
	"github.com/growthlens/audit-cli/pkg/pagespeed"
)

// Step identifies where a session is in the wizard flow.
type Step string

const (
	StepSetup     Step = "setup"     // company, sources, context
	StepAnalyzing Step = "analyzing" // sections in flight
	StepReview    Step = "review"    // findings editable
	StepDone      Step = "done"      // finalized, result frozen
)

// Deps bundles the collaborators a session needs. PageSpeed is optional;
// without it the CRO/UX section runs on analytics data alone.
type Deps struct {
	Store     store.Store
	Analyzer  *analysis.Analyzer
	Rules     *rules.Engine
	PageSpeed pagespeed.Client

	// Row caps keep crawl and keyword exports inside the prompt budget.
	// Zero means no cap.
	MaxCrawlRows   int
	MaxKeywordRows int
}

// Session is one audit in progress. Methods are safe for concurrent use,
// which the serve mode relies on.
type Session struct {
	mu   sync.Mutex
	deps Deps

	run        *model.AuditRun
	files      model.SourceFiles
	answers    model.ContextAnswers
	step       Step
	finalizing bool

	summary      string
	summaryUsage model.TokenUsage
	result       *model.AggregatedResult
}

// NewSession creates a persisted run and an empty session around it.
func NewSession(ctx context.Context, deps Deps, company model.CompanyInfo) (*Session, error) {
	if strings.TrimSpace(company.Name) == "" {
		return nil, eris.New("wizard: company name is required")
	}
	run, err := deps.Store.CreateRun(ctx, company)
	if err != nil {
		return nil, eris.Wrap(err, "wizard: create run")
	}
	return &Session{deps: deps, run: run, step: StepSetup}, nil
}

// Resume rebuilds a session from a persisted run, landing on the step
// its status implies.
func Resume(ctx context.Context, deps Deps, runID string) (*Session, error) {
	run, err := deps.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "wizard: resume run")
	}
	s := &Session{deps: deps, run: run, step: StepSetup}
	switch run.Status {
	case model.RunStatusAnalyzing:
		s.step = StepAnalyzing
	case model.RunStatusReviewing, model.RunStatusAggregating:
		s.step = StepReview
	case model.RunStatusComplete:
		s.step = StepDone
		s.result = run.Result
	}
	return s, nil
}

// ID returns the underlying run's ID.
func (s *Session) ID() string {
	return s.run.ID
}

// Step returns the session's current wizard step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Run returns a snapshot of the underlying run.
func (s *Session) Run() model.AuditRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.run
}

// SetSources records the uploaded export files. Only allowed during setup.
func (s *Session) SetSources(files model.SourceFiles) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepSetup {
		return eris.Errorf("wizard: cannot change sources at step %s", s.step)
	}
	s.files = files
	return nil
}

// SetContext records the questionnaire answers. Only allowed during setup.
func (s *Session) SetContext(answers model.ContextAnswers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepSetup {
		return eris.Errorf("wizard: cannot change context at step %s", s.step)
	}
	s.answers = answers
	return nil
}

// Analyze parses the sources, runs every requested section and moves the
// session to review. Missing or unparseable source files degrade the
// prompts; failed sections degrade the result. Neither aborts the audit.
func (s *Session) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if s.step != StepSetup {
		s.mu.Unlock()
		return eris.Errorf("wizard: analyze not allowed at step %s", s.step)
	}
	s.step = StepAnalyzing
	files := s.files
	answers := s.answers
	company := s.run.Company
	s.mu.Unlock()

	if err := s.deps.Store.UpdateRunStatus(ctx, s.run.ID, model.RunStatusParsing); err != nil {
		return err
	}
	inputs := s.parseSources(ctx, files, company)

	if err := s.deps.Store.UpdateRunStatus(ctx, s.run.ID, model.RunStatusAnalyzing); err != nil {
		return err
	}

	sections := company.Sections
	if len(sections) == 0 {
		sections = model.AllSections
	}
	jobs := make([]analysis.SectionJob, 0, len(sections))
	for _, section := range sections {
		job := analysis.SectionJob{Section: section, Inputs: inputs[section]}
		if section == model.SectionCROUX {
			job.Screenshots = loadScreenshots(files.Screenshots)
		}
		jobs = append(jobs, job)
	}

	states := s.deps.Analyzer.Run(ctx, jobs, prompts.Context{
		Company:      company.Name,
		Domain:       company.Domain,
		BusinessGoal: answers.BusinessGoal,
		Conversions:  answers.Conversions,
		Competitors:  answers.Competitors,
		Markets:      answers.Markets,
	})
	for _, st := range states {
		if err := s.deps.Store.UpsertSection(ctx, s.run.ID, st); err != nil {
			return err
		}
	}
	if err := s.deps.Store.UpdateRunStatus(ctx, s.run.ID, model.RunStatusReviewing); err != nil {
		return err
	}

	s.mu.Lock()
	s.run.Sections = states
	s.run.Status = model.RunStatusReviewing
	s.step = StepReview
	s.mu.Unlock()
	return nil
}

// parseSources reads whatever export files are present and builds the
// per-section prompt inputs. A file that fails to parse is logged and
// treated as missing.
func (s *Session) parseSources(ctx context.Context, files model.SourceFiles, company model.CompanyInfo) map[model.Section]prompts.Inputs {
	var (
		analytics *parser.AnalyticsReport
		crawl     []parser.CrawlRow
		keywords  []parser.KeywordRow
	)

	if files.Analytics != "" {
		var err error
		if analytics, err = parser.ParseAnalytics(ctx, files.Analytics); err != nil {
			zap.L().Warn("analytics export unusable", zap.String("path", files.Analytics), zap.Error(err))
			analytics = nil
		}
	}
	if files.Crawl != "" {
		var err error
		if crawl, err = parser.ParseCrawl(ctx, files.Crawl); err != nil {
			zap.L().Warn("crawl export unusable", zap.String("path", files.Crawl), zap.Error(err))
			crawl = nil
		}
		crawl = capRows(crawl, s.deps.MaxCrawlRows)
	}
	if files.Keywords != "" {
		var err error
		if keywords, err = parser.ParseKeywords(ctx, files.Keywords); err != nil {
			zap.L().Warn("keywords export unusable", zap.String("path", files.Keywords), zap.Error(err))
			keywords = nil
		}
		keywords = capRows(keywords, s.deps.MaxKeywordRows)
	}

	var tagManager string
	if files.TagManager != "" {
		if data, err := os.ReadFile(files.TagManager); err != nil {
			zap.L().Warn("tag manager export unusable", zap.String("path", files.TagManager), zap.Error(err))
		} else {
			tagManager = string(data)
		}
	}

	var ruleEvidence []string
	if s.deps.Rules != nil && analytics != nil {
		for _, f := range s.deps.Rules.Evaluate(analytics) {
			ruleEvidence = append(ruleEvidence, f.Evidence)
		}
		ruleEvidence = append(ruleEvidence, s.deps.Rules.Assessments(analytics)...)
	}

	var pageSpeed string
	if s.deps.PageSpeed != nil && company.Domain != "" {
		if result, err := s.deps.PageSpeed.Analyze(ctx, "https://"+company.Domain+"/", pagespeed.StrategyMobile); err != nil {
			zap.L().Warn("pagespeed analysis failed", zap.String("domain", company.Domain), zap.Error(err))
		} else if data, err := json.Marshal(result); err == nil {
			pageSpeed = string(data)
		}
	}

	return map[model.Section]prompts.Inputs{
		model.SectionMeasurement: {Analytics: analytics, TagManager: tagManager, RuleEvidence: ruleEvidence},
		model.SectionData:        {Analytics: analytics, RuleEvidence: ruleEvidence},
		model.SectionCROUX:       {Analytics: analytics, PageSpeed: pageSpeed},
		model.SectionSEO:         {Crawl: crawl, Keywords: keywords},
		model.SectionGEO:         {Crawl: crawl},
	}
}

// EditFinding replaces one finding of a completed section during review.
// The replacement is validated the same way ingested findings are.
func (s *Session) EditFinding(ctx context.Context, section model.Section, index int, f model.Finding) error {
	if err := f.Validate(); err != nil {
		return eris.Wrap(err, "wizard: edited finding")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepReview {
		return eris.Errorf("wizard: findings not editable at step %s", s.step)
	}
	st, err := s.sectionStateLocked(section, index)
	if err != nil {
		return err
	}
	st.Result.Findings[index] = f
	return s.deps.Store.UpsertSection(ctx, s.run.ID, *st)
}

// RemoveFinding drops one finding of a completed section during review.
func (s *Session) RemoveFinding(ctx context.Context, section model.Section, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepReview {
		return eris.Errorf("wizard: findings not editable at step %s", s.step)
	}
	st, err := s.sectionStateLocked(section, index)
	if err != nil {
		return err
	}
	st.Result.Findings = append(st.Result.Findings[:index], st.Result.Findings[index+1:]...)
	return s.deps.Store.UpsertSection(ctx, s.run.ID, *st)
}

func (s *Session) sectionStateLocked(section model.Section, index int) (*model.SectionState, error) {
	for i := range s.run.Sections {
		st := &s.run.Sections[i]
		if st.Section != section {
			continue
		}
		if st.Status != model.SectionStatusComplete || st.Result == nil {
			return nil, eris.Errorf("wizard: section %s has no reviewable result", section)
		}
		if index < 0 || index >= len(st.Result.Findings) {
			return nil, eris.Errorf("wizard: finding index %d out of range for section %s", index, section)
		}
		return st, nil
	}
	return nil, eris.Errorf("wizard: unknown section %s", section)
}

// Finalize generates the executive summary, aggregates the findings and
// freezes the session. It can only happen once.
func (s *Session) Finalize(ctx context.Context) (*model.AggregatedResult, error) {
	s.mu.Lock()
	if s.step == StepDone {
		s.mu.Unlock()
		return nil, eris.New("wizard: session already finalized")
	}
	if s.step != StepReview {
		s.mu.Unlock()
		return nil, eris.Errorf("wizard: finalize not allowed at step %s", s.step)
	}
	if s.finalizing {
		s.mu.Unlock()
		return nil, eris.New("wizard: finalize already in progress")
	}
	// Claimed under the lock so concurrent callers can never both pass the
	// step check; released only on the error paths below.
	s.finalizing = true
	runCopy := *s.run
	s.mu.Unlock()

	if err := s.deps.Store.UpdateRunStatus(ctx, s.run.ID, model.RunStatusAggregating); err != nil {
		return nil, s.abortFinalize(err)
	}

	summary, usage, err := s.deps.Analyzer.Summarize(ctx, runCopy.Company.Name, runCopy.Sections)
	if err != nil {
		// Findings still aggregate; the report just lacks the summary.
		zap.L().Warn("executive summary failed", zap.Error(err))
		summary = ""
	}

	result := report.Assemble(&runCopy, summary)
	if err := s.deps.Store.UpdateRunResult(ctx, s.run.ID, result); err != nil {
		return nil, s.abortFinalize(err)
	}

	s.mu.Lock()
	s.summary = summary
	s.summaryUsage = usage
	s.result = result
	s.run.Result = result
	s.run.Status = model.RunStatusComplete
	s.step = StepDone
	s.finalizing = false
	s.mu.Unlock()
	return result, nil
}

// abortFinalize releases the finalize claim so the caller can retry after a
// store failure.
func (s *Session) abortFinalize(err error) error {
	s.mu.Lock()
	s.finalizing = false
	s.mu.Unlock()
	return err
}

// Result returns the final aggregated result, or nil before Finalize.
func (s *Session) Result() *model.AggregatedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// TotalUsage sums token usage across sections and the summary call.
func (s *Session) TotalUsage() model.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.summaryUsage
	for _, st := range s.run.Sections {
		total.Add(st.Usage)
	}
	return total
}

func capRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// loadScreenshots reads screenshot files into base64 image attachments.
// Unreadable files are skipped with a warning.
func loadScreenshots(paths []string) []anthropic.Image {
	var images []anthropic.Image
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			zap.L().Warn("screenshot unreadable", zap.String("path", p), zap.Error(err))
			continue
		}
		mediaType := "image/png"
		switch strings.ToLower(filepath.Ext(p)) {
		case ".jpg", ".jpeg":
			mediaType = "image/jpeg"
		case ".webp":
			mediaType = "image/webp"
		}
		images = append(images, anthropic.Image{
			MediaType: mediaType,
			Data:      base64.StdEncoding.EncodeToString(data),
		})
	}
	return images
}
