// Package analysis runs the AI section analyses: prompt assembly, the
// fan-out over sections, and the strict parse of model responses.
package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/growthlens/audit-cli/internal/config"
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/prompts"
	"github.com/growthlens/audit-cli/pkg/anthropic"
)

// SectionJob bundles one section with the data its prompt draws on.
// Screenshots ride along for vision-capable sections.
type SectionJob struct {
	Section     model.Section
	Inputs      prompts.Inputs
	Screenshots []anthropic.Image
}

// Analyzer fans section analyses out to the Anthropic API.
type Analyzer struct {
	client   anthropic.Client
	registry *prompts.Registry
	cfg      config.AnalysisConfig
	api      config.AnthropicConfig
}

// New builds an Analyzer. A nil registry means built-in prompts only.
func New(client anthropic.Client, registry *prompts.Registry, cfg config.AnalysisConfig, api config.AnthropicConfig) *Analyzer {
	return &Analyzer{client: client, registry: registry, cfg: cfg, api: api}
}

// Run analyzes every job concurrently and waits for all of them. Each
// job gets its own timeout; a failed section records its error and the
// rest continue. The returned states are in job order.
func (a *Analyzer) Run(ctx context.Context, jobs []SectionJob, pctx prompts.Context) []model.SectionState {
	states := make([]model.SectionState, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.MaxConcurrentSections > 0 {
		g.SetLimit(a.cfg.MaxConcurrentSections)
	}
	for i, job := range jobs {
		g.Go(func() error {
			states[i] = a.runSection(gctx, job, pctx)
			return nil
		})
	}
	// Goroutines never return errors; section failures land in the states.
	_ = g.Wait()

	return states
}

func (a *Analyzer) runSection(ctx context.Context, job SectionJob, pctx prompts.Context) model.SectionState {
	state := model.SectionState{Section: job.Section, Status: model.SectionStatusRunning}
	start := time.Now()

	if a.cfg.SectionTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.SectionTimeoutSecs)*time.Second)
		defer cancel()
	}

	result, usage, err := a.analyze(ctx, job, pctx)
	state.Duration = time.Since(start).Milliseconds()
	state.Usage = usage
	if err != nil {
		zap.L().Warn("section analysis failed",
			zap.String("section", string(job.Section)),
			zap.Error(err))
		state.Status = model.SectionStatusFailed
		state.Error = err.Error()
		return state
	}

	zap.L().Info("section analysis complete",
		zap.String("section", string(job.Section)),
		zap.Int("findings", len(result.Findings)),
		zap.Int64("duration_ms", state.Duration))
	state.Status = model.SectionStatusComplete
	state.Result = result
	return state
}

func (a *Analyzer) analyze(ctx context.Context, job SectionJob, pctx prompts.Context) (*model.AnalysisResult, model.TokenUsage, error) {
	user, err := prompts.User(job.Section, job.Inputs, pctx)
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	modelID := a.api.Model
	if len(job.Screenshots) > 0 && a.api.VisionModel != "" {
		modelID = a.api.VisionModel
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     modelID,
		MaxTokens: a.api.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(a.registry.System(job.Section)),
		Messages: []anthropic.Message{
			{Role: "user", Content: user, Images: job.Screenshots},
		},
		Temperature: &a.api.Temperature,
	})
	if err != nil {
		return nil, model.TokenUsage{}, err
	}
	usage := toModelUsage(resp.Usage, modelID)
	resp.Usage.LogCost(modelID, string(job.Section))

	result, err := ParseResult(resp.Text())
	if err != nil {
		return nil, usage, err
	}
	return result, usage, nil
}

func toModelUsage(u anthropic.TokenUsage, modelID string) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:  u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens,
		OutputTokens: u.OutputTokens,
		Cost:         u.EstimateCost(modelID),
	}
}
