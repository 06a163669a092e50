package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthlens/audit-cli/internal/analysis"
	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/internal/prompts"
	"github.com/growthlens/audit-cli/internal/rules"
	"github.com/growthlens/audit-cli/internal/store"
	"github.com/growthlens/audit-cli/internal/wizard"
	"github.com/growthlens/audit-cli/pkg/anthropic"
	"github.com/growthlens/audit-cli/pkg/notion"
	"github.com/growthlens/audit-cli/pkg/pagespeed"
	sfpkg "github.com/growthlens/audit-cli/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRegistry builds the prompt registry. A local overrides file wins over
// the Notion prompt database; with neither configured every section uses its
// built-in system prompt.
func initRegistry(ctx context.Context) (*prompts.Registry, error) {
	if cfg.Prompts.OverridesPath != "" {
		overrides, err := prompts.LoadOverridesFile(cfg.Prompts.OverridesPath)
		if err != nil {
			return nil, err
		}
		return prompts.NewRegistry(overrides), nil
	}

	if cfg.Notion.Token != "" && cfg.Notion.PromptDB != "" {
		client := notion.NewClient(cfg.Notion.Token)
		overrides, err := prompts.LoadOverridesNotion(ctx, client, cfg.Notion.PromptDB)
		if err != nil {
			return nil, err
		}
		zap.L().Info("loaded prompt overrides from notion", zap.Int("count", len(overrides)))
		return prompts.NewRegistry(overrides), nil
	}

	return prompts.NewRegistry(nil), nil
}

func initAnalyzer(ctx context.Context) (*analysis.Analyzer, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (AUDIT_ANTHROPIC_KEY)")
	}

	registry, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}

	client := anthropic.NewClient(cfg.Anthropic.Key,
		anthropic.WithRateLimit(cfg.Anthropic.RequestsPerS),
	)

	return analysis.New(client, registry, cfg.Analysis, cfg.Anthropic), nil
}

// initDeps assembles everything a wizard session needs. The caller owns the
// returned store and must Close it.
func initDeps(ctx context.Context) (wizard.Deps, error) {
	st, err := initStore(ctx)
	if err != nil {
		return wizard.Deps{}, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return wizard.Deps{}, err
	}

	analyzer, err := initAnalyzer(ctx)
	if err != nil {
		st.Close() //nolint:errcheck
		return wizard.Deps{}, err
	}

	deps := wizard.Deps{
		Store:          st,
		Analyzer:       analyzer,
		Rules:          rules.New(cfg.Rules),
		MaxCrawlRows:   cfg.Analysis.MaxCrawlRows,
		MaxKeywordRows: cfg.Analysis.MaxKeywordRows,
	}

	if cfg.PageSpeed.Key != "" {
		opts := []pagespeed.Option{}
		if cfg.PageSpeed.BaseURL != "" {
			opts = append(opts, pagespeed.WithBaseURL(cfg.PageSpeed.BaseURL))
		}
		deps.PageSpeed = pagespeed.NewClient(cfg.PageSpeed.Key, opts...)
	}

	return deps, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (AUDIT_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

// parseSections converts comma-separated section names into model sections.
func parseSections(names []string) ([]model.Section, error) {
	var sections []model.Section
	for _, name := range names {
		s, err := model.ParseSection(name)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, nil
}
