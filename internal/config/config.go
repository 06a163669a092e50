package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	PageSpeed  PageSpeedConfig  `yaml:"pagespeed" mapstructure:"pagespeed"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	VisionModel  string  `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens    int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerS float64 `yaml:"requests_per_s" mapstructure:"requests_per_s"`
}

// PageSpeedConfig holds PageSpeed Insights API settings.
type PageSpeedConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotionConfig holds the optional Notion prompt registry settings.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	PromptDB string `yaml:"prompt_db" mapstructure:"prompt_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings for report delivery.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// AnalysisConfig configures the section analysis fan-out.
type AnalysisConfig struct {
	MaxConcurrentSections int `yaml:"max_concurrent_sections" mapstructure:"max_concurrent_sections"`
	SectionTimeoutSecs    int `yaml:"section_timeout_secs" mapstructure:"section_timeout_secs"`
	MaxCrawlRows          int `yaml:"max_crawl_rows" mapstructure:"max_crawl_rows"`
	MaxKeywordRows        int `yaml:"max_keyword_rows" mapstructure:"max_keyword_rows"`
}

// RulesConfig holds thresholds for the deterministic analytics rules.
type RulesConfig struct {
	BounceRateHigh       float64 `yaml:"bounce_rate_high" mapstructure:"bounce_rate_high"`
	BounceRateSuspicious float64 `yaml:"bounce_rate_suspicious" mapstructure:"bounce_rate_suspicious"`
	ConversionRateLow    float64 `yaml:"conversion_rate_low" mapstructure:"conversion_rate_low"`
	ConversionRateGood   float64 `yaml:"conversion_rate_good" mapstructure:"conversion_rate_good"`
	SessionShortSecs     float64 `yaml:"session_short_secs" mapstructure:"session_short_secs"`
	PagesPerSessionLow   float64 `yaml:"pages_per_session_low" mapstructure:"pages_per_session_low"`
	TrafficSignificant   float64 `yaml:"traffic_significant" mapstructure:"traffic_significant"`
}

// PromptsConfig configures system prompt overrides.
type PromptsConfig struct {
	OverridesPath string `yaml:"overrides_path" mapstructure:"overrides_path"`
}

// IngestConfig configures remote export bundle retrieval.
type IngestConfig struct {
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerS    float64 `yaml:"rate_per_s" mapstructure:"rate_per_s"`
	FTPUser     string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string  `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// ServerConfig configures the wizard API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.requests_per_s", 2)
	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("analysis.max_concurrent_sections", 5)
	v.SetDefault("analysis.section_timeout_secs", 120)
	v.SetDefault("analysis.max_crawl_rows", 200)
	v.SetDefault("analysis.max_keyword_rows", 100)
	v.SetDefault("rules.bounce_rate_high", 60)
	v.SetDefault("rules.bounce_rate_suspicious", 25)
	v.SetDefault("rules.conversion_rate_low", 2)
	v.SetDefault("rules.conversion_rate_good", 5)
	v.SetDefault("rules.session_short_secs", 30)
	v.SetDefault("rules.pages_per_session_low", 1.5)
	v.SetDefault("rules.traffic_significant", 100)
	v.SetDefault("ingest.temp_dir", "/tmp/audit-cli")
	v.SetDefault("ingest.timeout_secs", 60)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.rate_per_s", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
