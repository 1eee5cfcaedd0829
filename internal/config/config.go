package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	AI        AIConfig        `toml:"ai"`
	Images    ImagesConfig    `toml:"images"`
	Cost      CostConfig      `toml:"cost"`
	Research  ResearchConfig  `toml:"research"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Promotion PromotionConfig `toml:"promotion"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	Host           string   `toml:"host"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls the slog handler installed at startup.
type LogConfig struct {
	Level  string `toml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `toml:"format"` // "text" | "json"
}

// AIConfig holds text generation provider settings. Endpoint, Deployment
// and APIVersion are only used by the "azure" provider.
type AIConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Endpoint       string `toml:"endpoint"`
	Deployment     string `toml:"deployment"`
	APIVersion     string `toml:"api_version"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ImagesConfig holds image generation settings.
type ImagesConfig struct {
	Provider   string `toml:"provider"` // "openai" | "azure" | "none"
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	Size       string `toml:"size"`
	Endpoint   string `toml:"endpoint"`
	Deployment string `toml:"deployment"`
}

// CostConfig holds response caching and spend budget settings.
type CostConfig struct {
	CacheTTLMinutes int     `toml:"cache_ttl_minutes"`
	DailyBudgetUSD  float64 `toml:"daily_budget_usd"`
	InputCostPer1K  float64 `toml:"input_cost_per_1k"`
	OutputCostPer1K float64 `toml:"output_cost_per_1k"`
	ImageCost       float64 `toml:"image_cost"`
}

// ResearchConfig holds topic research settings.
type ResearchConfig struct {
	TrendFeedURL           string `toml:"trend_feed_url"`
	MaxCandidates          int    `toml:"max_candidates"`
	CompetitorArticleLimit int    `toml:"competitor_article_limit"`
}

// SchedulerConfig controls automatic runs.
type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
	Hour    int  `toml:"hour"` // UTC hour scheduled runs start at
}

// PromotionConfig holds social promotion settings.
type PromotionConfig struct {
	Concurrency int `toml:"concurrency"`
}

const defaultConfigContent = `[server]
port = 8080
host = "localhost"
allowed_origins = ["*"]

[log]
level = "info"                    # "debug", "info", "warn" or "error"
format = "text"                   # "text" or "json"

[ai]
provider = "anthropic"            # "anthropic", "openai" or "azure"
api_key = ""                      # Your API key (or set AI_API_KEY env var)
model = "claude-haiku-4-5"
max_tokens = 4096
timeout_seconds = 120

[images]
provider = "none"                 # "openai", "azure" or "none"
model = "dall-e-3"
size = "1792x1024"

[cost]
cache_ttl_minutes = 1440
daily_budget_usd = 5.0            # 0 disables the budget
input_cost_per_1k = 0.001
output_cost_per_1k = 0.005
image_cost = 0.04

[research]
trend_feed_url = "https://trends.google.com/trending/rss?geo=US"
max_candidates = 10
competitor_article_limit = 5

[scheduler]
enabled = true
hour = 6

[promotion]
concurrency = 4
`

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment. Missing files are skipped; variables already set
// in the environment are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
		slog.Debug("loaded environment file", "path", p)
	}
	return nil
}

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg, md)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
// This catches cases like "port = 0" which would otherwise be silently
// replaced by the default value.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("research", "max_candidates") && cfg.Research.MaxCandidates < 1 {
		return fmt.Errorf("invalid research.max_candidates %d: must be >= 1", cfg.Research.MaxCandidates)
	}
	if md.IsDefined("promotion", "concurrency") && cfg.Promotion.Concurrency < 1 {
		return fmt.Errorf("invalid promotion.concurrency %d: must be >= 1", cfg.Promotion.Concurrency)
	}
	if md.IsDefined("cost", "cache_ttl_minutes") && cfg.Cost.CacheTTLMinutes < 0 {
		return fmt.Errorf("invalid cost.cache_ttl_minutes %d: must be >= 0", cfg.Cost.CacheTTLMinutes)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "anthropic"
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "openai", "azure":
			cfg.AI.Model = "gpt-4o-mini"
		default:
			cfg.AI.Model = "claude-haiku-4-5"
		}
	}
	if cfg.AI.APIVersion == "" {
		cfg.AI.APIVersion = "2024-10-21"
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 4096
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.Images.Provider == "" {
		cfg.Images.Provider = "none"
	}
	if cfg.Images.Model == "" {
		cfg.Images.Model = "dall-e-3"
	}
	if cfg.Images.Size == "" {
		cfg.Images.Size = "1792x1024"
	}
	if !md.IsDefined("cost", "cache_ttl_minutes") {
		cfg.Cost.CacheTTLMinutes = 1440
	}
	if cfg.Research.MaxCandidates == 0 {
		cfg.Research.MaxCandidates = 10
	}
	if cfg.Research.CompetitorArticleLimit == 0 {
		cfg.Research.CompetitorArticleLimit = 5
	}
	// The scheduler is on unless a config explicitly turns it off.
	if !md.IsDefined("scheduler", "enabled") {
		cfg.Scheduler.Enabled = true
	}
	if !md.IsDefined("scheduler", "hour") {
		cfg.Scheduler.Hour = 6
	}
	if cfg.Promotion.Concurrency == 0 {
		cfg.Promotion.Concurrency = 4
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. ANTHROPIC_API_KEY (when provider is "anthropic")
//  3. OPENAI_API_KEY (when provider is "openai")
//  4. AZURE_OPENAI_API_KEY (when provider is "azure")
//
// images.api_key falls back to the provider-specific key of the image
// provider when IMAGE_API_KEY is unset.
func applyEnvOverrides(cfg *Config) {
	// Apply provider-specific env var first (lower priority).
	switch cfg.AI.Provider {
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "azure":
		if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	}

	// AI_API_KEY overrides everything (highest priority).
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	switch cfg.Images.Provider {
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.Images.APIKey = v
		}
	case "azure":
		if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
			cfg.Images.APIKey = v
		}
	}
	if v := os.Getenv("IMAGE_API_KEY"); v != "" {
		cfg.Images.APIKey = v
	}

	if v := os.Getenv("QUILL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring non-numeric QUILL_PORT", "value", v)
		}
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.AI.Provider {
	case "anthropic", "openai":
	case "azure":
		if cfg.AI.Endpoint == "" || cfg.AI.Deployment == "" {
			return errors.New("ai.endpoint and ai.deployment are required for the azure provider")
		}
	default:
		return fmt.Errorf("invalid ai.provider %q: must be \"anthropic\", \"openai\" or \"azure\"", cfg.AI.Provider)
	}

	switch cfg.Images.Provider {
	case "none", "openai":
	case "azure":
		if cfg.Images.Endpoint == "" || cfg.Images.Deployment == "" {
			return errors.New("images.endpoint and images.deployment are required for the azure image provider")
		}
	default:
		return fmt.Errorf("invalid images.provider %q: must be \"openai\", \"azure\" or \"none\"", cfg.Images.Provider)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be \"text\" or \"json\"", cfg.Log.Format)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}
	if cfg.Scheduler.Hour < 0 || cfg.Scheduler.Hour > 23 {
		return fmt.Errorf("invalid scheduler.hour %d: must be between 0 and 23", cfg.Scheduler.Hour)
	}
	if cfg.Cost.DailyBudgetUSD < 0 {
		return fmt.Errorf("invalid cost.daily_budget_usd %v: must be >= 0", cfg.Cost.DailyBudgetUSD)
	}

	if cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: set it in the config file or via AI_API_KEY environment variable")
	}

	return nil
}

// SlogLevel maps the configured level name onto a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
