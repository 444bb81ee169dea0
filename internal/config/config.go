package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/patternradar/pkg/achievement"
	"github.com/elonfeng/patternradar/pkg/pattern"
)

// Config is the root configuration.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Server       ServerConfig       `yaml:"server"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	LLM          LLMConfig          `yaml:"llm"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	Achievements AchievementsConfig `yaml:"achievements"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Log          LogConfig          `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AnalysisConfig configures the pattern engine.
type AnalysisConfig struct {
	Threshold         float64       `yaml:"threshold"`
	SentimentDeadZone float64       `yaml:"sentiment_dead_zone"`
	WindowDays        int           `yaml:"window_days"`
	SimilarPosts      int           `yaml:"similar_posts"`
	TopHashtags       int           `yaml:"top_hashtags"`
	KPI               KPIConfig     `yaml:"kpi"`
	Cluster           ClusterConfig `yaml:"cluster"`
}

// KPIConfig holds the per-rate weights of the KPI score.
type KPIConfig struct {
	Saves    float64 `yaml:"saves"`
	Comments float64 `yaml:"comments"`
	Shares   float64 `yaml:"shares"`
	Likes    float64 `yaml:"likes"`
}

// ClusterConfig controls similarity refinement inside a category.
type ClusterConfig struct {
	MinRefineSize    int     `yaml:"min_refine_size"`
	MinClusterSize   int     `yaml:"min_cluster_size"`
	RefineSimilarity float64 `yaml:"refine_similarity"`
}

// Window returns the analysis window as a duration.
func (a AnalysisConfig) Window() time.Duration {
	return time.Duration(a.WindowDays) * 24 * time.Hour
}

// EngineOptions converts the analysis section to engine options.
func (c *Config) EngineOptions() pattern.Options {
	opts := pattern.DefaultOptions()
	opts.Threshold = c.Analysis.Threshold
	opts.SentimentDeadZone = c.Analysis.SentimentDeadZone
	opts.SimilarPosts = c.Analysis.SimilarPosts
	opts.TopHashtags = c.Analysis.TopHashtags
	opts.KPIWeights = pattern.KPIWeights{
		Saves:    c.Analysis.KPI.Saves,
		Comments: c.Analysis.KPI.Comments,
		Shares:   c.Analysis.KPI.Shares,
		Likes:    c.Analysis.KPI.Likes,
	}
	opts.Cluster = pattern.ClusterOptions{
		MinRefineSize:    c.Analysis.Cluster.MinRefineSize,
		MinClusterSize:   c.Analysis.Cluster.MinClusterSize,
		RefineSimilarity: c.Analysis.Cluster.RefineSimilarity,
	}
	opts.NarrateTimeout = c.LLM.ParseTimeout()
	if c.LLM.Enabled {
		opts.NarrateLimit = c.LLM.NarrateLimit
	} else {
		opts.NarrateLimit = 0
	}
	return opts
}

// LLMConfig configures the optional narrative generator.
type LLMConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Provider     string `yaml:"provider"` // "openai" or "anthropic"
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"` // custom endpoint (optional)
	Timeout      string `yaml:"timeout"`
	NarrateLimit int    `yaml:"narrate_limit"` // posts narrated per dashboard
}

// ParseTimeout returns the per-call timeout as time.Duration.
func (l LLMConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// AlertsConfig configures badge notification destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// AchievementsConfig overrides the built-in badge catalog when Catalog is set.
type AchievementsConfig struct {
	Catalog []achievement.Definition `yaml:"catalog"`
}

// Definitions returns the configured catalog or the built-in one.
func (a AchievementsConfig) Definitions() []achievement.Definition {
	if len(a.Catalog) == 0 {
		return achievement.DefaultCatalog
	}
	return a.Catalog
}

// IngestConfig configures feed imports and the background refresh loop.
type IngestConfig struct {
	ImportInterval  string     `yaml:"import_interval"`
	RefreshInterval string     `yaml:"refresh_interval"`
	Feeds           []FeedItem `yaml:"feeds"`
}

// ParseImportInterval returns the feed import interval as time.Duration.
func (i IngestConfig) ParseImportInterval() time.Duration {
	d, err := time.ParseDuration(i.ImportInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// ParseRefreshInterval returns the dashboard refresh interval as time.Duration.
func (i IngestConfig) ParseRefreshInterval() time.Duration {
	d, err := time.ParseDuration(i.RefreshInterval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// FeedItem is a creator's public feed imported for one user.
type FeedItem struct {
	Name     string `yaml:"name"`
	UserID   string `yaml:"user_id"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./patternradar.db"},
		Server:   ServerConfig{Port: 8080},
		Analysis: AnalysisConfig{
			Threshold:         pattern.DefaultThreshold,
			SentimentDeadZone: pattern.DefaultSentimentDeadZone,
			WindowDays:        30,
			SimilarPosts:      3,
			TopHashtags:       10,
			KPI:               KPIConfig{Saves: 3, Comments: 2, Shares: 2, Likes: 1},
			Cluster: ClusterConfig{
				MinRefineSize:    5,
				MinClusterSize:   3,
				RefineSimilarity: 0.6,
			},
		},
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			Timeout:      "15s",
			NarrateLimit: 5,
		},
		Ingest: IngestConfig{
			ImportInterval:  "1h",
			RefreshInterval: "6h",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PATTERNRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PATTERNRADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "anthropic"
	}
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks value ranges and badge ids.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Analysis.Threshold <= 0 || c.Analysis.Threshold >= 1 {
		problems = append(problems, fmt.Sprintf("analysis.threshold must be in (0, 1), got %v", c.Analysis.Threshold))
	}
	if c.Analysis.SentimentDeadZone < 0 || c.Analysis.SentimentDeadZone >= 1 {
		problems = append(problems, fmt.Sprintf("analysis.sentiment_dead_zone must be in [0, 1), got %v", c.Analysis.SentimentDeadZone))
	}
	if c.Analysis.WindowDays <= 0 {
		problems = append(problems, "analysis.window_days must be positive")
	}
	k := c.Analysis.KPI
	if k.Saves < 0 || k.Comments < 0 || k.Shares < 0 || k.Likes < 0 {
		problems = append(problems, "analysis.kpi weights must be non-negative")
	}
	if c.Analysis.Cluster.RefineSimilarity < 0 || c.Analysis.Cluster.RefineSimilarity > 1 {
		problems = append(problems, "analysis.cluster.refine_similarity must be in [0, 1]")
	}
	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case "openai", "anthropic":
		default:
			problems = append(problems, fmt.Sprintf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	for i, f := range c.Ingest.Feeds {
		if f.UserID == "" || f.URL == "" {
			problems = append(problems, fmt.Sprintf("ingest.feeds[%d]: user_id and url are required", i))
		}
	}
	if err := achievement.Validate(c.Achievements.Definitions()); err != nil {
		problems = append(problems, "achievements: "+err.Error())
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// IsValidationError reports whether err is a configuration validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
