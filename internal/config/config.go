// Package config loads runtime settings from defaults, an optional file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "STOCKFEED"

// Configuration validation errors.
var (
	ErrInvalidMaxAttempts = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidBaseDelay   = errors.New("retry.base_delay must be non-negative")
	ErrInvalidThrottle    = errors.New("throttle.min_delay must be non-negative and not exceed throttle.max_delay")
	ErrInvalidTimeout     = errors.New("source.timeout must be positive")
	ErrMissingBaseURL     = errors.New("source.base_url is required")
	ErrMissingTemplate    = errors.New("source.path_template must contain {code}")
	ErrMissingLanguage    = errors.New("feed.language is required")
	ErrInvalidList        = errors.New("lists entries need name, env and output")
)

// Config is the full runtime configuration.
type Config struct {
	Debug          bool           `mapstructure:"debug"`
	Log            LogConfig      `mapstructure:"log"`
	Source         SourceConfig   `mapstructure:"source"`
	Retry          RetryConfig    `mapstructure:"retry"`
	Throttle       ThrottleConfig `mapstructure:"throttle"`
	Fetch          FetchConfig    `mapstructure:"fetch"`
	Feed           FeedConfig     `mapstructure:"feed"`
	OutputDir      string         `mapstructure:"output_dir"`
	RunLog         RunLogConfig   `mapstructure:"runlog"`
	PublishersFile string         `mapstructure:"publishers_file"`
	Schedule       string         `mapstructure:"schedule"`
	Lists          []ListConfig   `mapstructure:"lists"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SourceConfig describes the news listing endpoint.
type SourceConfig struct {
	BaseURL      string            `mapstructure:"base_url"`
	PathTemplate string            `mapstructure:"path_template"`
	UserAgent    string            `mapstructure:"user_agent"`
	Headers      map[string]string `mapstructure:"headers"`
	Timeout      time.Duration     `mapstructure:"timeout"`
}

// RetryConfig holds the fetch retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// ThrottleConfig bounds the random pause between stock codes.
type ThrottleConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// FetchConfig holds parser behaviour switches.
type FetchConfig struct {
	NormalizeFallbackZone bool `mapstructure:"normalize_fallback_zone"`
}

// FeedConfig holds channel-level metadata.
type FeedConfig struct {
	Title       string `mapstructure:"title"`
	Link        string `mapstructure:"link"`
	Description string `mapstructure:"description"`
	Language    string `mapstructure:"language"`
}

// RunLogConfig locates the run history database. Empty path disables it.
type RunLogConfig struct {
	Path string `mapstructure:"path"`
}

// ListConfig maps an environment variable holding comma-separated codes to an output file.
type ListConfig struct {
	Name   string `mapstructure:"name"`
	Env    string `mapstructure:"env"`
	Output string `mapstructure:"output"`
}

// Load reads .env (if present), then the optional config file, then STOCKFEED_* variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DEBUG=true without prefix is honoured for compatibility with existing cron setups.
	if err := v.BindEnv("debug", envPrefix+"_DEBUG", "DEBUG"); err != nil {
		return nil, fmt.Errorf("bind debug env: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "json")

	v.SetDefault("source.base_url", "https://www.aastocks.com")
	v.SetDefault("source.path_template", "/tc/stocks/analysis/stock-aafn/{code}/0/hk-stock-news/1")
	v.SetDefault("source.user_agent", "Mozilla/5.0")
	v.SetDefault("source.timeout", 10*time.Second)

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay", time.Second)

	v.SetDefault("throttle.min_delay", 2*time.Second)
	v.SetDefault("throttle.max_delay", 5*time.Second)

	v.SetDefault("fetch.normalize_fallback_zone", false)

	v.SetDefault("feed.title", "AASTOCKS 綜合股票新聞")
	v.SetDefault("feed.link", "https://www.aastocks.com/tc/stocks/news/aafn")
	v.SetDefault("feed.description", "綜合多隻股票的最新新聞 RSS Feed")
	v.SetDefault("feed.language", "zh-HK")

	v.SetDefault("output_dir", ".")
	v.SetDefault("runlog.path", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("schedule", "")

	v.SetDefault("lists", []map[string]any{
		{"name": "my", "env": "STOCK_LIST_MY", "output": "stocks_rss.xml"},
		{"name": "watch", "env": "STOCK_LIST_WATCH", "output": "watch_rss.xml"},
	})
}

// Validate checks the configuration for values the runner cannot work with.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.BaseDelay < 0 {
		return ErrInvalidBaseDelay
	}
	if c.Throttle.MinDelay < 0 || c.Throttle.MinDelay > c.Throttle.MaxDelay {
		return ErrInvalidThrottle
	}
	if c.Source.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if !strings.Contains(c.Source.PathTemplate, "{code}") {
		return ErrMissingTemplate
	}
	if strings.TrimSpace(c.Feed.Language) == "" {
		return ErrMissingLanguage
	}
	for i, l := range c.Lists {
		if strings.TrimSpace(l.Name) == "" || strings.TrimSpace(l.Env) == "" || strings.TrimSpace(l.Output) == "" {
			return fmt.Errorf("%w: lists[%d]", ErrInvalidList, i)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel resolves the effective log level: an explicit log.level wins,
// otherwise debug mode logs at info and normal runs only surface warnings.
func (c *Config) LogLevel() (string, error) {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "":
		if c.Debug {
			return "info", nil
		}
		return "warn", nil
	case "debug", "info", "warn", "error":
		return level, nil
	default:
		return "", fmt.Errorf("log.level %q must be one of: debug, info, warn, error", c.Log.Level)
	}
}

// String returns a short summary suitable for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Source: %s, MaxAttempts: %d, Lists: %d, OutputDir: %s}",
		c.Source.BaseURL,
		c.Retry.MaxAttempts,
		len(c.Lists),
		c.OutputDir,
	)
}
