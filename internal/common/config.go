// Package common provides shared utilities for Stockboard
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Stockboard
type Config struct {
	Environment string           `toml:"environment"`
	TopN        int              `toml:"top_n"` // leaderboard depth for display and ranking comparison
	Data        DataConfig       `toml:"data"`
	Discord     DiscordConfig    `toml:"discord"`
	Schedule    ScheduleConfig   `toml:"schedule"`
	MarketData  MarketDataConfig `toml:"marketdata"`
	Logging     LoggingConfig    `toml:"logging"`
}

// DataConfig locates the upstream leaderboard feed and the local snapshot area.
type DataConfig struct {
	// LeaderboardPath is the upstream directory containing leaderboard-latest.json
	// and the in_time/ archive. Read-only input, owned by the data producer.
	LeaderboardPath string `toml:"leaderboard_path"`
	// SnapshotPath is the local directory for system-owned reference snapshots
	// and trigger markers.
	SnapshotPath string `toml:"snapshot_path"`
}

// DiscordConfig holds the chat delivery endpoints.
type DiscordConfig struct {
	LeaderboardWebhookURL string `toml:"leaderboard_webhook_url"`
	StocksWebhookURL      string `toml:"stocks_webhook_url"` // falls back to the leaderboard webhook
	Timeout               string `toml:"timeout"`
}

// GetTimeout parses and returns the delivery timeout duration
func (c *DiscordConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ScheduleConfig holds the trading-day window and trigger cadence.
type ScheduleConfig struct {
	Timezone     string `toml:"timezone"`
	MarketOpen   string `toml:"market_open"`  // "HH:MM" wall clock in Timezone
	MarketClose  string `toml:"market_close"` // "HH:MM" wall clock in Timezone
	TickInterval string `toml:"tick_interval"`
	MaxSilence   string `toml:"max_silence"`
}

// Location loads the configured timezone, falling back to UTC.
func (c *ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetTickInterval parses and returns the tick interval duration
func (c *ScheduleConfig) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

// GetMaxSilence parses and returns the maximum silence duration
func (c *ScheduleConfig) GetMaxSilence() time.Duration {
	d, err := time.ParseDuration(c.MaxSilence)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ClockTime is an "HH:MM" wall-clock instant.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" (24h).
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On anchors the clock time to the date of t in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
}

// MarketDataConfig holds the market index data source configuration.
type MarketDataConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	BenchmarkSymbol string `toml:"benchmark_symbol"`
	RateLimit       int    `toml:"rate_limit"`
	Timeout         string `toml:"timeout"`
	CacheTTL        string `toml:"cache_ttl"`
}

// GetTimeout parses and returns the HTTP timeout duration
func (c *MarketDataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetCacheTTL parses and returns the series cache TTL
func (c *MarketDataConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		TopN:        5,
		Data: DataConfig{
			SnapshotPath: "data/snapshots",
		},
		Discord: DiscordConfig{
			Timeout: "30s",
		},
		Schedule: ScheduleConfig{
			Timezone:     "America/New_York",
			MarketOpen:   "09:30",
			MarketClose:  "16:00",
			TickInterval: "60s",
			MaxSilence:   "30m",
		},
		MarketData: MarketDataConfig{
			BaseURL:         "https://eodhd.com/api",
			BenchmarkSymbol: "SPY",
			RateLimit:       5,
			Timeout:         "30s",
			CacheTTL:        "1h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOCKBOARD_ENV"); env != "" {
		config.Environment = env
	}

	if v := os.Getenv("STOCKBOARD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("PATH_TO_LEADERBOARD_DATA"); v != "" {
		config.Data.LeaderboardPath = v
	}

	if v := os.Getenv("STOCKBOARD_SNAPSHOT_PATH"); v != "" {
		config.Data.SnapshotPath = v
	}

	if v := os.Getenv("STOCKBOARD_LEADERBOARD_WEBHOOK"); v != "" {
		config.Discord.LeaderboardWebhookURL = v
	}

	if v := os.Getenv("STOCKBOARD_STOCKS_WEBHOOK"); v != "" {
		config.Discord.StocksWebhookURL = v
	}

	if v := os.Getenv("STOCKBOARD_MARKETDATA_API_KEY"); v != "" {
		config.MarketData.APIKey = v
	}

	if v := os.Getenv("STOCKBOARD_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.TopN = n
		}
	}
}

// Validate checks that required external identifiers are present and that
// schedule values parse. A non-nil error here is fatal: the process must not
// start on incomplete configuration.
func (c *Config) Validate() error {
	if c.Data.LeaderboardPath == "" {
		return fmt.Errorf("data.leaderboard_path is required (or set PATH_TO_LEADERBOARD_DATA)")
	}
	if c.Discord.LeaderboardWebhookURL == "" {
		return fmt.Errorf("discord.leaderboard_webhook_url is required")
	}
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", c.TopN)
	}
	if _, err := ParseClockTime(c.Schedule.MarketOpen); err != nil {
		return fmt.Errorf("schedule.market_open: %w", err)
	}
	if _, err := ParseClockTime(c.Schedule.MarketClose); err != nil {
		return fmt.Errorf("schedule.market_close: %w", err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

// StocksWebhook returns the stock-change webhook, falling back to the
// leaderboard webhook when unset.
func (c *DiscordConfig) StocksWebhook() string {
	if c.StocksWebhookURL != "" {
		return c.StocksWebhookURL
	}
	return c.LeaderboardWebhookURL
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
