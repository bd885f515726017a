package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/runner"
	"option-replay-lab/internal/search"
	"option-replay-lab/internal/selector"
)

// Config errors
var (
	ErrConfigInvalid = errors.New("invalid config")
	ErrConfigMissing = errors.New("missing config value")
)

// Storage backends
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Archive sink types
const (
	ArchiveNone    = ""
	ArchiveLocalFS = "localfs"
	ArchiveS3      = "s3"
)

// EnvPrefix prefixes environment overrides, e.g. REPLAY_LAB_RISK_STOP_LOSS_PCT.
const EnvPrefix = "REPLAY_LAB"

type Config struct {
	Log       LogConfig           `mapstructure:"log"`
	Storage   StorageConfig       `mapstructure:"storage"`
	Archive   ArchiveConfig       `mapstructure:"archive"`
	Risk      RiskConfig          `mapstructure:"risk"`
	Selection SelectionConfig     `mapstructure:"selection"`
	Runner    RunnerConfig        `mapstructure:"runner"`
	Rules     []selector.RuleSpec `mapstructure:"rules"`
	Search    SearchConfig        `mapstructure:"search"`
	Metrics   MetricsConfig       `mapstructure:"metrics"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig selects where snapshots, quotes and results live.
// Trades and aggregates go to Postgres for both SQL backends; the ClickHouse
// backend serves snapshots and quotes only.
type StorageConfig struct {
	Backend    string         `mapstructure:"backend"`
	Postgres   DatabaseConfig `mapstructure:"postgres"`
	ClickHouse DatabaseConfig `mapstructure:"clickhouse"`
	Migrate    bool           `mapstructure:"migrate"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// RiskConfig holds exit thresholds in percent.
type RiskConfig struct {
	StopLossPct     float64  `mapstructure:"stop_loss_pct"`
	TargetPct       float64  `mapstructure:"target_pct"`
	SecondTargetPct *float64 `mapstructure:"second_target_pct"`
	SessionClose    string   `mapstructure:"session_close"` // "HH:MM"
	MinPremium      float64  `mapstructure:"min_premium"`
}

type SelectionConfig struct {
	StartHour       int     `mapstructure:"start_hour"`
	EndHour         int     `mapstructure:"end_hour"`
	StrikeIncrement float64 `mapstructure:"strike_increment"`
	StrikeOffset    int     `mapstructure:"strike_offset"`
	OnePerDay       bool    `mapstructure:"one_per_day"`
	FirstPerTag     bool    `mapstructure:"first_per_tag"`
	MaxPerDay       int     `mapstructure:"max_per_day"`
}

type RunnerConfig struct {
	Policy    string        `mapstructure:"policy"`
	MaxTrades int           `mapstructure:"max_trades"`
	MinGap    time.Duration `mapstructure:"min_gap"`
}

// SearchConfig configures the filter search. Candidate trades come from a
// single directional rule gated at MinConfidence.
type SearchConfig struct {
	MaxOrder      int      `mapstructure:"max_order"`
	MinSamples    int      `mapstructure:"min_samples"`
	MinWinRate    float64  `mapstructure:"min_win_rate"`
	Mode          string   `mapstructure:"mode"`
	Workers       int      `mapstructure:"workers"`
	Predicates    []string `mapstructure:"predicates"` // empty = full library
	MinConfidence float64  `mapstructure:"min_confidence"`
	Top           int      `mapstructure:"top"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if v.IsSet("rules") {
		cfg.Rules = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with the reference backtest values:
// SL 20%, target 22%, session close 15:20, minimum premium 5,
// window 11-14, strike step 50, search order 3 over 4+ samples.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Risk: RiskConfig{
			StopLossPct:  domain.DefaultStopLossPct,
			TargetPct:    domain.DefaultTargetPct,
			SessionClose: domain.DefaultSessionClose.String(),
			MinPremium:   domain.DefaultMinPremium,
		},
		Selection: SelectionConfig{
			StartHour:       selector.DefaultStartHour,
			EndHour:         selector.DefaultEndHour,
			StrikeIncrement: selector.DefaultStrikeIncrement,
			FirstPerTag:     true,
		},
		Runner: RunnerConfig{
			Policy:    string(runner.PolicySingle),
			MaxTrades: 3,
			MinGap:    15 * time.Minute,
		},
		Rules: selector.DefaultRuleSpecs(),
		Search: SearchConfig{
			MaxOrder:      search.DefaultMaxOrder,
			MinSamples:    search.DefaultMinSamples,
			Mode:          string(search.ModeTrades),
			MinConfidence: 65,
			Top:           50,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.DomainRisk(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	s := c.Selection
	if s.StartHour < 0 || s.EndHour > 24 || s.StartHour >= s.EndHour {
		return fmt.Errorf("%w: selection window %d-%d", ErrConfigInvalid, s.StartHour, s.EndHour)
	}
	if s.StrikeIncrement <= 0 {
		return fmt.Errorf("%w: strike_increment must be positive, got %v", ErrConfigInvalid, s.StrikeIncrement)
	}

	switch runner.Policy(c.Runner.Policy) {
	case runner.PolicySingle, runner.PolicyMulti, runner.PolicyPyramid:
	default:
		return fmt.Errorf("%w: unknown runner policy %q", ErrConfigInvalid, c.Runner.Policy)
	}
	if c.Runner.MaxTrades < 0 || c.Runner.MinGap < 0 {
		return fmt.Errorf("%w: max_trades and min_gap cannot be negative", ErrConfigInvalid)
	}

	if _, err := selector.CompileRules(c.Rules); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	switch search.Mode(c.Search.Mode) {
	case search.ModeTrades, search.ModeDays:
	default:
		return fmt.Errorf("%w: unknown search mode %q", ErrConfigInvalid, c.Search.Mode)
	}
	if c.Search.MaxOrder < 1 || c.Search.MinSamples < 1 {
		return fmt.Errorf("%w: search max_order and min_samples must be >= 1", ErrConfigInvalid)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("%w: storage.postgres.dsn required for postgres backend", ErrConfigMissing)
		}
	case BackendClickHouse:
		if c.Storage.ClickHouse.DSN == "" || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("%w: clickhouse backend needs storage.clickhouse.dsn and storage.postgres.dsn", ErrConfigMissing)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrConfigInvalid, c.Storage.Backend)
	}

	switch c.Archive.Type {
	case ArchiveNone:
	case ArchiveLocalFS:
		if c.Archive.Path == "" {
			return fmt.Errorf("%w: archive.path required for localfs", ErrConfigMissing)
		}
	case ArchiveS3:
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("%w: archive.s3.bucket required for s3", ErrConfigMissing)
		}
	default:
		return fmt.Errorf("%w: unknown archive type %q", ErrConfigInvalid, c.Archive.Type)
	}

	return nil
}

// DomainRisk converts the risk section into a validated domain.RiskConfig.
func (c *Config) DomainRisk() (domain.RiskConfig, error) {
	closeAt, err := domain.ParseClock(c.Risk.SessionClose)
	if err != nil {
		return domain.RiskConfig{}, err
	}
	r := domain.RiskConfig{
		StopLossPct:     c.Risk.StopLossPct,
		TargetPct:       c.Risk.TargetPct,
		SecondTargetPct: c.Risk.SecondTargetPct,
		SessionClose:    closeAt,
		MinPremium:      c.Risk.MinPremium,
	}
	if err := r.Validate(); err != nil {
		return domain.RiskConfig{}, err
	}
	return r, nil
}

// SelectorOptions converts the selection section. The premium floor comes
// from the risk section so the selector and resolver agree.
func (c *Config) SelectorOptions() selector.Options {
	return selector.Options{
		StartHour:       c.Selection.StartHour,
		EndHour:         c.Selection.EndHour,
		StrikeIncrement: c.Selection.StrikeIncrement,
		StrikeOffset:    c.Selection.StrikeOffset,
		MinPremium:      c.Risk.MinPremium,
		OnePerDay:       c.Selection.OnePerDay,
		FirstPerTag:     c.Selection.FirstPerTag,
		MaxPerDay:       c.Selection.MaxPerDay,
	}
}

// RunnerConfig converts the runner section.
func (c *Config) RunnerConfig() runner.Config {
	return runner.Config{
		Policy:    runner.Policy(c.Runner.Policy),
		MaxTrades: c.Runner.MaxTrades,
		MinGap:    c.Runner.MinGap,
	}
}

// SearchOptions converts the search section.
func (c *Config) SearchOptions() search.Options {
	return search.Options{
		MaxOrder:   c.Search.MaxOrder,
		MinSamples: c.Search.MinSamples,
		MinWinRate: c.Search.MinWinRate,
		Mode:       search.Mode(c.Search.Mode),
		Workers:    c.Search.Workers,
	}
}
