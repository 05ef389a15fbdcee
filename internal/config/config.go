// Package config loads the orchestrator's layered configuration
// (defaults < ~/.ngoclaw/config.yaml < NGOCLAW_* environment) via
// viper, and bootstraps the ~/.ngoclaw home directory on first run.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Budget caps a run's cost and wall-clock duration; zero means
// unlimited for that dimension (mirrors scheduler.Budget).
type Budget struct {
	MaxCostUSD   float64       `mapstructure:"max_cost_usd"`
	MaxWallClock time.Duration `mapstructure:"max_wall_clock"`
}

// LogConfig configures the Logger component.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// RunIndexConfig configures the gorm-backed secondary index.
type RunIndexConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// ClaudeConfig configures the LLM Adapter's subprocess invocation.
type ClaudeConfig struct {
	Binary          string `mapstructure:"binary"`
	Model           string `mapstructure:"model"`
	SkipPermissions bool   `mapstructure:"skip_permissions"`
}

// Config is the orchestrator's top-level configuration document.
type Config struct {
	StateDir      string         `mapstructure:"state_dir"`
	DefaultEntry  string         `mapstructure:"default_entry"`
	Budget        Budget         `mapstructure:"budget"`
	MaxParallel   int            `mapstructure:"max_parallel"`
	RetryLimit    int            `mapstructure:"retry_limit"`
	ScriptTimeout time.Duration  `mapstructure:"script_timeout"`
	Log           LogConfig      `mapstructure:"log"`
	RunIndex      RunIndexConfig `mapstructure:"run_index"`
	Claude        ClaudeConfig   `mapstructure:"claude"`
}

// Load reads config.yaml from configPath (if non-empty) or the
// ~/.ngoclaw home directory, merges NGOCLAW_*-prefixed environment
// overrides, and unmarshals into a Config seeded with defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(HomeDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("NGOCLAW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state_dir", HomeDir()+"/state")
	v.SetDefault("default_entry", "START.md")
	v.SetDefault("budget.max_cost_usd", 0)
	v.SetDefault("budget.max_wall_clock", 0)
	v.SetDefault("max_parallel", 8)
	v.SetDefault("retry_limit", 3)
	v.SetDefault("script_timeout", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("run_index.type", "sqlite")
	v.SetDefault("run_index.dsn", HomeDir()+"/runindex.db")

	v.SetDefault("claude.binary", "claude")
	v.SetDefault("claude.model", "")
	v.SetDefault("claude.skip_permissions", false)
}
