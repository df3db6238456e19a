// Package config provides configuration types and defaults for
// atari-inject.
package config

import "time"

// Config holds all configuration for atari-inject.
type Config struct {
	Terminals    TerminalsConfig     `yaml:"terminals" mapstructure:"terminals"`
	Stability    StabilityConfig     `yaml:"stability" mapstructure:"stability"`
	AutoContinue AutoContinueConfig  `yaml:"auto_continue" mapstructure:"auto_continue"`
	UsageLimit   UsageLimitConfig    `yaml:"usage_limit" mapstructure:"usage_limit"`
	Guard        GuardConfig         `yaml:"guard" mapstructure:"guard"`
	KeywordRules []KeywordRuleConfig `yaml:"keyword_rules" mapstructure:"keyword_rules"`
	Paths        PathsConfig         `yaml:"paths" mapstructure:"paths"`
	LogRotation  LogRotationConfig   `yaml:"log_rotation" mapstructure:"log_rotation"`
	Store        StoreConfig         `yaml:"store" mapstructure:"store"`
}

// TerminalsConfig holds settings for the managed terminal set.
type TerminalsConfig struct {
	Count   int      `yaml:"count" mapstructure:"count"`
	Command []string `yaml:"command" mapstructure:"command"`
}

// StabilityConfig holds Stability Tracker settings.
type StabilityConfig struct {
	Threshold time.Duration `yaml:"threshold" mapstructure:"threshold"`
}

// AutoContinueConfig holds Auto-Continue Responder settings.
type AutoContinueConfig struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts int  `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// UsageLimitConfig holds Usage-Limit Synchronizer settings.
type UsageLimitConfig struct {
	AutoSync bool `yaml:"auto_sync" mapstructure:"auto_sync"`
}

// GuardConfig holds dangerous-command guard settings.
type GuardConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// KeywordRuleConfig is the config-file shape of a Keyword Rule.
type KeywordRuleConfig struct {
	Keyword  string        `yaml:"keyword" mapstructure:"keyword" toml:"keyword"`
	Response string        `yaml:"response" mapstructure:"response" toml:"response"`
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown" toml:"cooldown"`
}

// PathsConfig holds file paths for state, logs, and socket.
type PathsConfig struct {
	State  string `yaml:"state" mapstructure:"state"`
	Log    string `yaml:"log" mapstructure:"log"`
	Socket string `yaml:"socket" mapstructure:"socket"`
	PID    string `yaml:"pid" mapstructure:"pid"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the TUI-mode log file (lumberjack-based automatic rotation);
// headless runs log to stderr and do not rotate.
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// StoreConfig selects and configures the statestore backend.
type StoreConfig struct {
	// Backend is "sqlite" or "jsonfile".
	Backend string `yaml:"backend" mapstructure:"backend"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Terminals: TerminalsConfig{
			Count:   4,
			Command: []string{"claude"},
		},
		Stability: StabilityConfig{
			Threshold: 5 * time.Second,
		},
		AutoContinue: AutoContinueConfig{
			Enabled:     true,
			MaxAttempts: 10,
		},
		UsageLimit: UsageLimitConfig{
			AutoSync: true,
		},
		Guard: GuardConfig{
			Enabled: true,
		},
		KeywordRules: []KeywordRuleConfig{},
		Paths: PathsConfig{
			State:  ".atari-inject/state.db",
			Log:    ".atari-inject/atari-inject.log",
			Socket: ".atari-inject/atari-inject.sock",
			PID:    ".atari-inject/atari-inject.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    ".atari-inject/state.db",
		},
	}
}
