// Package config provides configuration management for the rank report client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"rank-client/internal/errors"
	"rank-client/internal/logging"
	"rank-client/internal/query"
)

// Config holds all application configuration.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Query   QueryConfig   `mapstructure:"query"`
	Logging LoggingConfig `mapstructure:"logging"`
	Journal JournalConfig `mapstructure:"journal"`
	Server  ServerConfig  `mapstructure:"server"`
}

// SessionConfig holds the connection and request settings.
type SessionConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Service            string        `mapstructure:"service"`
	MaxPendingRequests int           `mapstructure:"max_pending_requests"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	InboxSize          int           `mapstructure:"inbox_size"`
}

// QueryConfig holds the default report query parameters.
type QueryConfig struct {
	Ticker        string `mapstructure:"ticker"`
	FIGI          string `mapstructure:"figi"`
	Exchange      string `mapstructure:"exchange"`
	BrokerAcronym string `mapstructure:"broker_acronym"`
	BrokerRank    int    `mapstructure:"broker_rank"`
	Start         string `mapstructure:"start"`
	End           string `mapstructure:"end"`
	GroupBy       string `mapstructure:"group_by"`
	Source        string `mapstructure:"source"`
	Units         string `mapstructure:"units"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// JournalConfig holds request journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig holds settings of the synthetic rank service.
type ServerConfig struct {
	Listen   string   `mapstructure:"listen"`
	Services []string `mapstructure:"services"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/rank-client"
	}
	return filepath.Join(home, ".config", "rank-client")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A commented
// template is written on first use and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	setDefaults(v, configDir)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("session.host", "localhost")
	v.SetDefault("session.port", 8194)
	v.SetDefault("session.service", "//blp/rankapi-beta")
	v.SetDefault("session.max_pending_requests", 1)
	v.SetDefault("session.request_timeout", "60s")
	v.SetDefault("session.dial_timeout", "10s")
	v.SetDefault("session.inbox_size", 64)

	v.SetDefault("query.ticker", "AAPL US Equity")
	v.SetDefault("query.broker_acronym", "BCAP")
	v.SetDefault("query.start", "2020-01-01")
	v.SetDefault("query.end", "2020-05-01")
	v.SetDefault("query.group_by", "Broker")
	v.SetDefault("query.source", "Broker Contributed")
	v.SetDefault("query.units", "Shares")

	logs := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logs.Level)
	v.SetDefault("logging.console", logs.Console)
	v.SetDefault("logging.file", logs.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "rankreq.log"))
	v.SetDefault("logging.max_size", logs.MaxSize)
	v.SetDefault("logging.max_backups", logs.MaxBackups)
	v.SetDefault("logging.max_age", logs.MaxAge)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(configDir, "journal.db"))

	v.SetDefault("server.listen", "localhost:8194")
	v.SetDefault("server.services", []string{"//blp/rankapi-beta", "//blp/rankapi"})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RANK_HOST"); v != "" {
		cfg.Session.Host = v
	}
	if v := os.Getenv("RANK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Session.Port = port
		}
	}
	if v := os.Getenv("RANK_SERVICE"); v != "" {
		cfg.Session.Service = v
	}
	if v := os.Getenv("RANK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Session.Host == "" {
		return fmt.Errorf("%w: session host cannot be empty", errors.ErrConfigInvalid)
	}
	if c.Session.Port <= 0 || c.Session.Port > 65535 {
		return fmt.Errorf("%w: invalid session port %d", errors.ErrConfigInvalid, c.Session.Port)
	}
	if c.Session.Service == "" {
		return fmt.Errorf("%w: service name cannot be empty", errors.ErrConfigInvalid)
	}
	if c.Session.MaxPendingRequests < 1 {
		return fmt.Errorf("%w: max_pending_requests must be at least 1", errors.ErrConfigInvalid)
	}
	if c.Session.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", errors.ErrConfigInvalid)
	}
	if c.Session.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial_timeout must be positive", errors.ErrConfigInvalid)
	}
	if c.Session.InboxSize < 1 {
		return fmt.Errorf("%w: inbox_size must be at least 1", errors.ErrConfigInvalid)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: unknown log level %q", errors.ErrConfigInvalid, c.Logging.Level)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("%w: journal path cannot be empty when the journal is enabled", errors.ErrConfigInvalid)
	}
	return nil
}

// Address returns the host:port of the rank service.
func (c SessionConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Params converts the default query into builder parameters.
func (c QueryConfig) Params() query.Params {
	return query.Params{
		Ticker:        c.Ticker,
		FIGI:          c.FIGI,
		Exchange:      c.Exchange,
		BrokerAcronym: c.BrokerAcronym,
		BrokerRank:    c.BrokerRank,
		Start:         c.Start,
		End:           c.End,
		GroupBy:       c.GroupBy,
		Source:        c.Source,
		Units:         c.Units,
	}
}

// LogConfig converts the logging section for the logging package.
func (c LoggingConfig) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Level,
		Console:    c.Console,
		File:       c.File,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}
