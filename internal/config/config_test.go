package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rank-client/internal/errors"
)

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}

	if cfg.Session.Address() != "localhost:8194" || cfg.Session.Service != "//blp/rankapi-beta" {
		t.Errorf("unexpected session defaults %+v", cfg.Session)
	}
	if cfg.Session.MaxPendingRequests != 1 || cfg.Session.RequestTimeout != 60*time.Second {
		t.Errorf("unexpected request defaults %+v", cfg.Session)
	}
	if cfg.Journal.Path != filepath.Join(dir, "journal.db") {
		t.Errorf("journal path = %s", cfg.Journal.Path)
	}

	p := cfg.Query.Params()
	if p.Ticker != "AAPL US Equity" || p.BrokerAcronym != "BCAP" || p.Units != "Shares" {
		t.Errorf("unexpected default query %+v", p)
	}

	// The written template must load back to the same settings.
	again, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Session != cfg.Session || again.Query != cfg.Query {
		t.Errorf("template differs from defaults:\n%+v\n%+v", again.Session, cfg.Session)
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[session]
host = "rank.example.com"
port = 9000
service = "//blp/rankapi"
request_timeout = "5s"

[query]
figi = "BBG000B9XRY4"
ticker = ""
broker_rank = 3
broker_acronym = ""
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Address() != "rank.example.com:9000" || cfg.Session.Service != "//blp/rankapi" {
		t.Errorf("unexpected session %+v", cfg.Session)
	}
	if cfg.Session.RequestTimeout != 5*time.Second || cfg.Session.DialTimeout != 10*time.Second {
		t.Errorf("unexpected timeouts %+v", cfg.Session)
	}
	if cfg.Query.FIGI != "BBG000B9XRY4" || cfg.Query.BrokerRank != 3 || cfg.Query.Ticker != "" {
		t.Errorf("unexpected query %+v", cfg.Query)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RANK_HOST", "10.0.0.5")
	t.Setenv("RANK_PORT", "8195")
	t.Setenv("RANK_SERVICE", "//blp/rankapi")
	t.Setenv("RANK_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Address() != "10.0.0.5:8195" || cfg.Session.Service != "//blp/rankapi" || cfg.Logging.Level != "debug" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Session, cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Session.Host = "" }},
		{"bad port", func(c *Config) { c.Session.Port = 70000 }},
		{"empty service", func(c *Config) { c.Session.Service = "" }},
		{"no pending slots", func(c *Config) { c.Session.MaxPendingRequests = 0 }},
		{"zero timeout", func(c *Config) { c.Session.RequestTimeout = 0 }},
		{"zero inbox", func(c *Config) { c.Session.InboxSize = 0 }},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }},
	}

	defaults, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *defaults
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestMalformedFileRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[session\nhost="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
