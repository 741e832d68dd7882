package envconfig

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Addr     string        `env:"CHAMBER_TEST_ADDR" envDefault:":8080"`
	MaxWidth int           `env:"CHAMBER_TEST_MAX_WIDTH" envDefault:"1024"`
	Interval time.Duration `env:"CHAMBER_TEST_INTERVAL" envDefault:"250ms"`
}

func TestParseDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := Parse(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.MaxWidth != 1024 || cfg.Interval != 250*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("CHAMBER_TEST_ADDR", "127.0.0.1:9000")
	t.Setenv("CHAMBER_TEST_INTERVAL", "1s")
	var cfg envTestConfig
	if err := Parse(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || cfg.Interval != time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseError(t *testing.T) {
	t.Setenv("CHAMBER_TEST_MAX_WIDTH", "wide")
	var cfg envTestConfig
	err := Parse(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
