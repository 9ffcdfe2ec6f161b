package raffle

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("raffle", flag.ContinueOnError)
	t.Setenv("PRIZEWHEEL_HTTP_ADDR", ":9095")
	t.Setenv("PRIZEWHEEL_ENTRANCE_FEE", "250")

	cfg, err := ParseConfig(fs, []string{"-round-interval", "1h", "-randomness-source", "drand"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":9095" {
		t.Fatalf("http addr = %q, want %q", cfg.HTTPAddr, ":9095")
	}
	if cfg.EntranceFee != 250 {
		t.Fatalf("entrance fee = %d, want 250", cfg.EntranceFee)
	}
	if cfg.Interval != time.Hour {
		t.Fatalf("interval = %s, want 1h", cfg.Interval)
	}
	if cfg.Source != "drand" {
		t.Fatalf("source = %q, want drand", cfg.Source)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("raffle", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HealthPort != 8096 {
		t.Fatalf("health port = %d, want 8096", cfg.HealthPort)
	}
	if cfg.DBPath != "data/raffle.db" {
		t.Fatalf("db path = %q, want data/raffle.db", cfg.DBPath)
	}
	if cfg.EntranceFee != 100 {
		t.Fatalf("entrance fee = %d, want 100", cfg.EntranceFee)
	}
	if cfg.Interval != 10*time.Minute {
		t.Fatalf("interval = %s, want 10m", cfg.Interval)
	}
	if cfg.Source != "local" {
		t.Fatalf("source = %q, want local", cfg.Source)
	}
	if cfg.Confirmations != 3 {
		t.Fatalf("confirmations = %d, want 3", cfg.Confirmations)
	}
}

func TestParseConfig_FlagOverridesEnv(t *testing.T) {
	fs := flag.NewFlagSet("raffle", flag.ContinueOnError)
	t.Setenv("PRIZEWHEEL_POLL_INTERVAL", "2s")

	cfg, err := ParseConfig(fs, []string{"-poll-interval", "45s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PollInterval != 45*time.Second {
		t.Fatalf("poll interval = %s, want 45s", cfg.PollInterval)
	}
}
