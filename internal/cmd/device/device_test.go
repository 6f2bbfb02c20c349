package device

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("device", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "focusbridge.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.MaxConns != 64 {
		t.Fatalf("expected default max conns 64, got %d", cfg.MaxConns)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("FOCUSBRIDGE_DEVICE_HTTP_ADDR", ":9090")
	t.Setenv("FOCUSBRIDGE_DEVICE_DB_PATH", "/tmp/relay.db")

	fs := flag.NewFlagSet("device", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected env addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "/tmp/relay.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("FOCUSBRIDGE_DEVICE_HTTP_ADDR", ":9090")

	fs := flag.NewFlagSet("device", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", ":7070", "-max-conns", "8"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected flag addr, got %q", cfg.HTTPAddr)
	}
	if cfg.MaxConns != 8 {
		t.Fatalf("expected max conns 8, got %d", cfg.MaxConns)
	}
}
