package mcp

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("api url = %q", cfg.APIBaseURL)
	}
	if cfg.HealthAddr != "localhost:8081" {
		t.Fatalf("health addr = %q", cfg.HealthAddr)
	}
}

func TestParseConfigFlagOverride(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-api-url", "http://localhost:9090"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:9090" {
		t.Fatalf("api url = %q", cfg.APIBaseURL)
	}
}
