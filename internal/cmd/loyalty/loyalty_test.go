package loyalty

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("loyalty", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.GRPCPort != 8081 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SELO_LOYALTY_HTTP_PORT", "9090")
	fs := flag.NewFlagSet("loyalty", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-grpc-port", "9091"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("http port = %d, want env override 9090", cfg.HTTPPort)
	}
	if cfg.GRPCPort != 9091 {
		t.Fatalf("grpc port = %d, want flag override 9091", cfg.GRPCPort)
	}
}
