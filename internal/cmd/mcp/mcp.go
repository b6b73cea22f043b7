// Package mcp parses MCP command flags and launches the protocol adapter.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/selo-app/selo/internal/platform/cmd"
	loyaltymcp "github.com/selo-app/selo/internal/services/loyalty/mcp"
)

// Config holds MCP command configuration.
type Config struct {
	APIBaseURL string `env:"SELO_LOYALTY_API_URL"  envDefault:"http://localhost:8080"`
	HealthAddr string `env:"SELO_LOYALTY_GRPC_ADDR" envDefault:"localhost:8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "loyalty HTTP API base URL")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "loyalty gRPC health address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter on stdio.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		return loyaltymcp.Run(ctx, loyaltymcp.Config{
			APIBaseURL: cfg.APIBaseURL,
			HealthAddr: cfg.HealthAddr,
		})
	})
}
