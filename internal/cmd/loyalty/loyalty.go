// Package loyalty parses loyalty service flags and launches the service.
package loyalty

import (
	"context"
	"flag"

	entrypoint "github.com/selo-app/selo/internal/platform/cmd"
	server "github.com/selo-app/selo/internal/services/loyalty/app"
)

// Config holds loyalty command configuration.
type Config struct {
	HTTPPort int `env:"SELO_LOYALTY_HTTP_PORT" envDefault:"8080"`
	GRPCPort int `env:"SELO_LOYALTY_GRPC_PORT" envDefault:"8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The loyalty HTTP API port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The loyalty gRPC health port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the loyalty API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLoyalty, func(context.Context) error {
		return server.Run(ctx, cfg.HTTPPort, cfg.GRPCPort)
	})
}
