// Package mcp exposes loyalty read tools over the Model Context Protocol so
// assistants can inspect cards, rewards, and templates.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	platformgrpc "github.com/selo-app/selo/internal/platform/grpc"
	"github.com/selo-app/selo/internal/platform/timeouts"
	"google.golang.org/grpc"
)

const serverName = "Selo Loyalty MCP"

const serverVersion = "0.1.0"

// Config configures the MCP server.
type Config struct {
	// APIBaseURL is the loyalty HTTP API the tools read from.
	APIBaseURL string
	// HealthAddr is the loyalty gRPC health endpoint startup gates on.
	// Empty skips the gate, for tests that stub the API directly.
	HealthAddr string
}

// Server hosts the MCP tool surface.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New builds an MCP server wired to the loyalty API, waiting for the loyalty
// service to report healthy first.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("loyalty API base URL is required")
	}

	var conn *grpc.ClientConn
	if strings.TrimSpace(cfg.HealthAddr) != "" {
		logf := func(format string, args ...any) {
			log.Printf("loyalty %s", fmt.Sprintf(format, args...))
		}
		dialed, err := platformgrpc.DialWithHealth(
			ctx,
			nil,
			cfg.HealthAddr,
			timeouts.GRPCDial,
			logf,
			platformgrpc.DefaultClientDialOptions()...,
		)
		if err != nil {
			var dialErr *platformgrpc.DialError
			if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageConnect {
				return nil, fmt.Errorf("connect to loyalty server at %s: %w", cfg.HealthAddr, dialErr.Err)
			}
			return nil, err
		}
		conn = dialed
	}

	server := newServer(NewClient(cfg.APIBaseURL))
	server.conn = conn
	return server, nil
}

func newServer(client *Client) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, client)
	return &Server{mcpServer: mcpServer}
}

// Serve runs the MCP server on stdio until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close loyalty connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close loyalty connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Close releases the health-check connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}
