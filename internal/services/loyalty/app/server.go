// Package server wires the loyalty runtime: storage, engine, HTTP API, and
// the gRPC health endpoint other processes gate their startup on.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/selo-app/selo/internal/platform/config"
	"github.com/selo-app/selo/internal/platform/timeouts"
	apihttp "github.com/selo-app/selo/internal/services/loyalty/api/http"
	"github.com/selo-app/selo/internal/services/loyalty/engine"
	"github.com/selo-app/selo/internal/services/loyalty/storage/sqlite"
	"github.com/selo-app/selo/internal/services/loyalty/token"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type serverEnv struct {
	DBPath        string        `env:"SELO_LOYALTY_DB_PATH"`
	PruneInterval time.Duration `env:"SELO_DEDUP_PRUNE_INTERVAL" envDefault:"1h"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "loyalty.db")
	}
	return cfg
}

// Server hosts the loyalty HTTP API, the gRPC health endpoint, and the
// storage lifecycle.
type Server struct {
	httpListener  net.Listener
	httpServer    *http.Server
	grpcListener  net.Listener
	grpcServer    *grpc.Server
	health        *health.Server
	store         *sqlite.Store
	engine        *engine.Engine
	pruneInterval time.Duration
}

// New creates a configured loyalty server listening on the provided ports.
func New(httpPort, grpcPort int) (*Server, error) {
	return NewWithAddrs(fmt.Sprintf(":%d", httpPort), fmt.Sprintf(":%d", grpcPort))
}

// NewWithAddrs creates a configured loyalty server for the provided addresses.
func NewWithAddrs(httpAddr, grpcAddr string) (*Server, error) {
	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		_ = httpListener.Close()
		return nil, fmt.Errorf("listen on %s: %w", grpcAddr, err)
	}

	env := loadServerEnv()
	store, err := openLoyaltyStore(env.DBPath)
	if err != nil {
		_ = httpListener.Close()
		_ = grpcListener.Close()
		return nil, err
	}

	tokens, err := token.LoadConfigFromEnv(nil)
	if err != nil {
		_ = httpListener.Close()
		_ = grpcListener.Close()
		_ = store.Close()
		return nil, err
	}
	var engineCfg engine.Config
	if err := config.ParseEnv(&engineCfg); err != nil {
		_ = httpListener.Close()
		_ = grpcListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("parse engine config: %w", err)
	}
	eng, err := engine.New(store, tokens, engineCfg, nil)
	if err != nil {
		_ = httpListener.Close()
		_ = grpcListener.Close()
		_ = store.Close()
		return nil, err
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		httpListener: httpListener,
		httpServer: &http.Server{
			Handler:           apihttp.New(eng, store),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		grpcListener:  grpcListener,
		grpcServer:    grpcServer,
		health:        healthServer,
		store:         store,
		engine:        eng,
		pruneInterval: env.PruneInterval,
	}, nil
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC health listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a loyalty server until context cancellation.
func Run(ctx context.Context, httpPort, grpcPort int) error {
	server, err := New(httpPort, grpcPort)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts both servers until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("loyalty HTTP API listening at %v", s.httpListener.Addr())
	log.Printf("loyalty health endpoint listening at %v", s.grpcListener.Addr())

	serveErr := make(chan error, 2)
	go func() {
		err := s.httpServer.Serve(s.httpListener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()
	go func() {
		serveErr <- s.grpcServer.Serve(s.grpcListener)
	}()

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go s.pruneLoop(pruneCtx)

	select {
	case <-ctx.Done():
		s.shutdown()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve loyalty: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve loyalty: %w", err)
	}
}

// pruneLoop periodically removes applied dedup rows past their retention.
func (s *Server) pruneLoop(ctx context.Context) {
	if s.pruneInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := s.engine.PruneDedup(ctx)
			if err != nil {
				log.Printf("prune dedup: %v", err)
				continue
			}
			if pruned > 0 {
				log.Printf("pruned %d dedup rows", pruned)
			}
		}
	}
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown HTTP server: %v", err)
	}
	s.grpcServer.GracefulStop()
}

// Close releases loyalty server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close loyalty store: %v", err)
		}
	}
}

func openLoyaltyStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open loyalty sqlite store: %w", err)
	}
	return store, nil
}
