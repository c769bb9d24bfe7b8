// Package app wires the veto engine runtime: storage, services, the
// maintenance sweep, and the health endpoint.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/mapveto/internal/veto/audit"
	vetoservice "github.com/louisbranch/mapveto/internal/veto/service"
	vetosqlite "github.com/louisbranch/mapveto/internal/veto/storage/sqlite"
	"github.com/louisbranch/mapveto/internal/veto/sweep"
	"github.com/louisbranch/mapveto/internal/veto/token"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls engine startup and background loop behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	SweepInterval time.Duration
}

const (
	defaultEnginePort = 8093
	defaultEngineDB   = "data/engine.db"
)

// Run starts engine runtime dependencies and blocks until the context is
// canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultEnginePort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultEngineDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create engine storage dir: %w", err)
		}
	}

	store, err := vetosqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open engine sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close engine sqlite store: %v", closeErr)
		}
	}()

	engine := NewEngine(store)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on engine port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("veto.engine", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("engine server listening at %v", listener.Addr())

	sweeper := sweep.New(engine, cfg.SweepInterval, log.Printf)
	if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// NewEngine assembles the veto service over a single SQLite store.
func NewEngine(store *vetosqlite.Store) *vetoservice.Service {
	stores := vetoservice.Stores{
		Sessions:  store,
		Seats:     store,
		Maps:      store,
		Votes:     store,
		Audit:     store,
		Mutations: store,
		Cascade:   store,
	}
	tokens := token.NewService(token.Stores{Seats: store}, nil)
	recorder := audit.NewRecorder(store, nil)
	return vetoservice.New(stores, tokens, recorder)
}
