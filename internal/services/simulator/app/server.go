// Package server wires the simulator runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/louisbranch/slotsim/internal/core/roles"
	"github.com/louisbranch/slotsim/internal/platform/grpc/metadata"
	"github.com/louisbranch/slotsim/internal/services/simulator/api/grpc/simulation"
	"github.com/louisbranch/slotsim/internal/services/simulator/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/events"
	"github.com/louisbranch/slotsim/internal/services/simulator/roletable"
	simsqlite "github.com/louisbranch/slotsim/internal/services/simulator/storage/sqlite"
)

// Config describes one simulator process.
type Config struct {
	Addr          string
	RoleTablePath string
	DBPath        string
	KafkaBrokers  []string
	KafkaTopic    string
	Limits        domain.Limits
}

// Server hosts the simulation gRPC API and its storage lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *simsqlite.Store
	publisher  events.Publisher
}

// New loads the role table, opens storage and prepares the gRPC server.
func New(cfg Config) (*Server, error) {
	rows, err := roletable.LoadFile(cfg.RoleTablePath)
	if err != nil {
		return nil, fmt.Errorf("load role table: %w", err)
	}
	return NewWithRows(cfg, rows)
}

// NewWithRows prepares a server for an already loaded role table.
func NewWithRows(cfg Config, rows []roles.Row) (*Server, error) {
	publisher, err := newPublisher(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}
	sim, err := domain.NewService(domain.Config{
		Rows:      rows,
		Store:     store,
		Publisher: publisher,
		Limits:    cfg.Limits,
	})
	if err != nil {
		_ = store.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("create simulator: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(metadata.UnaryServerInterceptor(nil)),
		grpc.ChainStreamInterceptor(metadata.StreamServerInterceptor(nil)),
	)
	healthServer := health.NewServer()
	simulation.RegisterSimulationServiceServer(grpcServer, simulation.NewService(sim))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(simulation.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	log.Printf("simulator loaded %d roles across settings %v", len(rows), sim.Settings())
	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		publisher:  publisher,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a simulator until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server until ctx is cancelled, then drains it.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("simulator server listening at %v", s.listener.Addr())
	group, groupCtx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})
	group.Go(func() error {
		defer close(stopped)
		err := s.grpcServer.Serve(s.listener)
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
		case <-stopped:
			return nil
		}
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return nil
	})
	return group.Wait()
}

// Close releases simulator server resources.
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
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("close event publisher: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close simulator store: %v", err)
		}
	}
}

func newPublisher(cfg Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	log.Printf("publishing run events to %s on %s", cfg.KafkaTopic, strings.Join(cfg.KafkaBrokers, ","))
	return publisher, nil
}

func openStore(path string) (*simsqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "simulator.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := simsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open simulator sqlite store: %w", err)
	}
	return store, nil
}
