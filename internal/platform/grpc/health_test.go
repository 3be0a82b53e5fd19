package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const testService = "slotsim.simulator.v1.SimulationService"

func startHealthServer(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) (*bufconn.Listener, *health.Server) {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	srv := gogrpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(testService, status)
	grpc_health_v1.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis, hs
}

func bufDialOptions(lis *bufconn.Listener) []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
}

func TestDialWithHealthServing(t *testing.T) {
	lis, _ := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)

	conn, err := DialWithHealth(context.Background(), "passthrough:///bufnet", testService, 2*time.Second, t.Logf, bufDialOptions(lis)...)
	if err != nil {
		t.Fatalf("dial with health: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close conn: %v", err)
	}
}

func TestDialWithHealthNotServing(t *testing.T) {
	lis, _ := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	start := time.Now()
	conn, err := DialWithHealth(context.Background(), "passthrough:///bufnet", testService, 300*time.Millisecond, nil, bufDialOptions(lis)...)
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected error")
	}
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageHealth {
		t.Fatalf("error = %v, want health DialError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded in chain", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout did not bound the wait: %v", elapsed)
	}
}

func TestDialWithHealthMissingCredentials(t *testing.T) {
	_, err := DialWithHealth(context.Background(), "passthrough:///bufnet", testService, time.Second, nil, gogrpc.WithUserAgent("slotsim-test"))
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageConnect {
		t.Fatalf("error = %v, want connect DialError", err)
	}
}

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	lis, hs := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	conn, err := gogrpc.NewClient("passthrough:///bufnet", bufDialOptions(lis)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer conn.Close()

	go func() {
		time.Sleep(150 * time.Millisecond)
		hs.SetServingStatus(testService, grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, conn, testService, nil); err != nil {
		t.Fatalf("wait for health after transition: %v", err)
	}
}

func TestWaitForHealthRequiresConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil conn")
	}
}
