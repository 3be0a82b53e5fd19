package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	"github.com/louisbranch/slotsim/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/slotsim/internal/platform/grpc"
	"github.com/louisbranch/slotsim/internal/platform/timeouts"
	"github.com/louisbranch/slotsim/internal/services/mcp/domain"
	"github.com/louisbranch/slotsim/internal/services/simulator/api/grpc/simulation"
)

const (
	serverName    = "slotsim-mcp"
	serverVersion = "0.1.0"
)

// Config configures the MCP server.
type Config struct {
	GRPCAddr string
}

// Server hosts the MCP tools backed by a simulator connection.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New dials the simulator at grpcAddr and builds the MCP server.
func New(ctx context.Context, grpcAddr string) (*Server, error) {
	addr := grpcAddress(grpcAddr)
	conn, err := platformgrpc.DialWithHealth(ctx, addr, simulation.ServiceName, timeouts.GRPCDial, log.Printf)
	if err != nil {
		return nil, fmt.Errorf("connect to simulator at %s: %w", addr, err)
	}
	return &Server{mcpServer: newMCPServer(simulation.NewClient(conn)), conn: conn}, nil
}

// newMCPServer registers every tool and resource against client.
func newMCPServer(client domain.SimulationClient) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, domain.RunSimulationTool(), domain.RunSimulationHandler(client))
	mcp.AddTool(server, domain.GetRunTool(), domain.GetRunHandler(client))
	mcp.AddTool(server, domain.ListSessionsTool(), domain.ListSessionsHandler(client))
	mcp.AddTool(server, domain.ListSettingsTool(), domain.ListSettingsHandler(client))
	server.AddResourceTemplate(domain.RunResourceTemplate(), domain.RunResourceHandler(client))
	server.AddResource(domain.SettingsResource(), domain.SettingsResourceHandler(client))
	return server
}

// Run connects to the simulator and serves MCP on stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg.GRPCAddr)
	if err != nil {
		return err
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the gRPC connection held by the server.
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

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
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
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func grpcAddress(addr string) string {
	return discovery.OrDefaultGRPCAddr(addr, discovery.ServiceSimulator)
}
