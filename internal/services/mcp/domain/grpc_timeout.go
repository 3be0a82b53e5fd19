package domain

import "github.com/louisbranch/slotsim/internal/platform/timeouts"

// grpcCallTimeout caps a single unary gRPC call from an MCP tool handler.
const grpcCallTimeout = timeouts.GRPCRequest

// grpcRunTimeout caps a run_simulation call, which streams until the batch
// finishes.
const grpcRunTimeout = timeouts.Simulation
